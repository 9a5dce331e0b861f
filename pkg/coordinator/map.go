package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/frankenergie/frankenergie/pkg/cache"
	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// Configured registers the scheduling flags and returns a Map over the given
// dependencies.
func Configured(db storage.Database, snapshots cache.Snapshots, cipher *credentials.Cipher, newClient func(types.Authentication) Client) *Map {
	interval := lflag.Duration("refresh-interval", time.Hour, "How often every entry is refreshed")
	entriesFile := lflag.String("entries-file", "", "Optional YAML file with entries to import into storage on startup")

	m := NewMap(Options{
		DB:        db,
		Cipher:    cipher,
		Snapshots: snapshots,
		NewClient: newClient,
	})
	lflag.Do(func() {
		if *interval > 0 {
			m.opts.Interval = *interval
		}
		m.entriesFile = *entriesFile
	})
	return m
}

// Options are the dependencies shared by the coordinators of a Map.
type Options struct {
	Interval  time.Duration
	DB        storage.Database
	Cipher    *credentials.Cipher
	Snapshots cache.Snapshots
	// NewClient builds the API client of an entry.
	NewClient func(auth types.Authentication) Client
}

// Map is the registry of live coordinators keyed by entry ID. It is owned by
// main and handed to whatever needs to reach an entry's coordinator.
type Map struct {
	opts        Options
	entriesFile string

	mu           sync.Mutex
	coordinators map[string]*Coordinator
	cancels      map[string]context.CancelFunc
	listeners    []Listener
	runCtx       context.Context
	wg           sync.WaitGroup
}

// NewMap returns an empty Map.
func NewMap(opts Options) *Map {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Snapshots == nil {
		opts.Snapshots = cache.Noop{}
	}
	return &Map{
		opts:         opts,
		coordinators: make(map[string]*Coordinator),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Subscribe registers l on every current and future coordinator.
func (m *Map) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
	for _, c := range m.coordinators {
		c.Subscribe(l)
	}
}

// Setup creates the coordinator of entry, replacing any existing one. When
// the Map is running the coordinator starts refreshing right away.
func (m *Map) Setup(ctx context.Context, entry types.Entry) (*Coordinator, error) {
	if entry.ID == "" {
		return nil, errors.New("entry has no id")
	}

	var auth types.Authentication
	if len(entry.EncryptedCredentials) > 0 {
		if m.opts.Cipher == nil {
			return nil, fmt.Errorf("entry %s has credentials but no encryption key is configured", entry.ID)
		}
		var err error
		auth, err = m.opts.Cipher.Decrypt(ctx, entry.EncryptedCredentials)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credentials of entry %s: %w", entry.ID, err)
		}
	}

	var creds CredentialStore
	if m.opts.DB != nil && m.opts.Cipher != nil {
		creds = &entryCredentials{db: m.opts.DB, cipher: m.opts.Cipher, entryID: entry.ID}
	}
	var history PriceHistory
	if m.opts.DB != nil {
		history = m.opts.DB
	}

	c := New(entry, m.opts.NewClient(auth), creds, m.opts.Snapshots, history)
	c.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.unloadLocked(entry.ID)
	for _, l := range m.listeners {
		c.Subscribe(l)
	}
	m.coordinators[entry.ID] = c
	if m.runCtx != nil && !entry.Disabled {
		m.startLocked(entry.ID, c)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"entry set up",
		slog.String("entryID", entry.ID),
		slog.Bool("authenticated", !auth.Empty()),
		slog.Bool("disabled", entry.Disabled),
	)
	return c, nil
}

// Unload stops and removes the coordinator of id. It returns false if there
// was none.
func (m *Map) Unload(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked(id)
}

func (m *Map) unloadLocked(id string) bool {
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	if _, ok := m.coordinators[id]; !ok {
		return false
	}
	delete(m.coordinators, id)
	return true
}

func (m *Map) startLocked(id string, c *Coordinator) {
	ctx, cancel := context.WithCancel(m.runCtx)
	m.cancels[id] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		c.Run(ctx, m.opts.Interval)
	}()
}

// Get returns the coordinator of id.
func (m *Map) Get(id string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coordinators[id]
	return c, ok
}

// List returns every coordinator ordered by entry ID.
func (m *Map) List() []*Coordinator {
	m.mu.Lock()
	list := make([]*Coordinator, 0, len(m.coordinators))
	for _, c := range m.coordinators {
		list = append(list, c)
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Entry().ID < list[j].Entry().ID
	})
	return list
}

// LoadAll sets up a coordinator for every stored entry. Entries that fail to
// set up are logged and skipped.
func (m *Map) LoadAll(ctx context.Context) error {
	if m.opts.DB == nil {
		return errors.New("no storage configured")
	}
	entries, err := m.opts.DB.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	for _, entry := range entries {
		if _, err := m.Setup(ctx, entry); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to set up entry", slog.String("entryID", entry.ID), slog.Any("error", err))
		}
	}
	return nil
}

// Bootstrap imports the entries file, when one is configured, and sets up
// every stored entry.
func (m *Map) Bootstrap(ctx context.Context) error {
	if m.entriesFile != "" {
		entries, err := LoadEntriesFile(m.entriesFile)
		if err != nil {
			return err
		}
		created, err := ImportEntries(ctx, m.opts.DB, m.opts.Cipher, entries, time.Now().UTC())
		if err != nil {
			return err
		}
		log.Ctx(ctx).InfoContext(
			ctx,
			"entries file imported",
			slog.String("path", m.entriesFile),
			slog.Int("entries", len(entries)),
			slog.Int("created", created),
		)
	}
	return m.LoadAll(ctx)
}

// RefreshAll refreshes every enabled entry sequentially and returns the
// errors keyed by entry ID.
func (m *Map) RefreshAll(ctx context.Context) map[string]error {
	errs := make(map[string]error)
	for _, c := range m.List() {
		if c.Entry().Disabled {
			continue
		}
		if _, err := c.Refresh(ctx); err != nil {
			errs[c.Entry().ID] = err
		}
	}
	return errs
}

// Run starts the refresh loop of every enabled entry, including ones set up
// later, and blocks until ctx is done and all loops have stopped.
func (m *Map) Run(ctx context.Context) {
	m.mu.Lock()
	m.runCtx = ctx
	for id, c := range m.coordinators {
		if !c.Entry().Disabled {
			m.startLocked(id, c)
		}
	}
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	m.runCtx = nil
	m.mu.Unlock()
	m.wg.Wait()
}

// entryCredentials persists renewed tokens back onto the stored entry.
type entryCredentials struct {
	db      storage.Database
	cipher  *credentials.Cipher
	entryID string
}

func (e *entryCredentials) SaveAuthentication(ctx context.Context, auth types.Authentication) error {
	entry, err := e.db.GetEntry(ctx, e.entryID)
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	encrypted, err := e.cipher.Encrypt(ctx, auth)
	if err != nil {
		return err
	}
	entry.EncryptedCredentials = encrypted
	entry.UpdatedAt = time.Now().UTC()
	if err := e.db.UpdateEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return nil
}
