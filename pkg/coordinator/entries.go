package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/frankenergie/frankenergie/pkg/credentials"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileEntry is one entry in an entries file.
type FileEntry struct {
	ID            string `yaml:"id"`
	Title         string `yaml:"title"`
	Email         string `yaml:"email"`
	SiteReference string `yaml:"siteReference"`
	AuthToken     string `yaml:"authToken"`
	RefreshToken  string `yaml:"refreshToken"`
	Disabled      bool   `yaml:"disabled"`
}

// Authentication returns the token pair of the entry.
func (f FileEntry) Authentication() types.Authentication {
	return types.Authentication{
		AuthToken:    f.AuthToken,
		RefreshToken: f.RefreshToken,
	}
}

// EntryID returns ID or, when it is empty, an ID derived from the email and
// site so re-importing the same file is idempotent.
func (f FileEntry) EntryID() string {
	if f.ID != "" {
		return f.ID
	}
	return NewEntryID(f.Email, f.SiteReference)
}

// NewEntryID derives a stable entry ID from the account email and the site
// reference, so the same site can only be added once.
func NewEntryID(email, siteReference string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("frankenergie:"+email+"/"+siteReference)).String()
}

type entriesFile struct {
	Entries []FileEntry `yaml:"entries"`
}

// LoadEntriesFile parses a YAML file of the form:
//
//	entries:
//	  - title: Home
//	    email: user@example.com
//	    siteReference: "1234AB 1"
//	    authToken: ...
//	    refreshToken: ...
func LoadEntriesFile(path string) ([]FileEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries file: %w", err)
	}
	var f entriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse entries file: %w", err)
	}

	seen := make(map[string]bool, len(f.Entries))
	for i, e := range f.Entries {
		if e.AuthToken == "" && e.RefreshToken != "" {
			return nil, fmt.Errorf("entry %d: refreshToken without authToken", i)
		}
		if e.AuthToken != "" && e.SiteReference == "" {
			return nil, fmt.Errorf("entry %d: authenticated entries need a siteReference", i)
		}
		id := e.EntryID()
		if seen[id] {
			return nil, fmt.Errorf("entry %d: duplicate id %s", i, id)
		}
		seen[id] = true
	}
	return f.Entries, nil
}

// ImportEntries creates the file entries that are not stored yet, encrypting
// their tokens with cipher. Existing entries are left untouched. It returns
// how many entries were created.
func ImportEntries(ctx context.Context, db storage.Database, cipher *credentials.Cipher, entries []FileEntry, now time.Time) (int, error) {
	var created int
	for _, fe := range entries {
		entry := types.Entry{
			ID:            fe.EntryID(),
			Title:         fe.Title,
			Email:         fe.Email,
			SiteReference: fe.SiteReference,
			Disabled:      fe.Disabled,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if entry.Title == "" {
			entry.Title = "Frank Energie"
		}
		if auth := fe.Authentication(); !auth.Empty() {
			if cipher == nil {
				return created, fmt.Errorf("entry %s has tokens but no encryption key is configured", entry.ID)
			}
			encrypted, err := cipher.Encrypt(ctx, auth)
			if err != nil {
				return created, fmt.Errorf("failed to encrypt tokens of entry %s: %w", entry.ID, err)
			}
			entry.EncryptedCredentials = encrypted
		}

		err := db.CreateEntry(ctx, entry)
		if errors.Is(err, storage.ErrEntryExists) {
			log.Ctx(ctx).DebugContext(ctx, "entry already stored", slog.String("entryID", entry.ID))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to create entry %s: %w", entry.ID, err)
		}
		created++
		log.Ctx(ctx).InfoContext(ctx, "imported entry", slog.String("entryID", entry.ID))
	}
	return created, nil
}
