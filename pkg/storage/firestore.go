package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore.
// Entries live in the "entries" collection as JSON blobs and each entry has
// one price history sub-collection per commodity.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) entries() *firestore.CollectionRef {
	return f.client.Collection("entries")
}

func (f *FirestoreProvider) getPriceCollection(entryID string, commodity types.Commodity) (*firestore.CollectionRef, error) {
	if err := validateEntryID(entryID); err != nil {
		return nil, err
	}
	if !commodity.Valid() {
		return nil, fmt.Errorf("invalid commodity: %q", commodity)
	}
	return f.entries().Doc(entryID).Collection("prices_" + string(commodity)), nil
}

func decodeJSONField(ctx context.Context, doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("path", doc.Ref.Path), slog.Any("error", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// ListEntries retrieves all entries ordered by ID. Malformed documents are
// skipped.
func (f *FirestoreProvider) ListEntries(ctx context.Context) ([]types.Entry, error) {
	iter := f.entries().OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	entries := []types.Entry{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating entries: %w", err)
		}

		var entry types.Entry
		if err := decodeJSONField(ctx, doc, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetEntry retrieves a single entry.
func (f *FirestoreProvider) GetEntry(ctx context.Context, id string) (types.Entry, error) {
	if err := validateEntryID(id); err != nil {
		return types.Entry{}, err
	}
	doc, err := f.entries().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return types.Entry{}, fmt.Errorf("failed to get entry %s: %w", id, err)
	}

	var entry types.Entry
	if err := decodeJSONField(ctx, doc, &entry); err != nil {
		return types.Entry{}, err
	}
	return entry, nil
}

// CreateEntry creates a new entry document, failing if the ID is taken.
func (f *FirestoreProvider) CreateEntry(ctx context.Context, entry types.Entry) error {
	if err := validateEntryID(entry.ID); err != nil {
		return err
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", entry.ID, err)
	}
	_, err = f.entries().Doc(entry.ID).Create(ctx, map[string]interface{}{
		"json":      string(entryJSON),
		"timestamp": entry.UpdatedAt,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrEntryExists, entry.ID)
		}
		return fmt.Errorf("failed to create entry %s: %w", entry.ID, err)
	}
	return nil
}

// UpdateEntry replaces an existing entry document.
func (f *FirestoreProvider) UpdateEntry(ctx context.Context, entry types.Entry) error {
	if err := validateEntryID(entry.ID); err != nil {
		return err
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", entry.ID, err)
	}
	_, err = f.entries().Doc(entry.ID).Update(ctx, []firestore.Update{
		{Path: "json", Value: string(entryJSON)},
		{Path: "timestamp", Value: entry.UpdatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, entry.ID)
		}
		return fmt.Errorf("failed to update entry %s: %w", entry.ID, err)
	}
	return nil
}

// DeleteEntry removes the entry and its price history sub-collections.
func (f *FirestoreProvider) DeleteEntry(ctx context.Context, id string) error {
	if err := validateEntryID(id); err != nil {
		return err
	}

	bw := f.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, commodity := range []types.Commodity{types.CommodityElectricity, types.CommodityGas} {
		coll, err := f.getPriceCollection(id, commodity)
		if err != nil {
			bw.End()
			return err
		}
		iter := coll.Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				bw.End()
				return fmt.Errorf("error iterating prices of entry %s: %w", id, err)
			}
			job, err := bw.Delete(doc.Ref)
			if err != nil {
				iter.Stop()
				bw.End()
				return fmt.Errorf("failed to queue price delete: %w", err)
			}
			jobs = append(jobs, job)
		}
		iter.Stop()
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to delete prices of entry %s: %w", id, err)
		}
	}

	if _, err := f.entries().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return nil
}

// UpsertPrices writes every point as its own document keyed by the RFC3339
// From so history can be queried with document ID ranges.
func (f *FirestoreProvider) UpsertPrices(ctx context.Context, entryID string, commodity types.Commodity, prices types.PriceSeries) error {
	if len(prices) == 0 {
		return nil
	}
	coll, err := f.getPriceCollection(entryID, commodity)
	if err != nil {
		return err
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(prices))
	for _, p := range prices {
		jsonBytes, err := json.Marshal(p)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to marshal price: %w", err)
		}
		job, err := bw.Set(coll.Doc(priceDocID(p.From)), map[string]interface{}{
			"json":      string(jsonBytes),
			"timestamp": p.From,
		})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue price: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to upsert %d of %d prices: %w", len(errs), len(prices), errors.Join(errs...))
	}
	return nil
}

// GetPriceHistory retrieves the points with start <= From < end.
// Uses document ID range queries for efficient filtering without reading all documents.
func (f *FirestoreProvider) GetPriceHistory(ctx context.Context, entryID string, commodity types.Commodity, start, end time.Time) (types.PriceSeries, error) {
	coll, err := f.getPriceCollection(entryID, commodity)
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(priceDocID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(priceDocID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	prices := types.PriceSeries{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating prices: %w", err)
		}

		var p types.PricePoint
		if err := decodeJSONField(ctx, doc, &p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// GetLatestPriceTime retrieves the From of the newest stored price point.
func (f *FirestoreProvider) GetLatestPriceTime(ctx context.Context, entryID string, commodity types.Commodity) (time.Time, error) {
	coll, err := f.getPriceCollection(entryID, commodity)
	if err != nil {
		return time.Time{}, err
	}

	// firestore automatically creates indexes for top-level fields
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest price doc: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, doc.Ref.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid price doc id %s: %w", doc.Ref.ID, err)
	}
	return ts, nil
}
