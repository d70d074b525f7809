package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. It persists settings, the price cache, the control state, and
// decisions under a per-device document so a fleet installation can share
// one project.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
	deviceID  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	deviceID := lflag.String("firestore-device-id", "", "Device document ID under the devices collection")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.deviceID = *deviceID

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	if f.deviceID == "" {
		return fmt.Errorf("firestore-device-id is required")
	}
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

func (f *FirestoreProvider) getCollection(name string) (*firestore.CollectionRef, error) {
	if f.deviceID == "" {
		return nil, fmt.Errorf("deviceID cannot be empty")
	}
	return f.client.Collection("devices").Doc(f.deviceID).Collection(name), nil
}

// getJSONDoc fetches a single {json: string} document and unmarshals it into
// v. It returns false without error when the document does not exist.
func (f *FirestoreProvider) getJSONDoc(ctx context.Context, collection, docID string, v any) (bool, error) {
	coll, err := f.getCollection(collection)
	if err != nil {
		return false, err
	}
	doc, err := coll.Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch %s/%s doc: %w", collection, docID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		return false, fmt.Errorf("%s/%s document missing 'json' field: %w", collection, docID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return false, fmt.Errorf("%s/%s 'json' field is not a string", collection, docID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s json: %w", collection, docID, err)
	}
	return true, nil
}

func (f *FirestoreProvider) setJSONDoc(ctx context.Context, collection, docID string, v any, extra map[string]interface{}) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, docID, err)
	}
	coll, err := f.getCollection(collection)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"json": string(jsonBytes),
	}
	for k, val := range extra {
		data[k] = val
	}
	if _, err := coll.Doc(docID).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", collection, docID, err)
	}
	return nil
}

// GetSettings retrieves the dynamic configuration from the "config/settings"
// document.
func (f *FirestoreProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	coll, err := f.getCollection("config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return default settings if not found
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "settings doc missing json", slog.String("deviceID", f.deviceID))
		return types.Settings{}, 0, fmt.Errorf("settings document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "settings doc json not string", slog.String("deviceID", f.deviceID))
		return types.Settings{}, 0, fmt.Errorf("settings 'json' field is not a string")
	}

	var s types.Settings
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal settings json", slog.String("deviceID", f.deviceID), slog.Any("err", err))
		return types.Settings{}, 0, fmt.Errorf("failed to unmarshal settings json: %w", err)
	}
	return s, version, nil
}

// SetSettings saves the dynamic configuration to the "config/settings"
// document. It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	return f.setJSONDoc(ctx, "config", "settings", settings, map[string]interface{}{
		"version": version,
	})
}

// GetPriceBlocks loads the persisted price cache from the "cache/blocks"
// document. A missing document yields an empty map.
func (f *FirestoreProvider) GetPriceBlocks(ctx context.Context) (map[int64]types.PriceBlock, error) {
	blocks := make(map[int64]types.PriceBlock)
	if _, err := f.getJSONDoc(ctx, "cache", "blocks", &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (f *FirestoreProvider) SetPriceBlocks(ctx context.Context, blocks map[int64]types.PriceBlock) error {
	return f.setJSONDoc(ctx, "cache", "blocks", blocks, map[string]interface{}{
		"updated": time.Now(),
	})
}

func (f *FirestoreProvider) GetControlState(ctx context.Context) (types.ChargingControlState, error) {
	var state types.ChargingControlState
	if _, err := f.getJSONDoc(ctx, "cache", "control", &state); err != nil {
		return types.ChargingControlState{}, err
	}
	return state, nil
}

func (f *FirestoreProvider) SetControlState(ctx context.Context, state types.ChargingControlState) error {
	return f.setJSONDoc(ctx, "cache", "control", state, nil)
}

// InsertDecision adds a new decision record to the "decision_history"
// collection as a JSON blob. The document ID is the RFC3339 timestamp for
// efficient range queries.
func (f *FirestoreProvider) InsertDecision(ctx context.Context, decision types.Decision) error {
	docID := decision.Timestamp.UTC().Format(time.RFC3339)
	return f.setJSONDoc(ctx, "decision_history", docID, decision, map[string]interface{}{
		"timestamp": decision.Timestamp,
	})
}

// GetDecisionHistory retrieves decision records within the specified time
// range. Uses document ID range queries for efficient filtering without
// reading all documents.
func (f *FirestoreProvider) GetDecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.getCollection("decision_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var decisions []types.Decision
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating decisions: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "decision doc missing json", slog.String("decisionID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("decision document %s missing 'json' field: %w", doc.Ref.ID, err)
		}
		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "decision doc json not string", slog.String("decisionID", doc.Ref.ID))
			return nil, fmt.Errorf("decision document %s 'json' field is not string", doc.Ref.ID)
		}

		var d types.Decision
		if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal decision", slog.String("decisionID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal decision (id=%s): %w", doc.Ref.ID, err)
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}
