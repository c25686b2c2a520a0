// Package vecindex provides a persistent vector index: embeddings stored
// alongside their source document and metadata, keyed by a caller-supplied
// ID, with nearest-neighbor query and metadata equality filtering.
//
// Records are the source of truth and live in a [kv.Store] (BadgerDB in
// production), msgpack-encoded including the vector itself. Nearest-neighbor
// search runs against a [vecstore.Index] kept in sync with the record store.
// [Open] wires both up over a data directory and restores the ANN side on
// startup, from a binary snapshot when one is present and consistent, or by
// rescanning the records.
//
// At most one record exists per ID: Upsert fully replaces any prior record.
package vecindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mediahub/aisvc/pkg/kv"
	"github.com/mediahub/aisvc/pkg/vecstore"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by Get when no record exists for the ID.
	ErrNotFound = errors.New("vecindex: not found")
)

// recordPrefix namespaces record keys in the KV store.
const recordPrefix = "emb:"

// Record is the persisted unit of the index.
type Record struct {
	// MediaID is the caller-supplied identifier, unique within the index.
	MediaID string `msgpack:"media_id"`

	// Vector is the embedding of Document. All vectors in one index have
	// identical length.
	Vector []float32 `msgpack:"vector"`

	// Document is the original text content that was embedded, stored
	// verbatim.
	Document string `msgpack:"document"`

	// Metadata maps string keys to scalar values (string/number/bool).
	Metadata map[string]any `msgpack:"metadata"`
}

// Hit is a single result from Query, ordered by ascending distance.
type Hit struct {
	MediaID  string
	Document string
	Metadata map[string]any
	Distance float32
}

// Filter is an equality constraint over metadata fields. A record matches
// only if every filter field equals the stored metadata value.
type Filter map[string]any

// Index is a persistent vector index. All methods are safe for concurrent
// use; writes are serialized by the underlying stores.
type Index struct {
	store  kv.Store
	ann    vecstore.Index
	logger *slog.Logger

	// snapshotPath is the ANN snapshot file; empty when the index was
	// built without a data directory (tests, custom wiring).
	snapshotPath string
}

// New creates an Index over an existing record store and ANN index.
// Both are owned by the returned Index and closed by Close. The ANN index
// must already contain the vectors for every record in the store (Open
// takes care of this for the production wiring).
func New(store kv.Store, ann vecstore.Index, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: store, ann: ann, logger: logger}
}

// Upsert stores a record, fully replacing any prior record under the same
// ID. Vector, document, and metadata are all overwritten; no merging with
// prior metadata occurs.
func (x *Index) Upsert(ctx context.Context, id string, vector []float32, document string, metadata map[string]any) error {
	if id == "" {
		return errors.New("vecindex: empty id")
	}

	rec := Record{
		MediaID:  id,
		Vector:   vector,
		Document: document,
		Metadata: metadata,
	}
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("vecindex: encode record %q: %w", id, err)
	}

	// Record first: it is the source of truth, and the ANN side can always
	// be rebuilt from it.
	if err := x.store.Set(ctx, recordPrefix+id, data); err != nil {
		return fmt.Errorf("vecindex: store record %q: %w", id, err)
	}
	if err := x.ann.Insert(id, vector); err != nil {
		// Roll back so a failed upsert leaves the ID absent on both
		// sides: a record the ANN cannot index would be invisible to
		// Query and Count, and when the upsert was replacing an
		// existing ID the ANN still holds the stale vector.
		if derr := x.store.Delete(ctx, recordPrefix+id); derr != nil {
			x.logger.Error("failed to roll back record after index failure",
				"id", id, "error", derr)
		}
		if derr := x.ann.Delete(id); derr != nil {
			x.logger.Error("failed to roll back vector after index failure",
				"id", id, "error", derr)
		}
		return fmt.Errorf("vecindex: index vector %q: %w", id, err)
	}
	return nil
}

// Delete removes a record by ID. Deleting a non-existent ID is not an error.
func (x *Index) Delete(ctx context.Context, id string) error {
	if err := x.store.Delete(ctx, recordPrefix+id); err != nil {
		return fmt.Errorf("vecindex: delete record %q: %w", id, err)
	}
	if err := x.ann.Delete(id); err != nil {
		return fmt.Errorf("vecindex: delete vector %q: %w", id, err)
	}
	return nil
}

// Get retrieves a record by ID. Returns ErrNotFound if absent.
func (x *Index) Get(ctx context.Context, id string) (*Record, error) {
	data, err := x.store.Get(ctx, recordPrefix+id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vecindex: get record %q: %w", id, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("vecindex: decode record %q: %w", id, err)
	}
	return &rec, nil
}

// Query returns up to k records nearest to the query vector, ordered by
// ascending distance. A non-empty filter excludes records whose metadata
// does not match every filter field, before the top-k cut.
func (x *Index) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	var (
		matches []vecstore.Match
		err     error
	)
	if len(filter) == 0 {
		matches, err = x.ann.Search(vector, k)
	} else {
		matches, err = x.ann.SearchFilter(vector, k, func(id string) bool {
			rec, gerr := x.Get(ctx, id)
			if gerr != nil {
				return false
			}
			return filter.matches(rec.Metadata)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("vecindex: query: %w", err)
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		rec, err := x.Get(ctx, m.ID)
		if errors.Is(err, ErrNotFound) {
			// Vector without a record: skip, the stores drifted.
			x.logger.Warn("vector has no backing record", "id", m.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{
			MediaID:  rec.MediaID,
			Document: rec.Document,
			Metadata: rec.Metadata,
			Distance: m.Distance,
		})
	}
	return hits, nil
}

// Count returns the total number of records in the index.
func (x *Index) Count() int {
	return x.ann.Len()
}

// Close writes an ANN snapshot (when configured) and releases the
// underlying stores.
func (x *Index) Close() error {
	snapErr := x.Snapshot()
	annErr := x.ann.Close()
	storeErr := x.store.Close()
	if snapErr != nil {
		return snapErr
	}
	if annErr != nil {
		return annErr
	}
	return storeErr
}

// matches reports whether metadata satisfies every equality constraint.
func (f Filter) matches(metadata map[string]any) bool {
	for key, want := range f {
		got, ok := metadata[key]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

// scalarEqual compares two scalar metadata values. Numeric values are
// compared by magnitude regardless of concrete type, since msgpack and JSON
// decode numbers differently (int64/uint64/float64).
func scalarEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
