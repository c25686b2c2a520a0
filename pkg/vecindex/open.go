package vecindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mediahub/aisvc/pkg/kv"
	"github.com/mediahub/aisvc/pkg/vecstore"
)

// snapshotFile is the ANN snapshot filename inside the data directory.
const snapshotFile = "hnsw.idx"

// Options configures Open.
type Options struct {
	// Dir is the data directory. Records are stored in Dir/records and
	// the ANN snapshot in Dir/hnsw.idx. Required.
	Dir string

	// Dim is the vector dimensionality. Required; must match the
	// embedding model's output length.
	Dim int

	// Logger is used for startup and drift diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Open creates or reopens a persistent vector index in the given directory.
//
// The record store (BadgerDB) is the source of truth. The HNSW side is
// restored from the snapshot file when it exists and is consistent with the
// records (same dimension, same count); otherwise it is rebuilt by scanning
// the records. Close writes a fresh snapshot.
func Open(opts Options) (*Index, error) {
	if opts.Dir == "" {
		return nil, errors.New("vecindex: Options.Dir is required")
	}
	if opts.Dim <= 0 {
		return nil, errors.New("vecindex: Options.Dim must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(opts.Dir, "records")})
	if err != nil {
		return nil, fmt.Errorf("vecindex: open record store: %w", err)
	}

	ann, err := restoreANN(store, opts, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	x := New(store, ann, logger)
	x.snapshotPath = filepath.Join(opts.Dir, snapshotFile)
	return x, nil
}

// restoreANN loads the HNSW snapshot or rebuilds the graph from records.
func restoreANN(store kv.Store, opts Options, logger *slog.Logger) (*vecstore.HNSW, error) {
	ctx := context.Background()

	want, err := store.Count(ctx, recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("vecindex: count records: %w", err)
	}

	path := filepath.Join(opts.Dir, snapshotFile)
	if f, err := os.Open(path); err == nil {
		ann, lerr := vecstore.LoadHNSW(f)
		_ = f.Close()
		switch {
		case lerr != nil:
			logger.Warn("ANN snapshot unreadable, rebuilding", "path", path, "error", lerr)
		case ann.Dim() != opts.Dim:
			logger.Warn("ANN snapshot dimension mismatch, rebuilding",
				"snapshot_dim", ann.Dim(), "want_dim", opts.Dim)
		case ann.Len() != want:
			logger.Warn("ANN snapshot out of sync with records, rebuilding",
				"snapshot_count", ann.Len(), "record_count", want)
		default:
			logger.Info("ANN snapshot loaded", "vectors", ann.Len())
			return ann, nil
		}
	}

	ann := vecstore.NewHNSW(vecstore.HNSWConfig{Dim: opts.Dim})
	n := 0
	for entry, err := range store.List(ctx, recordPrefix) {
		if err != nil {
			return nil, fmt.Errorf("vecindex: scan records: %w", err)
		}
		var rec Record
		if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
			logger.Warn("skipping malformed record", "key", entry.Key, "error", err)
			continue
		}
		if err := ann.Insert(rec.MediaID, rec.Vector); err != nil {
			// Same policy as undecodable records: one bad record must
			// not keep the whole index from opening.
			logger.Warn("skipping unindexable record", "key", entry.Key, "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		logger.Info("ANN index rebuilt from records", "vectors", n)
	}
	return ann, nil
}

// snapshotter is implemented by ANN indexes that support binary snapshots.
type snapshotter interface {
	Save(w io.Writer) error
}

// Snapshot writes the current ANN state to the snapshot file, atomically
// via a temp file rename. It is a no-op for indexes opened without a data
// directory or whose ANN side does not support snapshots.
func (x *Index) Snapshot() error {
	if x.snapshotPath == "" {
		return nil
	}
	s, ok := x.ann.(snapshotter)
	if !ok {
		return nil
	}

	tmp := x.snapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("vecindex: snapshot: %w", err)
	}
	if err := s.Save(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("vecindex: snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("vecindex: snapshot: %w", err)
	}
	return os.Rename(tmp, x.snapshotPath)
}
