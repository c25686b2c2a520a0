package vecindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mediahub/aisvc/pkg/kv"
)

// removeSnapshot deletes the ANN snapshot file from a data directory.
func removeSnapshot(dir string) error {
	err := os.Remove(filepath.Join(dir, snapshotFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func TestOpenSkipsUnindexableRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	x, err := Open(Options{Dir: dir, Dim: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Upsert(ctx, "good", []float32{1, 0}, "good doc", nil); err != nil {
		t.Fatal(err)
	}
	if err := x.Close(); err != nil {
		t.Fatal(err)
	}

	// Plant a record whose vector length does not match the index
	// dimension, as an older writer could have left behind.
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(dir, "records")})
	if err != nil {
		t.Fatal(err)
	}
	bad := Record{MediaID: "bad", Vector: []float32{1, 0, 0}, Document: "bad doc"}
	data, err := msgpack.Marshal(&bad)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, recordPrefix+"bad", data); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Force the rebuild path.
	if err := removeSnapshot(dir); err != nil {
		t.Fatal(err)
	}

	// One bad record must not keep the index from opening.
	x2, err := Open(Options{Dir: dir, Dim: 2})
	if err != nil {
		t.Fatalf("Open with unindexable record: %v", err)
	}
	defer x2.Close()

	if x2.Count() != 1 {
		t.Errorf("Count = %d, want 1 (bad record skipped)", x2.Count())
	}
	hits, err := x2.Query(ctx, []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].MediaID != "good" {
		t.Errorf("Query = %v, want [good]", hits)
	}
}
