package vecstore

import (
	"testing"
)

func TestMemoryInsertAndSearch(t *testing.T) {
	vec := NewMemory()

	_ = vec.Insert("a", []float32{1, 0, 0, 0})
	_ = vec.Insert("b", []float32{0, 1, 0, 0})
	_ = vec.Insert("c", []float32{0.9, 0.1, 0, 0})

	matches, err := vec.Search([]float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Errorf("top match = %q, want 'a'", matches[0].ID)
	}
	if matches[1].ID != "c" {
		t.Errorf("second match = %q, want 'c'", matches[1].ID)
	}
}

func TestMemorySearchFilter(t *testing.T) {
	vec := NewMemory()
	_ = vec.Insert("a", []float32{1, 0, 0})
	_ = vec.Insert("b", []float32{0.99, 0.01, 0})
	_ = vec.Insert("c", []float32{0.9, 0.1, 0})

	// Without a filter, "b" would crowd out "c" at topK=2. The predicate
	// must be applied before the cut.
	allow := func(id string) bool { return id != "b" }
	matches, err := vec.SearchFilter([]float32{1, 0, 0}, 2, allow)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" || matches[1].ID != "c" {
		t.Errorf("filtered matches = %v, want [a c]", matches)
	}
}

func TestMemoryDelete(t *testing.T) {
	vec := NewMemory()
	_ = vec.Insert("a", []float32{1, 0})
	if vec.Len() != 1 {
		t.Fatalf("Len = %d, want 1", vec.Len())
	}
	_ = vec.Delete("a")
	if vec.Len() != 0 {
		t.Errorf("Len after delete = %d, want 0", vec.Len())
	}
	// Delete nonexistent should not error.
	if err := vec.Delete("nonexistent"); err != nil {
		t.Fatal(err)
	}
}

func TestMemorySearchEmpty(t *testing.T) {
	vec := NewMemory()
	matches, err := vec.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if matches != nil {
		t.Errorf("expected nil for empty index, got %v", matches)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
		{"dim mismatch", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"scale invariant", []float32{2, 0}, []float32{5, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("CosineDistance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistanceRange(t *testing.T) {
	vecs := [][]float32{
		{1, 2, 3}, {-1, 2, -3}, {0.5, -0.5, 0}, {10, 0, 0},
	}
	for _, a := range vecs {
		for _, b := range vecs {
			d := CosineDistance(a, b)
			if d < 0 || d > 2 {
				t.Errorf("CosineDistance(%v, %v) = %v, out of [0, 2]", a, b, d)
			}
		}
	}
}
