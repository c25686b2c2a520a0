// Package vecstore provides approximate nearest-neighbor (ANN) search over
// dense float32 vectors.
//
// The [Index] interface defines the contract for vector search. Two
// implementations are included: an in-memory brute-force index ([NewMemory])
// that is exact and suited to testing and small collections, and an HNSW
// graph index ([NewHNSW]) for larger collections, with binary snapshot
// support for fast restart ([HNSW.Save], [LoadHNSW]).
//
// Both support filtered search: [Index.SearchFilter] applies an ID predicate
// before the top-k cut, so a query for k results under a metadata filter
// returns up to k matching records rather than filtering after truncation.
package vecstore

// Index is the interface for nearest-neighbor search over dense float32
// vectors.
//
// All implementations must be safe for concurrent use.
type Index interface {
	// Insert adds or replaces a vector with the given ID.
	Insert(id string, vector []float32) error

	// Search returns the top-k nearest vectors to the query.
	// Results are ordered by ascending distance (closest first).
	Search(query []float32, topK int) ([]Match, error)

	// SearchFilter is Search restricted to IDs for which allow returns
	// true. The predicate is applied before the top-k cut. A nil predicate
	// behaves like Search.
	SearchFilter(query []float32, topK int, allow func(id string) bool) ([]Match, error)

	// Delete removes a vector by ID. No error if ID does not exist.
	Delete(id string) error

	// Len returns the number of vectors in the index.
	Len() int

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a vector similarity search.
type Match struct {
	// ID is the identifier of the matched vector.
	ID string

	// Distance is the cosine distance between the query and matched
	// vector, in [0, 2]. Lower values indicate higher similarity.
	Distance float32
}
