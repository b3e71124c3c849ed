package db

// KNNQuery is the input for vector similarity search. The target index must
// declare its vector field under the name "vector"; the driver addresses it
// as @vector and reads the __vector_score alias Redis derives from it.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
