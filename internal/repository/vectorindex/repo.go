// Package vectorindex adapts the Redis FT vector index to the narrow
// upsert/query/count contract the retrieval pipeline consumes.
package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/jobrag/internal/db"
	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Hash field names reserved for chunk payload; everything else on the hash
// is chunk metadata. fieldScore is the KNN score alias Redis derives from
// the vector field name under DIALECT 2.
const (
	fieldContent = "content"
	fieldVector  = "vector"
	fieldScore   = "__vector_score"
)

// store is the consumer interface for vector index operations.
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config holds index naming and HNSW build parameters.
type Config struct {
	IndexName   string
	KeyPrefix   string
	HNSWM       int
	EFConstruct int
}

// Repo implements the vector index contract over a Redis store.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector index repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", r.cfg.KeyPrefix, r.cfg.IndexName)
}

func (r *Repo) docPrefix() string {
	return fmt.Sprintf("%s%s:", r.cfg.KeyPrefix, r.cfg.IndexName)
}

// Ensure checks that the FT index exists, creating it when a vector
// dimension is available. Absent index with dim <= 0 is a fatal
// misconfiguration: there is nothing to create the index from.
func (r *Repo) Ensure(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("probe index %s: %w", r.cfg.IndexName, err)
	}
	if exists {
		return nil
	}
	if dim <= 0 {
		return fmt.Errorf("index %s absent and no embedding dimension provided: %w",
			r.cfg.IndexName, domain.ErrIndexNotFound)
	}

	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.docPrefix()},
		Fields: []db.IndexField{
			{Name: fieldContent, Type: db.IndexFieldText},
			{Name: domain.MetaCategory, Type: db.IndexFieldTag},
			{Name: domain.MetaLevel, Type: db.IndexFieldTag},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.cfg.HNSWM,
				VectorEFConstruct: r.cfg.EFConstruct,
			},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Lost the race against a concurrent creator; the index is there.
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.cfg.IndexName, err)
	}
	return nil
}

// Recreate drops the FT index if present and creates it fresh. Documents
// keep their hashes; the new index re-indexes everything under the prefix,
// so a re-ingestion run overwrites stale entries by id.
func (r *Repo) Recreate(ctx context.Context, dim int) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.cfg.IndexName, err)
	}
	return r.Ensure(ctx, dim)
}

// Upsert associates each id with its vector, document text and metadata,
// overwriting entries sharing the id. An empty id list is a no-op.
func (r *Repo) Upsert(
	ctx context.Context,
	ids []string, vectors [][]float32, documents []string, metadatas []domain.Metadata,
) error {
	if len(ids) == 0 {
		return nil
	}
	if len(vectors) != len(ids) || len(documents) != len(ids) || len(metadatas) != len(ids) {
		return fmt.Errorf("parallel arrays must have equal length: ids=%d vectors=%d documents=%d metadatas=%d",
			len(ids), len(vectors), len(documents), len(metadatas))
	}

	items := make([]db.HashSetItem, len(ids))
	for i, id := range ids {
		fields := make(map[string]string, len(metadatas[i])+2)
		for k, v := range metadatas[i] {
			fields[k] = v
		}
		fields[fieldContent] = documents[i]
		fields[fieldVector] = vectorBytes(vectors[i])
		items[i] = db.HashSetItem{Key: r.docPrefix() + id, Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(ids), err)
	}
	return nil
}

// Query runs one KNN search per input vector and returns one ranked hit
// list per vector, each capped at n hits ordered by descending similarity.
// An empty vector list returns an empty result.
func (r *Repo) Query(ctx context.Context, vectors [][]float32, n int) ([][]domain.RetrievedChunk, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	returnFields := []string{fieldContent, fieldScore,
		domain.MetaJobID, domain.MetaJobTitle, domain.MetaCompany, domain.MetaLocation,
		domain.MetaLevel, domain.MetaCategory, domain.MetaTags, domain.MetaPublicationDate,
	}

	out := make([][]domain.RetrievedChunk, 0, len(vectors))
	for _, vec := range vectors {
		sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:    r.indexName(),
			Vector:       vec,
			K:            n,
			ReturnFields: returnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("knn search %s: %w", r.cfg.IndexName, err)
		}
		out = append(out, r.parseHits(sr))
	}
	return out, nil
}

// Count returns the total number of indexed chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	count, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.cfg.IndexName, err)
	}
	return count, nil
}

func (r *Repo) parseHits(sr *db.SearchResult) []domain.RetrievedChunk {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]domain.RetrievedChunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		meta := make(domain.Metadata, len(entry.Fields))
		var text string
		for k, v := range entry.Fields {
			switch k {
			case fieldContent:
				text = v
			case fieldVector:
				// raw vector blob, not part of the hit
			default:
				meta[k] = v
			}
		}
		hits = append(hits, domain.RetrievedChunk{
			ID:       strings.TrimPrefix(entry.Key, r.docPrefix()),
			Text:     text,
			Metadata: meta,
			Score:    entry.Score,
		})
	}
	return hits
}

// vectorBytes serializes []float32 to the FLOAT32 little-endian blob format
// stored in the hash vector field.
func vectorBytes(v []float32) string {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return string(b)
}
