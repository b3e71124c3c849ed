package domain

// Metadata is the flat string-to-string payload attached to every indexed
// chunk (job title, company, location, level, category, tags, publication date).
// Read-only after indexing.
type Metadata map[string]string

// Well-known metadata keys populated by the ingestion pipeline.
const (
	MetaJobID           = "job_id"
	MetaJobTitle        = "job_title"
	MetaCompany         = "company"
	MetaLocation        = "location"
	MetaLevel           = "level"
	MetaCategory        = "category"
	MetaTags            = "tags"
	MetaPublicationDate = "publication_date"
)

// RetrievedChunk is an ephemeral per-query hit. The meaning of Score depends
// on the stage that produced it (raw cosine similarity, raw BM25, fused
// normalized score, or reranker relevance) and must never be compared across
// stages without renormalization.
type RetrievedChunk struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}
