// Package keyword provides the in-process BM25 lexical index built over the
// same chunk corpus as the vector index.
package keyword

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// BM25 free parameters; standard Okapi values.
const (
	k1 = 1.5
	b  = 0.75
)

var tokenRe = regexp.MustCompile(`\w+`)

// Tokenize lowercases text and extracts maximal runs of word characters;
// punctuation is dropped.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// Index is an immutable BM25 index over parallel id/text/metadata arrays.
// Safe for concurrent queries once built.
type Index struct {
	ids       []string
	texts     []string
	metadatas []domain.Metadata

	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgDocLen float64
}

// New builds a BM25 index from parallel arrays. The three slices must have
// equal length.
func New(ids, texts []string, metadatas []domain.Metadata) (*Index, error) {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return nil, fmt.Errorf("parallel arrays must have equal length: ids=%d texts=%d metadatas=%d",
			len(ids), len(texts), len(metadatas))
	}

	ix := &Index{
		ids:       ids,
		texts:     texts,
		metadatas: metadatas,
		termFreqs: make([]map[string]int, len(texts)),
		docLens:   make([]int, len(texts)),
		docFreq:   make(map[string]int),
	}

	var totalLen int
	for i, text := range texts {
		tokens := Tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		ix.termFreqs[i] = tf
		ix.docLens[i] = len(tokens)
		totalLen += len(tokens)
		for tok := range tf {
			ix.docFreq[tok]++
		}
	}
	if len(texts) > 0 {
		ix.avgDocLen = float64(totalLen) / float64(len(texts))
	}

	return ix, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.ids) }

// Query scores every indexed chunk against the query terms and returns the
// topK chunks by descending raw BM25 score. Equal scores keep corpus order
// (stable sort), matching snapshot iteration order across runs.
func (ix *Index) Query(query string, topK int) []domain.RetrievedChunk {
	if ix.Len() == 0 || topK <= 0 {
		return nil
	}

	terms := Tokenize(query)

	type scoredDoc struct {
		pos   int
		score float64
	}
	scored := make([]scoredDoc, ix.Len())
	for i := range scored {
		scored[i] = scoredDoc{pos: i, score: ix.score(terms, i)}
	}

	sort.SliceStable(scored, func(a, c int) bool {
		return scored[a].score > scored[c].score
	})

	if topK > len(scored) {
		topK = len(scored)
	}

	out := make([]domain.RetrievedChunk, 0, topK)
	for _, sd := range scored[:topK] {
		out = append(out, domain.RetrievedChunk{
			ID:       ix.ids[sd.pos],
			Text:     ix.texts[sd.pos],
			Metadata: ix.metadatas[sd.pos],
			Score:    sd.score,
		})
	}
	return out
}

// score computes the BM25 score of document pos for the given query terms,
// using the non-negative Lucene idf variant.
func (ix *Index) score(terms []string, pos int) float64 {
	tf := ix.termFreqs[pos]
	dl := float64(ix.docLens[pos])

	var s float64
	for _, term := range terms {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		n := float64(ix.docFreq[term])
		idf := math.Log(1 + (float64(ix.Len())-n+0.5)/(n+0.5))
		s += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*dl/ix.avgDocLen))
	}
	return s
}
