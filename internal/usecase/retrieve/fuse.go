package retrieve

import (
	"sort"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// normEpsilon guards min-max normalization against all-equal score lists.
const normEpsilon = 1e-8

// normalize rescales scores into [0,1] via min-max. A degenerate list where
// max-min < epsilon (all scores effectively equal) maps every score to 1.0;
// an empty list stays empty.
func normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	minVal, maxVal := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minVal {
			minVal = s
		}
		if s > maxVal {
			maxVal = s
		}
	}

	out := make([]float64, len(scores))
	if maxVal-minVal < normEpsilon {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - minVal) / (maxVal - minVal)
	}
	return out
}

// fuse merges vector and keyword result lists into one ranked list of at
// most topK chunks. Each list's scores are min-max normalized
// independently; a vector hit contributes (1-alpha)·score, a keyword hit
// alpha·score, summed when both found the same id. A chunk surfaced by only
// one method can outrank one found by both when its single-method score
// dominates after normalization; that is the intended union semantics.
//
// Exactly equal fused scores order by ascending id so results are stable
// across runs regardless of merge order.
func fuse(vector, keyword []domain.RetrievedChunk, alpha float64, topK int) []domain.RetrievedChunk {
	vectorScores := normalize(chunkScores(vector))
	keywordScores := normalize(chunkScores(keyword))

	fused := make(map[string]domain.RetrievedChunk, len(vector)+len(keyword))
	for i, hit := range vector {
		hit.Score = (1 - alpha) * vectorScores[i]
		fused[hit.ID] = hit
	}
	for i, hit := range keyword {
		contribution := alpha * keywordScores[i]
		if existing, ok := fused[hit.ID]; ok {
			existing.Score += contribution
			fused[hit.ID] = existing
		} else {
			hit.Score = contribution
			fused[hit.ID] = hit
		}
	}

	merged := make([]domain.RetrievedChunk, 0, len(fused))
	for _, hit := range fused {
		merged = append(merged, hit)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

func chunkScores(chunks []domain.RetrievedChunk) []float64 {
	if len(chunks) == 0 {
		return nil
	}
	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = c.Score
	}
	return scores
}
