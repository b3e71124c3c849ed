package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

const promptInstructions = "You are an expert job assistant. Use ONLY the provided context. " +
	"Do not invent companies, roles, or locations. If the context is insufficient, say so.\n\n" +
	"Query: %s\n\n" +
	"Context:\n%s\n\n" +
	"Respond ONLY in this exact format:\n" +
	"SUMMARY: <2-4 sentences>\n" +
	"JOBS:\n" +
	"- <Job Title> | <Company> | <Location> | <1-sentence reason>\n" +
	"- <Job Title> | <Company> | <Location> | <1-sentence reason>\n" +
	"If there are no relevant jobs in context, return SUMMARY and then JOBS: with no bullets."

// BuildPrompt assembles the grounded generation prompt: one numbered block
// per chunk with a metadata header line, then strict output-format
// instructions. Missing metadata falls back to neutral placeholders so the
// header shape stays constant.
func BuildPrompt(query string, chunks []domain.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		header := fmt.Sprintf("[%d] %s at %s | %s | Level: %s",
			i+1,
			metaOr(chunk.Metadata, domain.MetaJobTitle, "Unknown Role"),
			metaOr(chunk.Metadata, domain.MetaCompany, "Unknown Company"),
			metaOr(chunk.Metadata, domain.MetaLocation, "N/A"),
			metaOr(chunk.Metadata, domain.MetaLevel, "N/A"),
		)
		blocks = append(blocks, header+"\n"+chunk.Text)
	}

	context := "No context found."
	if len(blocks) > 0 {
		context = strings.Join(blocks, "\n\n")
	}
	return fmt.Sprintf(promptInstructions, query, context)
}

func metaOr(meta domain.Metadata, key, fallback string) string {
	if v, ok := meta[key]; ok && v != "" {
		return v
	}
	return fallback
}
