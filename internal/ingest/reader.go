// Package ingest builds the vector and keyword indexes from a job postings
// CSV export.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kailas-cloud/jobrag/internal/chunker"
)

// JobRecord is one row of the source dataset with the description already
// stripped of HTML and whitespace-normalized.
type JobRecord struct {
	JobID           string
	Category        string
	Title           string
	Company         string
	PublicationDate string
	Location        string
	Level           string
	Tags            string
	Description     string
}

// Source CSV column headers. Header cells are trimmed before matching, so
// exports with padded headers still load.
const (
	colID              = "ID"
	colCategory        = "Job Category"
	colTitle           = "Job Title"
	colCompany         = "Company Name"
	colPublicationDate = "Publication Date"
	colLocation        = "Job Location"
	colLevel           = "Job Level"
	colTags            = "Tags"
	colDescription     = "Job Description"
)

// ReadJobs parses the CSV dataset at path. Missing columns yield empty
// fields rather than errors; rows are returned in file order.
func ReadJobs(path string) ([]JobRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := parseJobs(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func parseJobs(r io.Reader) ([]JobRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var jobs []JobRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(jobs)+2, err)
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return row[idx]
		}

		jobs = append(jobs, JobRecord{
			JobID:           field(colID),
			Category:        field(colCategory),
			Title:           field(colTitle),
			Company:         field(colCompany),
			PublicationDate: field(colPublicationDate),
			Location:        field(colLocation),
			Level:           field(colLevel),
			Tags:            field(colTags),
			Description:     chunker.StripHTML(field(colDescription)),
		})
	}
	return jobs, nil
}
