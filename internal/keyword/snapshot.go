package keyword

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// SnapshotFile is the keyword index snapshot filename inside the snapshot
// directory. It is rebuilt wholesale on each ingestion run.
const SnapshotFile = "keyword_index.json"

// snapshot is the persisted form of the index: the raw parallel arrays.
// Token statistics are rebuilt on load rather than serialized.
type snapshot struct {
	IDs       []string          `json:"ids"`
	Texts     []string          `json:"texts"`
	Metadatas []domain.Metadata `json:"metadatas"`
}

// Save writes the index corpus as a single JSON blob at path, replacing any
// previous snapshot.
func Save(path string, ids, texts []string, metadatas []domain.Metadata) error {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return fmt.Errorf("parallel arrays must have equal length: ids=%d texts=%d metadatas=%d",
			len(ids), len(texts), len(metadatas))
	}

	data, err := json.Marshal(snapshot{IDs: ids, Texts: texts, Metadatas: metadatas})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot and rebuilds the BM25 index by re-tokenizing the
// corpus. A missing file satisfies errors.Is(err, fs.ErrNotExist); callers
// treat it as "hybrid disabled", not a failure.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(snap.IDs) != len(snap.Texts) || len(snap.IDs) != len(snap.Metadatas) {
		return nil, fmt.Errorf("corrupt snapshot: ids=%d texts=%d metadatas=%d",
			len(snap.IDs), len(snap.Texts), len(snap.Metadatas))
	}

	return New(snap.IDs, snap.Texts, snap.Metadatas)
}
