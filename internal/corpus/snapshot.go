// Package corpus loads pre-chunked book snapshots into the vector
// store. A snapshot is JSONL: one passage per line with its chapter,
// section and fingerprint metadata already assigned by the ingestion
// pipeline that produced it.
package corpus

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/kzidane/askbook/internal/progress"
	"github.com/kzidane/askbook/internal/vectordb"
)

// indexBatchSize bounds how many passages are embedded per store call.
const indexBatchSize = 32

type snapshotRecord struct {
	ID          string            `json:"id,omitempty"`
	Content     string            `json:"content"`
	Chapter     string            `json:"chapter,omitempty"`
	Section     string            `json:"section,omitempty"`
	FilePath    string            `json:"file_path,omitempty"`
	ContentHash string            `json:"content_hash,omitempty"`
	IsTemplate  bool              `json:"is_template,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// ReadSnapshot parses a JSONL snapshot. Blank lines are skipped;
// malformed lines and passages without content fail with the line
// number so broken snapshots are easy to fix.
func ReadSnapshot(r io.Reader) ([]vectordb.Passage, error) {
	var passages []vectordb.Passage

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec snapshotRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		if strings.TrimSpace(rec.Content) == "" {
			return nil, fmt.Errorf("line %d: passage has no content", line)
		}

		passages = append(passages, toPassage(rec))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return passages, nil
}

// LoadFile reads a snapshot from disk.
func LoadFile(path string) ([]vectordb.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	passages, err := ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return passages, nil
}

func toPassage(rec snapshotRecord) vectordb.Passage {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	hash := rec.ContentHash
	if hash == "" {
		sum := sha256.Sum256([]byte(rec.Content))
		hash = hex.EncodeToString(sum[:])
	}
	return vectordb.Passage{
		ID:      id,
		Content: rec.Content,
		Meta: vectordb.PassageMeta{
			Chapter:     rec.Chapter,
			Section:     rec.Section,
			FilePath:    rec.FilePath,
			ContentHash: hash,
			IsTemplate:  rec.IsTemplate,
			Extra:       rec.Extra,
		},
	}
}

// Index adds passages to the store in batches, reporting progress.
// reporter may be nil.
func Index(ctx context.Context, store vectordb.VectorStore, passages []vectordb.Passage, reporter progress.Reporter) error {
	if reporter != nil {
		reporter.Start(len(passages))
		defer reporter.Finish()
	}

	for start := 0; start < len(passages); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(passages) {
			end = len(passages)
		}

		if err := store.AddPassages(ctx, passages[start:end]); err != nil {
			return fmt.Errorf("indexing passages %d-%d: %w", start+1, end, err)
		}
		if reporter != nil {
			reporter.Update(end, fmt.Sprintf("%d passages indexed", end))
		}
	}
	return nil
}
