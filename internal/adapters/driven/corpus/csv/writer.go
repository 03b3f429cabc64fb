package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// Ensure Writer implements the interface.
var _ driven.CorpusWriter = (*Writer)(nil)

// Writer writes raw question/answer pairs with the canonical header.
type Writer struct{}

// NewWriter creates a corpus writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write writes items to path, replacing any existing file atomically.
func (w *Writer) Write(ctx context.Context, path string, items []domain.RawQA) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op after successful rename

	cw := csv.NewWriter(tmp)
	if err := cw.Write([]string{ColumnQuestion, ColumnLink, ColumnAnswer}); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		if err := cw.Write([]string{item.Title, item.Link, item.AnswerHTML}); err != nil {
			tmp.Close()
			return fmt.Errorf("write row %d: %w", item.QuestionID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename corpus: %w", err)
	}
	return nil
}
