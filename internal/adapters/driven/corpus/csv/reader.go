// Package csv reads and writes question/answer corpora in CSV form.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.CorpusReader = (*Reader)(nil)

// Canonical column names.
const (
	ColumnQuestion = "question_title"
	ColumnLink     = "question_link"
	ColumnAnswer   = "accepted_answer_body"
)

// columnAliases lists accepted header spellings per canonical column.
var columnAliases = map[string][]string{
	ColumnQuestion: {ColumnQuestion, "title", "question"},
	ColumnLink:     {ColumnLink, "link", "url"},
	ColumnAnswer:   {ColumnAnswer, "answer", "answer_body", "body"},
}

// recordNamespace seeds deterministic record IDs.
var recordNamespace = uuid.MustParse("6f1c9a52-3b0e-5d7a-9c41-2e8f7b6d5a10")

// Config configures a Reader.
type Config struct {
	// AllowMissingLink accepts corpora without a link column.
	AllowMissingLink bool
}

// Reader loads a corpus CSV and normalises every answer.
type Reader struct {
	normaliser driven.Normaliser
	cfg        Config
}

// NewReader creates a reader that cleans answers with normaliser.
func NewReader(normaliser driven.Normaliser, cfg Config) *Reader {
	return &Reader{normaliser: normaliser, cfg: cfg}
}

// Load reads the corpus at path. Rows with a missing question or answer, or
// the wrong number of fields, are skipped with a warning.
func (r *Reader) Load(ctx context.Context, path string) ([]domain.QARecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	return r.Read(ctx, f)
}

// Read parses a corpus from rd.
func (r *Reader) Read(ctx context.Context, rd io.Reader) ([]domain.QARecord, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", domain.ErrCorpusFormat)
		}
		return nil, fmt.Errorf("%w: read header: %w", domain.ErrCorpusFormat, err)
	}

	cols, err := r.resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var (
		records []domain.QARecord
		skipped int
		line    = 1
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("corpus line %d: %v", line, err)
			skipped++
			continue
		}
		if len(row) != len(header) {
			logger.Warn("corpus line %d: expected %d fields, got %d", line, len(header), len(row))
			skipped++
			continue
		}

		if !validUTF8(row) {
			logger.Warn("corpus line %d: invalid UTF-8", line)
			skipped++
			continue
		}

		question := strings.TrimSpace(row[cols.question])
		rawAnswer := row[cols.answer]
		if question == "" || strings.TrimSpace(rawAnswer) == "" {
			logger.Warn("corpus line %d: missing question or answer", line)
			skipped++
			continue
		}

		answer := r.normaliser.Normalize(rawAnswer)
		if strings.TrimSpace(answer) == "" {
			logger.Debug("corpus line %d: answer empty after cleaning", line)
			skipped++
			continue
		}

		link := ""
		if cols.link >= 0 {
			link = strings.TrimSpace(row[cols.link])
		}

		records = append(records, domain.QARecord{
			ID:         RecordID(question, link, answer),
			Question:   question,
			Answer:     answer,
			SourceLink: link,
		})
	}

	logger.Info("loaded %d records (%d skipped)", len(records), skipped)
	return records, nil
}

type columns struct {
	question int
	link     int
	answer   int
}

func (r *Reader) resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	find := func(canonical string) int {
		for _, alias := range columnAliases[canonical] {
			if i, ok := index[alias]; ok {
				return i
			}
		}
		return -1
	}

	cols := columns{
		question: find(ColumnQuestion),
		link:     find(ColumnLink),
		answer:   find(ColumnAnswer),
	}

	var missing []string
	if cols.question < 0 {
		missing = append(missing, ColumnQuestion)
	}
	if cols.link < 0 && !r.cfg.AllowMissingLink {
		missing = append(missing, ColumnLink)
	}
	if cols.answer < 0 {
		missing = append(missing, ColumnAnswer)
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: missing required columns: %s",
			domain.ErrCorpusFormat, strings.Join(missing, ", "))
	}
	return cols, nil
}

// RecordID derives a stable identifier from record content.
func RecordID(question, link, answer string) string {
	return uuid.NewSHA1(recordNamespace, []byte(question+"\x00"+link+"\x00"+answer)).String()
}

func validUTF8(row []string) bool {
	for _, field := range row {
		if !utf8.ValidString(field) {
			return false
		}
	}
	return true
}
