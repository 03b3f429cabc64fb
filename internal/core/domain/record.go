package domain

import "strings"

// QARecord is one cleaned question/answer pair from the corpus.
// Records with an empty question or an empty cleaned answer are never indexed.
type QARecord struct {
	// ID is a stable identifier derived from the record content.
	ID string `json:"id"`

	// Question is the question title.
	Question string `json:"question"`

	// Answer is the normalised accepted answer body.
	Answer string `json:"answer"`

	// SourceLink is the URL of the original question. May be empty.
	SourceLink string `json:"source_link,omitempty"`
}

// Valid reports whether the record carries enough content to be indexed.
func (r QARecord) Valid() bool {
	return strings.TrimSpace(r.Question) != "" && strings.TrimSpace(r.Answer) != ""
}

// DocumentText returns the text that is embedded for this record:
// the question and answer separated by a single newline.
func (r QARecord) DocumentText() string {
	return r.Question + "\n" + r.Answer
}

// RawQA is an uncleaned question/answer pair as fetched from an upstream
// source, before HTML normalisation.
type RawQA struct {
	QuestionID int64
	Title      string
	Link       string
	AnswerHTML string
	Tags       []string
	Score      int
}

// FetchQuery selects questions to fetch from an upstream site.
type FetchQuery struct {
	// Tag restricts questions to one tag, e.g. "c#".
	Tag string

	// MaxPages bounds pagination. Zero means one page.
	MaxPages int

	// PageSize is the number of questions per page.
	PageSize int
}
