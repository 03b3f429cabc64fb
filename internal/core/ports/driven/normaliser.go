package driven

// Normaliser converts answer HTML into clean text with fenced code blocks.
type Normaliser interface {
	// Normalize returns the cleaned text. Empty or unparseable input yields "".
	Normalize(html string) string
}

// LanguageDetector infers a code block language tag.
type LanguageDetector interface {
	// Detect returns a language tag, or "text" when nothing matches.
	Detect(code string) string
}
