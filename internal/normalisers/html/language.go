package html

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.LanguageDetector = (*Detector)(nil)

// LanguageText is the tag used when no rule matches.
const LanguageText = "text"

// LanguageRule tags code that matches Pattern.
type LanguageRule struct {
	Tag     string
	Pattern *regexp.Regexp
}

// DefaultLanguageRules is the ordered rule list; the first match wins.
// C# comes before Java and Python so that ambiguous class declarations
// resolve the way the Stack Overflow C# corpus expects.
var DefaultLanguageRules = []LanguageRule{
	{Tag: "csharp", Pattern: regexp.MustCompile(
		`class\s+\w+|public\s+\w+|private\s+\w+|namespace|using\s+\w+|Console\.|string\[\]|int\[\]|List<|Dictionary<`)},
	{Tag: "java", Pattern: regexp.MustCompile(
		`public\s+class|private\s+class|protected\s+class|import\s+java\.|System\.out\.|String\[\]|ArrayList<|HashMap<`)},
	{Tag: "javascript", Pattern: regexp.MustCompile(
		`function\s+\w+|const\s+\w+|let\s+\w+|var\s+\w+|document\.|window\.|=>|Promise<|async|await`)},
	{Tag: "python", Pattern: regexp.MustCompile(
		`def\s+\w+|class\s+\w+:|import\s+\w+|from\s+\w+\s+import|print\(|if\s+__name__\s*==\s*['"]__main__['"]`)},
	{Tag: "sql", Pattern: regexp.MustCompile(
		`(?i)SELECT|INSERT|UPDATE|DELETE|CREATE TABLE|ALTER TABLE|DROP TABLE|JOIN|WHERE|GROUP BY`)},
	{Tag: "html", Pattern: regexp.MustCompile(`<html|<body|<div|<p|<script|<style`)},
	{Tag: "xml", Pattern: regexp.MustCompile(`^(?:<\?xml|<\w+.*?>)`)},
	{Tag: "css", Pattern: regexp.MustCompile(`\{[\s\S]*?\}|@media|@keyframes|#\w+|\.\w+`)},
	{Tag: "powershell", Pattern: regexp.MustCompile(`\$\w+|Get-|Set-|New-|Remove-`)},
	{Tag: "bash", Pattern: regexp.MustCompile(`#!/bin/|echo|grep|sed|awk|\$\(\w+\)`)},
}

// languageAliases maps class-attribute spellings to canonical tags.
var languageAliases = map[string]string{
	"cs":        "csharp",
	"c#":        "csharp",
	"js":        "javascript",
	"ts":        "typescript",
	"py":        "python",
	"sh":        "bash",
	"shell":     "bash",
	"ps":        "powershell",
	"ps1":       "powershell",
	"none":      LanguageText,
	"plaintext": LanguageText,
	"default":   "",
	"hljs":      "",
}

// Detector infers code languages from an ordered rule list.
type Detector struct {
	rules []LanguageRule
}

// NewDetector creates a detector. With no rules, DefaultLanguageRules is used.
func NewDetector(rules ...LanguageRule) *Detector {
	if len(rules) == 0 {
		rules = DefaultLanguageRules
	}
	return &Detector{rules: rules}
}

// Detect returns the tag of the first matching rule, or LanguageText.
func (d *Detector) Detect(code string) string {
	for _, rule := range d.rules {
		if rule.Pattern.MatchString(code) {
			return rule.Tag
		}
	}
	return LanguageText
}

// languageFromClass extracts an explicit language from a class attribute
// such as "lang-cs s-code-block" or "hljs language-python".
// Returns "" when the class names no language.
func languageFromClass(class string) string {
	for _, token := range strings.Fields(class) {
		token = strings.ToLower(token)
		var lang string
		switch {
		case strings.HasPrefix(token, "language-"):
			lang = strings.TrimPrefix(token, "language-")
		case strings.HasPrefix(token, "lang-"):
			lang = strings.TrimPrefix(token, "lang-")
		default:
			continue
		}
		if alias, ok := languageAliases[lang]; ok {
			lang = alias
		}
		if lang != "" {
			return lang
		}
	}
	return ""
}
