// Package html turns Stack Overflow answer HTML into clean text.
// Paragraphs, lists and quotes become plain text, code blocks are fenced
// with a language tag, links keep their targets and math keeps its delimiters.
package html
