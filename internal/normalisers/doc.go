// Package normalisers turns upstream markup into the plain text that is
// embedded and shown to users. Stack Overflow answers arrive as HTML, handled
// by the html subpackage.
package normalisers
