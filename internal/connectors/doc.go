// Package connectors holds clients for upstream Q&A sources. Each connector
// implements driven.QuestionSource so fetched questions can be written to a
// corpus file.
package connectors
