// Package domain defines the core business entities for stackqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - QARecord: A cleaned question/answer pair from the corpus
//   - RetrievalResult: A ranked, confidence-labelled match
//   - IndexSnapshot: The persisted form of a vector index
//   - Answer: The outcome of the ask pipeline
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
