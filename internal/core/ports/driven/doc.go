// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Turns text into vectors
//   - VectorIndex: Build, persist, load and query nearest neighbours
//   - IndexStore: Persists index snapshots (file, SQLite or bbolt)
//   - CorpusReader: Loads question/answer records from a corpus file
//   - Normaliser: Turns answer HTML into clean text
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService / AnswerGenerator: Without them, ask returns results with no answer text.
//   - QuestionSource / CorpusWriter: Only needed to fetch a new corpus.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
