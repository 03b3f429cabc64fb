// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ask pipeline is RetrievalService followed by AnswerGenerator,
// composed by AskService. IndexService bootstraps the per-language
// indexes that retrieval queries.
package services
