package domain

// AnswerStatus describes how the ask pipeline finished.
type AnswerStatus string

// Possible answer statuses.
const (
	// AnswerStatusOK means results were found and an answer was generated.
	AnswerStatusOK AnswerStatus = "ok"

	// AnswerStatusNoResults means retrieval found nothing; no answer was generated.
	AnswerStatusNoResults AnswerStatus = "no_results"

	// AnswerStatusUnavailable means retrieval failed.
	AnswerStatusUnavailable AnswerStatus = "unavailable"

	// AnswerStatusGenerationFailed means results were found but the generator failed.
	AnswerStatusGenerationFailed AnswerStatus = "generation_failed"

	// AnswerStatusRetrievalOnly means results were found but no LLM is configured.
	AnswerStatusRetrievalOnly AnswerStatus = "retrieval_only"
)

// User-visible messages for degraded outcomes.
const (
	MessageNoResults   = "No similar questions were found. Try rephrasing the question."
	MessageUnavailable = "The search service is currently unavailable. Please try again later."
	MessageNoLLM       = "No language model is configured, so only similar questions are shown. " +
		"Run `stackqa settings set llm.provider ollama` to enable answers."

	// ApologyAnswer replaces the generated answer when generation fails.
	ApologyAnswer = "Sorry, an answer could not be generated right now. " +
		"The similar questions below may still help."
)

// Answer is the result of asking a question.
type Answer struct {
	Question string            `json:"question"`
	Results  []RetrievalResult `json:"results"`
	Text     string            `json:"answer"`
	Status   AnswerStatus      `json:"status"`
	Message  string            `json:"message,omitempty"`
}
