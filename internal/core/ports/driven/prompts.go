package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnswerSystem is the system prompt for answer generation.
	// The template expects a %s placeholder for the programming language.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerUser carries the question and retrieved context.
	// The template expects %s (question) and %s (context) placeholders.
	PromptAnswerUser = "answer_user"

	// PromptEvaluate asks the model to score one metric as JSON.
	// The template expects %s (metric description), %s (question),
	// %s (answer), %s (context) and %s (ground truth) placeholders.
	PromptEvaluate = "evaluate"
)
