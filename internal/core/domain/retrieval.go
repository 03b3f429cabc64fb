package domain

// Default similarity thresholds. Scores are squared Euclidean distances,
// so lower means closer.
const (
	// DefaultHighThreshold is the distance below which a match is High confidence.
	DefaultHighThreshold = 0.45

	// DefaultMediumThreshold is the distance below which a match is Medium confidence.
	DefaultMediumThreshold = 0.65

	// DefaultTopK is the number of results returned when no k is given.
	DefaultTopK = 3

	// DefaultFanOut multiplies k when querying the index, leaving room for
	// results removed by question deduplication.
	DefaultFanOut = 3
)

// ConfidenceLevel labels how closely a result matches the query.
type ConfidenceLevel string

// Available confidence levels.
const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// String returns the string representation.
func (c ConfidenceLevel) String() string {
	return string(c)
}

// Rank orders levels from best (0) to worst (2).
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// ConfidenceThresholds maps distances to confidence levels.
type ConfidenceThresholds struct {
	// High is the exclusive upper bound for ConfidenceHigh.
	High float64

	// Medium is the exclusive upper bound for ConfidenceMedium.
	Medium float64
}

// DefaultConfidenceThresholds returns the standard threshold pair.
func DefaultConfidenceThresholds() ConfidenceThresholds {
	return ConfidenceThresholds{
		High:   DefaultHighThreshold,
		Medium: DefaultMediumThreshold,
	}
}

// Valid reports whether the thresholds are ordered and non-negative.
func (t ConfidenceThresholds) Valid() bool {
	return t.High >= 0 && t.High <= t.Medium
}

// Level returns the confidence level for a distance score.
// score < High is High, High <= score < Medium is Medium, anything else is Low.
func (t ConfidenceThresholds) Level(score float64) ConfidenceLevel {
	switch {
	case score < t.High:
		return ConfidenceHigh
	case score < t.Medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RetrievalResult is one ranked match returned to callers.
type RetrievalResult struct {
	Question        string          `json:"question"`
	Answer          string          `json:"answer"`
	SourceLink      string          `json:"source_link,omitempty"`
	SimilarityScore float64         `json:"similarity_score"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
}

// RetrievalOptions configures a single retrieval call.
type RetrievalOptions struct {
	// K is the maximum number of results. Zero means DefaultTopK.
	K int

	// Language selects the corpus partition. Empty uses the default partition.
	Language string
}
