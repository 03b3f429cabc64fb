package domain

import "time"

// IndexSnapshot is the persisted form of a vector index.
// Records and Vectors are parallel slices.
type IndexSnapshot struct {
	// Dimensions is the embedding dimensionality of every vector.
	Dimensions int

	// Model names the embedding model that produced the vectors.
	Model string

	Records []QARecord
	Vectors [][]float32

	// BuiltAt is when the snapshot was created.
	BuiltAt time.Time
}

// Len returns the number of entries.
func (s *IndexSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Validate checks internal consistency of the snapshot.
func (s *IndexSnapshot) Validate() error {
	if s == nil {
		return ErrIndexCorrupt
	}
	if len(s.Records) != len(s.Vectors) {
		return ErrIndexCorrupt
	}
	if len(s.Records) > 0 && s.Dimensions <= 0 {
		return ErrIndexCorrupt
	}
	for _, v := range s.Vectors {
		if len(v) != s.Dimensions {
			return ErrIndexCorrupt
		}
	}
	return nil
}

// IndexInfo summarises an index partition.
type IndexInfo struct {
	Language    string    `json:"language"`
	Entries     int       `json:"entries"`
	Dimensions  int       `json:"dimensions"`
	Model       string    `json:"model,omitempty"`
	Initialized bool      `json:"initialized"`
	Backend     string    `json:"backend"`
	BuiltAt     time.Time `json:"built_at,omitempty"`
}
