package models

import "time"

// Finding holds the structured descriptors submitted for one report request.
// It is validated at the transport boundary and never persisted.
type Finding struct {
	LesionType  string `json:"lesion_type"`
	Shape       string `json:"shape"`
	Margin      string `json:"margin"`
	EchoPattern string `json:"echo_pattern"`
	SizeMM      int    `json:"size_mm,omitempty"`
	Location    string `json:"location,omitempty"`

	PatientID       string `json:"patient_id,omitempty"`
	PatientAge      int    `json:"patient_age,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Laterality      string `json:"laterality,omitempty"`
	ClinicalHistory string `json:"clinical_history,omitempty"`
}

// QueryText builds the similarity-search query from the lesion descriptors.
func (f Finding) QueryText() string {
	return "Mass shape is " + f.Shape + ", margin is " + f.Margin +
		", echo pattern is " + f.EchoPattern + "."
}

// Passage is one chunk of guideline text as stored in the vector store.
type Passage struct {
	ID             string
	Source         string
	ChunkIndex     int
	Text           string
	EmbeddingModel string
}

// ScoredPassage pairs a retrieved passage with its cosine similarity score.
type ScoredPassage struct {
	Passage
	Score float32
}

// GuidelineDocument is a raw guideline file before chunking.
type GuidelineDocument struct {
	ID      string
	Path    string
	Title   string
	Content string
}

// ProcessedDocument is a guideline document split into passages ready for
// embedding and storage.
type ProcessedDocument struct {
	GuidelineDocument
	Chunks []string
}

// Report is the generated report for one submission.
type Report struct {
	Raw         string            `json:"raw"`
	Sections    map[string]string `json:"sections"`
	BIRADS      string            `json:"birads_category,omitempty"`
	Sources     []string          `json:"sources"`
	GeneratedAt time.Time         `json:"generated_at"`
}
