package dto

// ProfessorRequest creates or replaces a professor. Aggregates are not accepted.
type ProfessorRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Department string   `json:"department" validate:"required,max=100"`
	SubjectIDs []string `json:"subject_ids" validate:"omitempty,dive,uuid"`
}

// SubjectRequest creates a subject.
type SubjectRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ImportRowError reports a CSV line that could not be imported.
type ImportRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult summarises a CSV bulk import.
type ImportResult struct {
	Created         int              `json:"created"`
	SubjectsCreated int              `json:"subjects_created"`
	Errors          []ImportRowError `json:"errors,omitempty"`
}
