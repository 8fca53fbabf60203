package dto

import "github.com/profepulse/profepulse-api/internal/models"

// CreateReviewRequest is the payload for publishing a review.
type CreateReviewRequest struct {
	Content   string        `json:"content"`
	Rating    int           `json:"rating"`
	Period    models.Period `json:"period" validate:"required,period"`
	SubjectID *string       `json:"subject_id,omitempty"`
	Anonymous bool          `json:"anonymous"`
}

// UpdateReviewRequest carries only the fields to change.
type UpdateReviewRequest struct {
	Content    *string        `json:"content,omitempty"`
	Rating     *int           `json:"rating,omitempty"`
	Period     *models.Period `json:"period,omitempty" validate:"omitempty,period"`
	SubjectID  *string        `json:"subject_id,omitempty"`
	Anonymous  *bool          `json:"anonymous,omitempty"`
	// ReModerate=false skips moderation of changed content; ignored for non-admins.
	ReModerate *bool          `json:"re_moderate,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateReviewRequest) Empty() bool {
	return r.Content == nil && r.Rating == nil && r.Period == nil && r.SubjectID == nil && r.Anonymous == nil
}

// ReviewResult is the presentation contract of review mutations.
type ReviewResult struct {
	Success     bool           `json:"success"`
	Review      *models.Review `json:"review,omitempty"`
	ProfessorID *string        `json:"professor_id,omitempty"`
	Message     string         `json:"message"`
}
