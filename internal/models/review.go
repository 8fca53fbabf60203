package models

import "time"

// Review is a rated comment about a professor, optionally tagged with a subject.
type Review struct {
	ID          string    `db:"id" json:"id"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	SubjectID   *string   `db:"subject_id" json:"subject_id,omitempty"`
	UserID      string    `db:"user_id" json:"user_id,omitempty"`
	Content     string    `db:"content" json:"content"`
	Rating      int       `db:"rating" json:"rating"`
	Period      Period    `db:"period" json:"period"`
	Approved    bool      `db:"approved" json:"approved"`
	Anonymous   bool      `db:"anonymous" json:"anonymous"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsAuthor reports whether userID wrote the review.
func (r *Review) IsAuthor(userID string) bool {
	return r != nil && userID != "" && r.UserID == userID
}

// ReviewView is a review joined with display names for listing.
type ReviewView struct {
	Review
	AuthorName    *string `db:"author_name" json:"author_name,omitempty"`
	SubjectName   *string `db:"subject_name" json:"subject_name,omitempty"`
	ProfessorName string  `db:"professor_name" json:"professor_name"`
}

// Redact hides the author of anonymous reviews.
func (v *ReviewView) Redact() {
	if v.Anonymous {
		v.AuthorName = nil
		v.UserID = ""
	}
}

// ReviewFilter selects reviews for listings.
type ReviewFilter struct {
	ProfessorID       string
	UserID            string
	IncludeUnapproved bool
	Page              int
	PageSize          int
}
