package models

import "time"

// Professor is a reviewed lecturer. AverageRating and ReviewCount are derived
// from approved reviews and are never written from user input.
type Professor struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Department    string    `db:"department" json:"department"`
	AverageRating float64   `db:"average_rating" json:"average_rating"`
	ReviewCount   int       `db:"review_count" json:"review_count"`
	Subjects      []Subject `db:"-" json:"subjects,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ProfessorFilter captures filtering options for listing professors.
type ProfessorFilter struct {
	Search     string
	Department string
	Subject    string
	Ranking    string
	Page       int
	PageSize   int
}

// Aggregate is the denormalised rating summary stored on professors and subjects.
type Aggregate struct {
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	ReviewCount   int     `db:"review_count" json:"review_count"`
}
