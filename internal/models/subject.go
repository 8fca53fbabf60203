package models

import "time"

// Subject is a course a professor teaches. Its aggregate covers reviews tagged with it.
type Subject struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	AverageRating float64   `db:"average_rating" json:"average_rating"`
	ReviewCount   int       `db:"review_count" json:"review_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Subject list orderings.
const (
	SubjectSortName    = "name"
	SubjectSortRating  = "rating"
	SubjectSortReviews = "reviews"
)

// SubjectFilter captures supported filters for listing subjects. An empty Sort orders by name.
type SubjectFilter struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
}
