package models

// PeriodStat summarises approved reviews of one academic term.
type PeriodStat struct {
	Period        Period  `db:"period" json:"period"`
	ReviewCount   int     `db:"review_count" json:"review_count"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
}

// RatingBucket counts approved reviews carrying one star value.
type RatingBucket struct {
	Rating int `db:"rating" json:"rating"`
	Count  int `db:"count" json:"count"`
}

// ProfessorStats is the statistics view of a professor.
type ProfessorStats struct {
	ProfessorID   string         `json:"professor_id"`
	TotalReviews  int            `json:"total_reviews"`
	AverageRating float64        `json:"average_rating"`
	ByPeriod      []PeriodStat   `json:"by_period"`
	Distribution  []RatingBucket `json:"distribution"`
}

// SiteTotals holds global counters for the admin dashboard.
type SiteTotals struct {
	Professors      int `db:"professors" json:"professors"`
	Subjects        int `db:"subjects" json:"subjects"`
	Users           int `db:"users" json:"users"`
	ApprovedReviews int `db:"approved_reviews" json:"approved_reviews"`
	SuspendedUsers  int `db:"suspended_users" json:"suspended_users"`
}
