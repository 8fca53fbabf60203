package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
)

func newAggregatorFixture() (*memDB, *RatingAggregator) {
	db := newMemDB()
	db.addProfessor("p1", "Ada Lovelace", "s1")
	reviews := &fakeReviewRepo{db: db}
	return db, NewRatingAggregator(reviews, &fakeProfessorRepo{db: db}, &fakeSubjectRepo{db: db}, NewMetricsService())
}

func TestRatingAggregatorApprovedOnly(t *testing.T) {
	db, agg := newAggregatorFixture()
	s1 := "s1"
	db.reviews["r1"] = &models.Review{ID: "r1", ProfessorID: "p1", SubjectID: &s1, Rating: 5, Approved: true}
	db.reviews["r2"] = &models.Review{ID: "r2", ProfessorID: "p1", Rating: 2, Approved: true}
	db.reviews["r3"] = &models.Review{ID: "r3", ProfessorID: "p1", SubjectID: &s1, Rating: 1, Approved: false}

	require.NoError(t, agg.Recompute(context.Background(), nil, "p1", "s1", "s1", ""))

	assert.InDelta(t, 3.5, db.professors["p1"].AverageRating, 1e-9)
	assert.Equal(t, 2, db.professors["p1"].ReviewCount)
	assert.InDelta(t, 5.0, db.subjects["s1"].AverageRating, 1e-9)
	assert.Equal(t, 1, db.subjects["s1"].ReviewCount)
}

func TestRatingAggregatorIdempotent(t *testing.T) {
	db, agg := newAggregatorFixture()
	db.reviews["r1"] = &models.Review{ID: "r1", ProfessorID: "p1", Rating: 4, Approved: true}
	db.reviews["r2"] = &models.Review{ID: "r2", ProfessorID: "p1", Rating: 5, Approved: true}
	db.reviews["r3"] = &models.Review{ID: "r3", ProfessorID: "p1", Rating: 5, Approved: true}

	first, err := agg.RecomputeProfessor(context.Background(), nil, "p1")
	require.NoError(t, err)
	second, err := agg.RecomputeProfessor(context.Background(), nil, "p1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 14.0/3.0, db.professors["p1"].AverageRating)
}

func TestRatingAggregatorEmptySet(t *testing.T) {
	db, agg := newAggregatorFixture()
	db.professors["p1"].AverageRating = 4.2
	db.professors["p1"].ReviewCount = 7

	got, err := agg.RecomputeProfessor(context.Background(), nil, "p1")
	require.NoError(t, err)

	assert.Equal(t, models.Aggregate{}, got)
	assert.Zero(t, db.professors["p1"].AverageRating)
	assert.Zero(t, db.professors["p1"].ReviewCount)
}

func TestNormalizeAggregate(t *testing.T) {
	assert.Equal(t, models.Aggregate{}, normalizeAggregate(models.Aggregate{AverageRating: 3, ReviewCount: 0}))
	assert.Equal(t, models.Aggregate{AverageRating: 3, ReviewCount: 2}, normalizeAggregate(models.Aggregate{AverageRating: 3, ReviewCount: 2}))
}

func TestDistinctIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, distinctIDs([]string{"b", "", "a", "b"}))
	assert.Empty(t, distinctIDs(nil))
}
