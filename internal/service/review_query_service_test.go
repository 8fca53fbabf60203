package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

type mockReviewReader struct {
	views        []models.ReviewView
	filters      []models.ReviewFilter
	periods      []models.PeriodStat
	buckets      []models.RatingBucket
	statsQueries int
}

func (m *mockReviewReader) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewView, int, error) {
	m.filters = append(m.filters, filter)
	out := make([]models.ReviewView, len(m.views))
	copy(out, m.views)
	return out, len(out), nil
}

func (m *mockReviewReader) PeriodStats(ctx context.Context, professorID string) ([]models.PeriodStat, error) {
	m.statsQueries++
	return m.periods, nil
}

func (m *mockReviewReader) Distribution(ctx context.Context, professorID string) ([]models.RatingBucket, error) {
	return m.buckets, nil
}

func newQueryFixture() (*memDB, *mockReviewReader, *ReviewQueryService) {
	db := newMemDB()
	db.addProfessor("p1", "Ada Lovelace")
	db.professors["p1"].AverageRating, db.professors["p1"].ReviewCount = 4.5, 4
	reader := &mockReviewReader{}
	cache := NewCacheService(newMemCache(), nil, time.Minute, zap.NewNop(), true)
	return db, reader, NewReviewQueryService(reader, &fakeProfessorRepo{db: db}, cache, zap.NewNop())
}

func TestReviewQueryServiceListForProfessorRedactsAnonymous(t *testing.T) {
	_, reader, svc := newQueryFixture()
	author := "Jane Student"
	reader.views = []models.ReviewView{
		{Review: models.Review{ID: "r1", UserID: "u1", Anonymous: true}, AuthorName: &author},
		{Review: models.Review{ID: "r2", UserID: "u2"}, AuthorName: &author},
	}

	reviews, pagination, err := svc.ListForProfessor(context.Background(), "p1", 0, 0)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Nil(t, reviews[0].AuthorName)
	assert.Empty(t, reviews[0].UserID)
	assert.Equal(t, "Jane Student", *reviews[1].AuthorName)
	assert.Equal(t, 20, pagination.PageSize)
	assert.False(t, reader.filters[0].IncludeUnapproved)

	_, _, err = svc.ListForProfessor(context.Background(), "missing", 1, 10)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReviewQueryServiceListForUser(t *testing.T) {
	_, reader, svc := newQueryFixture()

	reviews, _, err := svc.ListForUser(context.Background(), "u1", true, 2, 5)
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	assert.Equal(t, models.ReviewFilter{UserID: "u1", IncludeUnapproved: true, Page: 2, PageSize: 5}, reader.filters[0])
}

func TestReviewQueryServiceStats(t *testing.T) {
	_, reader, svc := newQueryFixture()
	reader.periods = []models.PeriodStat{
		{Period: "2024-2", ReviewCount: 1, AverageRating: 5},
		{Period: "2023-1", ReviewCount: 3, AverageRating: 4.333},
	}
	reader.buckets = []models.RatingBucket{{Rating: 4, Count: 2}, {Rating: 5, Count: 2}}

	stats, cached, err := svc.Stats(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 4, stats.TotalReviews)
	assert.Equal(t, 4.5, stats.AverageRating)
	assert.Equal(t, models.Period("2023-1"), stats.ByPeriod[0].Period)
	assert.Equal(t, []models.RatingBucket{{Rating: 1}, {Rating: 2}, {Rating: 3}, {Rating: 4, Count: 2}, {Rating: 5, Count: 2}}, stats.Distribution)

	again, cached, err := svc.Stats(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, stats, again)
	assert.Equal(t, 1, reader.statsQueries)
}
