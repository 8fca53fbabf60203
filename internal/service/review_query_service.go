package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

type reviewReader interface {
	List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewView, int, error)
	PeriodStats(ctx context.Context, professorID string) ([]models.PeriodStat, error)
	Distribution(ctx context.Context, professorID string) ([]models.RatingBucket, error)
}

type professorFinder interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

// ReviewQueryService serves review listings and per professor statistics.
type ReviewQueryService struct {
	reviews    reviewReader
	professors professorFinder
	cache      *CacheService
	logger     *zap.Logger
}

// NewReviewQueryService constructs a ReviewQueryService.
func NewReviewQueryService(reviews reviewReader, professors professorFinder, cache *CacheService, logger *zap.Logger) *ReviewQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewQueryService{reviews: reviews, professors: professors, cache: cache, logger: logger}
}

// ListForProfessor returns the approved reviews of a professor, newest first,
// with the author hidden on anonymous reviews.
func (s *ReviewQueryService) ListForProfessor(ctx context.Context, professorID string, page, size int) ([]models.ReviewView, *models.Pagination, error) {
	if _, err := findProfessor(ctx, s.professors, professorID); err != nil {
		return nil, nil, err
	}
	page, size = normalizePage(page, size)
	reviews, total, err := s.reviews.List(ctx, models.ReviewFilter{ProfessorID: professorID, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	for i := range reviews {
		reviews[i].Redact()
	}
	return nonNilReviews(reviews), &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListForUser returns the reviews written by userID. Unapproved reviews are
// included on request because the author may still see them.
func (s *ReviewQueryService) ListForUser(ctx context.Context, userID string, includeUnapproved bool, page, size int) ([]models.ReviewView, *models.Pagination, error) {
	page, size = normalizePage(page, size)
	reviews, total, err := s.reviews.List(ctx, models.ReviewFilter{UserID: userID, IncludeUnapproved: includeUnapproved, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return nonNilReviews(reviews), &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Stats returns the statistics of a professor. The distribution always holds
// the five star values in ascending order.
func (s *ReviewQueryService) Stats(ctx context.Context, professorID string) (*models.ProfessorStats, bool, error) {
	key := ProfessorStatsKey(professorID)
	var cached models.ProfessorStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	professor, err := findProfessor(ctx, s.professors, professorID)
	if err != nil {
		return nil, false, err
	}
	periods, err := s.reviews.PeriodStats(ctx, professorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period statistics")
	}
	buckets, err := s.reviews.Distribution(ctx, professorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating distribution")
	}

	stats := &models.ProfessorStats{
		ProfessorID:   professor.ID,
		TotalReviews:  professor.ReviewCount,
		AverageRating: professor.AverageRating,
		ByPeriod:      sortPeriods(periods),
		Distribution:  fillDistribution(buckets),
	}
	s.cache.Set(ctx, key, stats, 0)
	return stats, false, nil
}

func findProfessor(ctx context.Context, professors professorFinder, id string) (*models.Professor, error) {
	professor, err := professors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	return professor, nil
}

// sortPeriods orders period statistics chronologically.
func sortPeriods(stats []models.PeriodStat) []models.PeriodStat {
	out := make([]models.PeriodStat, len(stats))
	copy(out, stats)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

func fillDistribution(buckets []models.RatingBucket) []models.RatingBucket {
	out := make([]models.RatingBucket, 5)
	for i := range out {
		out[i].Rating = i + 1
	}
	for _, b := range buckets {
		if b.Rating >= 1 && b.Rating <= 5 {
			out[b.Rating-1].Count += b.Count
		}
	}
	return out
}

func nonNilReviews(reviews []models.ReviewView) []models.ReviewView {
	if reviews == nil {
		return []models.ReviewView{}
	}
	return reviews
}
