package service

import (
	"context"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/profepulse/profepulse-api/internal/models"
)

type reviewAggregateReader interface {
	ProfessorAggregate(ctx context.Context, exec sqlx.ExtContext, professorID string) (models.Aggregate, error)
	SubjectAggregate(ctx context.Context, exec sqlx.ExtContext, subjectID string) (models.Aggregate, error)
}

type aggregateWriter interface {
	UpdateAggregate(ctx context.Context, exec sqlx.ExtContext, id string, agg models.Aggregate) error
}

// RatingAggregator recomputes the denormalised rating of professors and subjects
// from their approved reviews. Every call is a full recompute over the current
// set, so repeated calls without review changes store identical values.
// Callers run it inside the transaction that changed the reviews, after locking the targets.
type RatingAggregator struct {
	reviews    reviewAggregateReader
	professors aggregateWriter
	subjects   aggregateWriter
	metrics    *MetricsService
}

// NewRatingAggregator constructs a RatingAggregator.
func NewRatingAggregator(reviews reviewAggregateReader, professors, subjects aggregateWriter, metrics *MetricsService) *RatingAggregator {
	return &RatingAggregator{reviews: reviews, professors: professors, subjects: subjects, metrics: metrics}
}

// RecomputeProfessor stores and returns the professor's aggregate.
func (a *RatingAggregator) RecomputeProfessor(ctx context.Context, exec sqlx.ExtContext, professorID string) (models.Aggregate, error) {
	agg, err := a.reviews.ProfessorAggregate(ctx, exec, professorID)
	if err != nil {
		return models.Aggregate{}, err
	}
	agg = normalizeAggregate(agg)
	if err := a.professors.UpdateAggregate(ctx, exec, professorID, agg); err != nil {
		return models.Aggregate{}, err
	}
	a.metrics.RecordRecompute("professor")
	return agg, nil
}

// RecomputeSubject stores and returns the subject's aggregate.
func (a *RatingAggregator) RecomputeSubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (models.Aggregate, error) {
	agg, err := a.reviews.SubjectAggregate(ctx, exec, subjectID)
	if err != nil {
		return models.Aggregate{}, err
	}
	agg = normalizeAggregate(agg)
	if err := a.subjects.UpdateAggregate(ctx, exec, subjectID, agg); err != nil {
		return models.Aggregate{}, err
	}
	a.metrics.RecordRecompute("subject")
	return agg, nil
}

// Recompute refreshes a professor and each distinct non-empty subject id.
func (a *RatingAggregator) Recompute(ctx context.Context, exec sqlx.ExtContext, professorID string, subjectIDs ...string) error {
	if professorID != "" {
		if _, err := a.RecomputeProfessor(ctx, exec, professorID); err != nil {
			return err
		}
	}
	for _, id := range distinctIDs(subjectIDs) {
		if _, err := a.RecomputeSubject(ctx, exec, id); err != nil {
			return err
		}
	}
	return nil
}

// normalizeAggregate forces the empty set to 0.0 regardless of what the store reported.
func normalizeAggregate(agg models.Aggregate) models.Aggregate {
	if agg.ReviewCount <= 0 {
		return models.Aggregate{}
	}
	return agg
}

// distinctIDs drops blanks and duplicates and sorts, giving a stable lock order.
func distinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
