package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/profepulse/profepulse-api/internal/models"
)

const reviewColumns = `id, professor_id, subject_id, user_id, content, rating, period, approved, anonymous, created_at, updated_at`

const reviewViewSelect = `SELECT r.id, r.professor_id, r.subject_id, r.user_id, r.content, r.rating, r.period, r.approved,
	r.anonymous, r.created_at, r.updated_at, u.full_name AS author_name, s.name AS subject_name, p.name AS professor_name
	FROM reviews r
	JOIN professors p ON p.id = r.professor_id
	LEFT JOIN users u ON u.id = r.user_id
	LEFT JOIN subjects s ON s.id = r.subject_id`

// ReviewRepository persists reviews and answers the aggregate queries over them.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs a ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts review.
func (r *ReviewRepository) Create(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (` + reviewColumns + `)
		VALUES (:id, :professor_id, :subject_id, :user_id, :content, :rating, :period, :approved, :anonymous, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByID fetches a review by ID.
func (r *ReviewRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Review, error) {
	return r.find(ctx, exec, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
}

// LockByID fetches a review FOR UPDATE inside the caller's transaction.
func (r *ReviewRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Review, error) {
	return r.find(ctx, exec, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReviewRepository) find(ctx context.Context, exec sqlx.ExtContext, query, id string) (*models.Review, error) {
	var review models.Review
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &review, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// Update stores every mutable field of review.
func (r *ReviewRepository) Update(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET subject_id = :subject_id, content = :content, rating = :rating, period = :period,
		approved = :approved, anonymous = :anonymous, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, review); err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// ProfessorAggregate computes count and mean rating of the approved reviews of a professor.
func (r *ReviewRepository) ProfessorAggregate(ctx context.Context, exec sqlx.ExtContext, professorID string) (models.Aggregate, error) {
	const query = `SELECT COUNT(*) AS review_count, COALESCE(AVG(rating::float8), 0) AS average_rating
		FROM reviews WHERE professor_id = $1 AND approved = TRUE`
	var agg models.Aggregate
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &agg, query, professorID); err != nil {
		return models.Aggregate{}, fmt.Errorf("aggregate professor reviews: %w", err)
	}
	return agg, nil
}

// SubjectAggregate computes count and mean rating of the approved reviews tagged with a subject.
func (r *ReviewRepository) SubjectAggregate(ctx context.Context, exec sqlx.ExtContext, subjectID string) (models.Aggregate, error) {
	const query = `SELECT COUNT(*) AS review_count, COALESCE(AVG(rating::float8), 0) AS average_rating
		FROM reviews WHERE subject_id = $1 AND approved = TRUE`
	var agg models.Aggregate
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &agg, query, subjectID); err != nil {
		return models.Aggregate{}, fmt.Errorf("aggregate subject reviews: %w", err)
	}
	return agg, nil
}

// SubjectIDsForProfessor lists the distinct subjects tagged on a professor's reviews.
func (r *ReviewRepository) SubjectIDsForProfessor(ctx context.Context, exec sqlx.ExtContext, professorID string) ([]string, error) {
	const query = `SELECT DISTINCT subject_id FROM reviews WHERE professor_id = $1 AND subject_id IS NOT NULL ORDER BY subject_id`
	var ids []string
	if err := sqlx.SelectContext(ctx, executor(r.db, exec), &ids, query, professorID); err != nil {
		return nil, fmt.Errorf("list review subjects: %w", err)
	}
	return ids, nil
}

// List returns reviews with display names, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewView, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.ProfessorID != "" {
		args = append(args, filter.ProfessorID)
		where += fmt.Sprintf(" AND r.professor_id = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND r.user_id = $%d", len(args))
	}
	if !filter.IncludeUnapproved {
		where += " AND r.approved = TRUE"
	}

	page, size := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY r.created_at DESC, r.id LIMIT %d OFFSET %d", reviewViewSelect, where, size, (page-1)*size)
	var reviews []models.ReviewView
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reviews r"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	return reviews, total, nil
}

// PeriodStats groups a professor's approved reviews by period.
func (r *ReviewRepository) PeriodStats(ctx context.Context, professorID string) ([]models.PeriodStat, error) {
	const query = `SELECT period, COUNT(*) AS review_count, AVG(rating::float8) AS average_rating
		FROM reviews WHERE professor_id = $1 AND approved = TRUE GROUP BY period ORDER BY period`
	var stats []models.PeriodStat
	if err := r.db.SelectContext(ctx, &stats, query, professorID); err != nil {
		return nil, fmt.Errorf("review period stats: %w", err)
	}
	return stats, nil
}

// Distribution counts a professor's approved reviews per star value.
func (r *ReviewRepository) Distribution(ctx context.Context, professorID string) ([]models.RatingBucket, error) {
	const query = `SELECT rating, COUNT(*) AS count FROM reviews
		WHERE professor_id = $1 AND approved = TRUE GROUP BY rating ORDER BY rating`
	var buckets []models.RatingBucket
	if err := r.db.SelectContext(ctx, &buckets, query, professorID); err != nil {
		return nil, fmt.Errorf("review distribution: %w", err)
	}
	return buckets, nil
}

// Totals returns global counters for administrators.
func (r *ReviewRepository) Totals(ctx context.Context) (models.SiteTotals, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM professors) AS professors,
		(SELECT COUNT(*) FROM subjects) AS subjects,
		(SELECT COUNT(*) FROM users) AS users,
		(SELECT COUNT(*) FROM reviews WHERE approved = TRUE) AS approved_reviews,
		(SELECT COUNT(*) FROM account_profiles WHERE status = 'SUSPENDED') AS suspended_users`
	var totals models.SiteTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return models.SiteTotals{}, fmt.Errorf("site totals: %w", err)
	}
	return totals, nil
}
