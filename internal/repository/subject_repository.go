package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/profepulse/profepulse-api/internal/models"
)

const subjectColumns = `id, name, average_rating, review_count, created_at, updated_at`

var subjectOrder = map[string]string{
	models.SubjectSortName:    "name ASC",
	models.SubjectSortRating:  "average_rating DESC, review_count DESC, name ASC",
	models.SubjectSortReviews: "review_count DESC, average_rating DESC, name ASC",
}

// SubjectRepository manages subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects matching filter with the total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}

	order, ok := subjectOrder[filter.Sort]
	if !ok {
		order = subjectOrder[models.SubjectSortName]
	}
	page, size := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", subjectColumns, base, order, size, (page-1)*size)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// CountExisting returns how many of ids exist.
func (r *SubjectRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM subjects WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("build subject count query: %w", err)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return count, nil
}

// Create inserts a subject with zeroed aggregates.
func (r *SubjectRepository) Create(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	subject.AverageRating = 0
	subject.ReviewCount = 0
	const query = `INSERT INTO subjects (id, name, average_rating, review_count, created_at, updated_at)
		VALUES (:id, :name, :average_rating, :review_count, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, subject); err != nil {
		return fmt.Errorf("create subject: %w", translate(err))
	}
	return nil
}

// FindOrCreateByName returns the subject called name, creating it when absent.
func (r *SubjectRepository) FindOrCreateByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Subject, bool, error) {
	target := executor(r.db, exec)
	now := time.Now().UTC()
	const insert = `INSERT INTO subjects (id, name, average_rating, review_count, created_at, updated_at)
		VALUES ($1, $2, 0, 0, $3, $3) ON CONFLICT (name) DO NOTHING`
	res, err := target.ExecContext(ctx, insert, uuid.NewString(), name, now)
	if err != nil {
		return nil, false, fmt.Errorf("ensure subject: %w", err)
	}
	created, _ := res.RowsAffected()

	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE name = $1`
	var subject models.Subject
	if err := sqlx.GetContext(ctx, target, &subject, query, name); err != nil {
		return nil, false, fmt.Errorf("load subject by name: %w", err)
	}
	return &subject, created > 0, nil
}

// LockByID selects the subject row FOR UPDATE.
func (r *SubjectRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1 FOR UPDATE`
	var subject models.Subject
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &subject, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock subject: %w", err)
	}
	return &subject, nil
}

// UpdateAggregate stores a recomputed aggregate.
func (r *SubjectRepository) UpdateAggregate(ctx context.Context, exec sqlx.ExtContext, id string, agg models.Aggregate) error {
	const query = `UPDATE subjects SET average_rating = $2, review_count = $3 WHERE id = $1`
	if _, err := executor(r.db, exec).ExecContext(ctx, query, id, agg.AverageRating, agg.ReviewCount); err != nil {
		return fmt.Errorf("update subject aggregate: %w", err)
	}
	return nil
}
