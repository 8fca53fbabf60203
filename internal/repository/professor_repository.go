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

const professorColumns = `p.id, p.name, p.department, p.average_rating, p.review_count, p.created_at, p.updated_at`

// ProfessorRepository manages persistence for professors and their subject links.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository constructs a ProfessorRepository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// Search returns every professor matching filter. Ordering and pagination are
// left to the caller because they depend on the selected ranking.
func (r *ProfessorRepository) Search(ctx context.Context, filter models.ProfessorFilter) ([]models.Professor, error) {
	query := `SELECT ` + professorColumns + ` FROM professors p WHERE 1=1`
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(" AND LOWER(p.name) LIKE $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, "%"+strings.ToLower(filter.Department)+"%")
		query += fmt.Sprintf(" AND LOWER(p.department) LIKE $%d", len(args))
	}
	if filter.Subject != "" {
		args = append(args, "%"+strings.ToLower(filter.Subject)+"%")
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM professor_subjects ps JOIN subjects s ON s.id = ps.subject_id
			WHERE ps.professor_id = p.id AND LOWER(s.name) LIKE $%d)`, len(args))
	}

	var professors []models.Professor
	if err := r.db.SelectContext(ctx, &professors, query+" ORDER BY p.name, p.id", args...); err != nil {
		return nil, fmt.Errorf("search professors: %w", err)
	}
	return professors, nil
}

// FindByID fetches a professor by ID.
func (r *ProfessorRepository) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	query := `SELECT ` + professorColumns + ` FROM professors p WHERE p.id = $1`
	var professor models.Professor
	if err := r.db.GetContext(ctx, &professor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find professor: %w", err)
	}
	return &professor, nil
}

// LockByID selects the professor row FOR UPDATE inside the caller's transaction,
// serialising concurrent aggregate recomputes for the same professor.
func (r *ProfessorRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Professor, error) {
	query := `SELECT ` + professorColumns + ` FROM professors p WHERE p.id = $1 FOR UPDATE`
	var professor models.Professor
	if err := sqlx.GetContext(ctx, executor(r.db, exec), &professor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock professor: %w", err)
	}
	return &professor, nil
}

// SubjectsFor loads the subjects linked to each professor id.
func (r *ProfessorRepository) SubjectsFor(ctx context.Context, professorIDs []string) (map[string][]models.Subject, error) {
	result := make(map[string][]models.Subject, len(professorIDs))
	if len(professorIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT ps.professor_id, s.id, s.name, s.average_rating, s.review_count, s.created_at, s.updated_at
		FROM professor_subjects ps JOIN subjects s ON s.id = ps.subject_id
		WHERE ps.professor_id IN (?) ORDER BY s.name`, professorIDs)
	if err != nil {
		return nil, fmt.Errorf("build professor subjects query: %w", err)
	}
	var rows []struct {
		ProfessorID string `db:"professor_id"`
		models.Subject
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list professor subjects: %w", err)
	}
	for _, row := range rows {
		result[row.ProfessorID] = append(result[row.ProfessorID], row.Subject)
	}
	return result, nil
}

// Create inserts a professor with zeroed aggregates.
func (r *ProfessorRepository) Create(ctx context.Context, exec sqlx.ExtContext, professor *models.Professor) error {
	if professor.ID == "" {
		professor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	professor.CreatedAt = now
	professor.UpdatedAt = now
	professor.AverageRating = 0
	professor.ReviewCount = 0

	const query = `INSERT INTO professors (id, name, department, average_rating, review_count, created_at, updated_at)
		VALUES (:id, :name, :department, :average_rating, :review_count, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, professor); err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	return nil
}

// Update changes descriptive fields only; aggregates are owned by UpdateAggregate.
func (r *ProfessorRepository) Update(ctx context.Context, exec sqlx.ExtContext, professor *models.Professor) error {
	professor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE professors SET name = :name, department = :department, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, professor); err != nil {
		return fmt.Errorf("update professor: %w", err)
	}
	return nil
}

// SetSubjects replaces the subject links of a professor.
func (r *ProfessorRepository) SetSubjects(ctx context.Context, exec sqlx.ExtContext, professorID string, subjectIDs []string) error {
	target := executor(r.db, exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM professor_subjects WHERE professor_id = $1`, professorID); err != nil {
		return fmt.Errorf("clear professor subjects: %w", err)
	}
	const insert = `INSERT INTO professor_subjects (professor_id, subject_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, subjectID := range subjectIDs {
		if _, err := target.ExecContext(ctx, insert, professorID, subjectID); err != nil {
			return fmt.Errorf("link professor subject: %w", err)
		}
	}
	return nil
}

// UpdateAggregate stores a recomputed aggregate.
func (r *ProfessorRepository) UpdateAggregate(ctx context.Context, exec sqlx.ExtContext, id string, agg models.Aggregate) error {
	const query = `UPDATE professors SET average_rating = $2, review_count = $3 WHERE id = $1`
	if _, err := executor(r.db, exec).ExecContext(ctx, query, id, agg.AverageRating, agg.ReviewCount); err != nil {
		return fmt.Errorf("update professor aggregate: %w", err)
	}
	return nil
}

// Delete removes a professor. Its reviews cascade in the database.
func (r *ProfessorRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM professors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete professor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
