package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
)

var subjectCols = []string{"id", "name", "average_rating", "review_count", "created_at", "updated_at"}

func TestSubjectRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE 1=1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(subjectCols).AddRow("s1", "Algebra", 3.5, 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.SubjectFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryListByRating(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND LOWER(name) LIKE $1 ORDER BY average_rating DESC, review_count DESC, name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%alg%").
		WillReturnRows(sqlmock.NewRows(subjectCols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects")).
		WithArgs("%alg%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.SubjectFilter{Search: "Alg", Sort: models.SubjectSortRating, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryFindOrCreateByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	mock.ExpectExec("INSERT INTO subjects .* ON CONFLICT \\(name\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "Algebra", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE name = $1")).
		WithArgs("Algebra").
		WillReturnRows(sqlmock.NewRows(subjectCols).AddRow("s1", "Algebra", 0.0, 0, now, now))

	subject, created, err := repo.FindOrCreateByName(context.Background(), nil, "Algebra")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "s1", subject.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("INSERT INTO subjects").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), nil, &models.Subject{Name: "Algebra"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
