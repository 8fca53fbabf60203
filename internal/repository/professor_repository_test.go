package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
)

var professorCols = []string{"id", "name", "department", "average_rating", "review_count", "created_at", "updated_at"}

func TestProfessorRepositorySearchFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	now := time.Now()
	mock.ExpectQuery(`LOWER\(p.name\) LIKE \$1 AND LOWER\(p.department\) LIKE \$2 AND EXISTS .*LOWER\(s.name\) LIKE \$3\) ORDER BY p.name, p.id`).
		WithArgs("%ada%", "%math%", "%algebra%").
		WillReturnRows(sqlmock.NewRows(professorCols).AddRow("p1", "Ada", "Mathematics", 4.5, 2, now, now))

	list, err := repo.Search(context.Background(), models.ProfessorFilter{Search: "Ada", Department: "Math", Subject: "Algebra"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4.5, list[0].AverageRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfessorRepositoryLockAndUpdateAggregate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM professors p WHERE p.id = $1 FOR UPDATE")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(professorCols).AddRow("p1", "Ada", "Mathematics", 0.0, 0, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE professors SET average_rating = $2, review_count = $3 WHERE id = $1")).
		WithArgs("p1", 5.0, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = repo.LockByID(context.Background(), tx, "p1")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateAggregate(context.Background(), tx, "p1", models.Aggregate{AverageRating: 5, ReviewCount: 1}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfessorRepositoryCreateZeroesAggregates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	mock.ExpectExec("INSERT INTO professors").
		WithArgs(sqlmock.AnyArg(), "Ada", "Mathematics", 0.0, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p := &models.Professor{Name: "Ada", Department: "Mathematics", AverageRating: 4.9, ReviewCount: 99}
	require.NoError(t, repo.Create(context.Background(), nil, p))
	assert.Zero(t, p.AverageRating)
	assert.Zero(t, p.ReviewCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfessorRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	mock.ExpectExec("DELETE FROM professors").WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProfessorRepositorySubjectsFor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfessorRepository(db)

	now := time.Now()
	mock.ExpectQuery(`WHERE ps.professor_id IN \(\?, \?\)`).
		WithArgs("p1", "p2").
		WillReturnRows(sqlmock.NewRows([]string{"professor_id", "id", "name", "average_rating", "review_count", "created_at", "updated_at"}).
			AddRow("p1", "s1", "Algebra", 4.0, 1, now, now).
			AddRow("p1", "s2", "Calculus", 0.0, 0, now, now))

	subjects, err := repo.SubjectsFor(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Len(t, subjects["p1"], 2)
	assert.Empty(t, subjects["p2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
