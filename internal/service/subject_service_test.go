package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/dto"
	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/repository"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

type mockSubjectRepo struct {
	items   map[string]*models.Subject
	listErr error
	filter  models.SubjectFilter
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	m.filter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.Subject
	for _, k := range sortedKeys(m.items) {
		out = append(out, *m.items[k])
	}
	return out, len(out), nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRepo) Create(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	if m.items == nil {
		m.items = map[string]*models.Subject{}
	}
	for _, existing := range m.items {
		if existing.Name == subject.Name {
			return fmt.Errorf("create subject: %w", repository.ErrDuplicate)
		}
	}
	subject.ID = fmt.Sprintf("s%d", len(m.items)+1)
	cp := *subject
	m.items[subject.ID] = &cp
	return nil
}

func TestSubjectServiceCreate(t *testing.T) {
	repo := &mockSubjectRepo{}
	svc := NewSubjectService(repo, nil, zap.NewNop())

	subject, err := svc.Create(context.Background(), dto.SubjectRequest{Name: "  Algebra "})
	require.NoError(t, err)
	assert.Equal(t, "Algebra", subject.Name)
	assert.Zero(t, subject.ReviewCount)

	_, err = svc.Create(context.Background(), dto.SubjectRequest{Name: "Algebra"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), dto.SubjectRequest{Name: "   "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSubjectServiceGetAndList(t *testing.T) {
	repo := &mockSubjectRepo{items: map[string]*models.Subject{"s1": {ID: "s1", Name: "Algebra"}}}
	svc := NewSubjectService(repo, nil, nil)

	subject, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Algebra", subject.Name)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	list, pagination, err := svc.List(context.Background(), models.SubjectFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, maxPageSize, repo.filter.PageSize)

	_, _, err = svc.List(context.Background(), models.SubjectFilter{Sort: models.SubjectSortRating})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectSortRating, repo.filter.Sort)

	_, _, err = svc.List(context.Background(), models.SubjectFilter{Sort: "popularity"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	repo.listErr = errors.New("db down")
	_, _, err = svc.List(context.Background(), models.SubjectFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
