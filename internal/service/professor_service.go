package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/dto"
	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type professorRepository interface {
	Search(ctx context.Context, filter models.ProfessorFilter) ([]models.Professor, error)
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Professor, error)
	SubjectsFor(ctx context.Context, professorIDs []string) (map[string][]models.Subject, error)
	Create(ctx context.Context, exec sqlx.ExtContext, professor *models.Professor) error
	Update(ctx context.Context, exec sqlx.ExtContext, professor *models.Professor) error
	SetSubjects(ctx context.Context, exec sqlx.ExtContext, professorID string, subjectIDs []string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type professorSubjectRepository interface {
	CountExisting(ctx context.Context, ids []string) (int, error)
	FindOrCreateByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Subject, bool, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
}

type reviewSubjectLister interface {
	SubjectIDsForProfessor(ctx context.Context, exec sqlx.ExtContext, professorID string) ([]string, error)
}

type professorAggregator interface {
	Recompute(ctx context.Context, exec sqlx.ExtContext, professorID string, subjectIDs ...string) error
	RecomputeProfessor(ctx context.Context, exec sqlx.ExtContext, professorID string) (models.Aggregate, error)
}

// ProfessorPage is a ranked page of professors as cached and returned by List.
type ProfessorPage struct {
	Items      []models.Professor `json:"items"`
	Pagination models.Pagination  `json:"pagination"`
	Ranking    string             `json:"ranking"`
}

// ProfessorService manages professors, their subject links and ranked listings.
type ProfessorService struct {
	tx         transactor
	professors professorRepository
	subjects   professorSubjectRepository
	reviews    reviewSubjectLister
	aggregator professorAggregator
	ranking    *RankingService
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// ProfessorServiceDeps groups the collaborators of ProfessorService.
type ProfessorServiceDeps struct {
	Tx         transactor
	Professors professorRepository
	Subjects   professorSubjectRepository
	Reviews    reviewSubjectLister
	Aggregator professorAggregator
	Ranking    *RankingService
	Cache      *CacheService
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewProfessorService constructs a ProfessorService.
func NewProfessorService(deps ProfessorServiceDeps) *ProfessorService {
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ProfessorService{
		tx:         deps.Tx,
		professors: deps.Professors,
		subjects:   deps.Subjects,
		reviews:    deps.Reviews,
		aggregator: deps.Aggregator,
		ranking:    deps.Ranking,
		cache:      deps.Cache,
		validator:  deps.Validator,
		logger:     deps.Logger,
	}
}

// List returns one page of professors matching filter, ordered by the requested ranking.
// The boolean reports whether the page was served from cache.
func (s *ProfessorService) List(ctx context.Context, filter models.ProfessorFilter) (*ProfessorPage, bool, error) {
	ranking, err := s.ranking.Resolve(filter.Ranking)
	if err != nil {
		return nil, false, err
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	key := ProfessorListKey(filter, ranking)
	var cached ProfessorPage
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	professors, err := s.professors.Search(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professors")
	}
	ordered, err := s.ranking.Order(ranking, professors)
	if err != nil {
		return nil, false, err
	}

	start := (filter.Page - 1) * filter.PageSize
	if start > len(ordered) {
		start = len(ordered)
	}
	end := start + filter.PageSize
	if end > len(ordered) {
		end = len(ordered)
	}
	items := ordered[start:end]
	if err := s.attachSubjects(ctx, items); err != nil {
		return nil, false, err
	}

	page := &ProfessorPage{
		Items:      items,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(ordered)},
		Ranking:    ranking,
	}
	s.cache.Set(ctx, key, page, 0)
	return page, false, nil
}

// Get returns a professor with its subjects.
func (s *ProfessorService) Get(ctx context.Context, id string) (*models.Professor, error) {
	professor, err := s.professors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	list := []models.Professor{*professor}
	if err := s.attachSubjects(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Create registers a professor with zero aggregates.
func (s *ProfessorService) Create(ctx context.Context, req dto.ProfessorRequest) (*models.Professor, error) {
	subjectIDs, err := s.checkRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	professor := &models.Professor{Name: strings.TrimSpace(req.Name), Department: strings.TrimSpace(req.Department)}
	err = s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.professors.Create(ctx, exec, professor); err != nil {
			return err
		}
		return s.professors.SetSubjects(ctx, exec, professor.ID, subjectIDs)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create professor")
	}
	s.cache.InvalidateProfessors(ctx)
	s.logger.Info("professor created", zap.String("professor_id", professor.ID))
	return s.Get(ctx, professor.ID)
}

// Update replaces the descriptive fields and subject links of a professor.
func (s *ProfessorService) Update(ctx context.Context, id string, req dto.ProfessorRequest) (*models.Professor, error) {
	subjectIDs, err := s.checkRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		professor, err := s.professors.LockByID(ctx, exec, id)
		if err != nil {
			return err
		}
		professor.Name = strings.TrimSpace(req.Name)
		professor.Department = strings.TrimSpace(req.Department)
		if err := s.professors.Update(ctx, exec, professor); err != nil {
			return err
		}
		return s.professors.SetSubjects(ctx, exec, id, subjectIDs)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update professor")
	}
	s.cache.InvalidateProfessors(ctx)
	return s.Get(ctx, id)
}

// Delete removes a professor together with its reviews and recomputes the
// subjects those reviews were tagged with.
func (s *ProfessorService) Delete(ctx context.Context, id string) error {
	var touched []string
	err := s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if _, err := s.professors.LockByID(ctx, exec, id); err != nil {
			return err
		}
		ids, err := s.reviews.SubjectIDsForProfessor(ctx, exec, id)
		if err != nil {
			return err
		}
		touched = distinctIDs(ids)
		for _, subjectID := range touched {
			if _, err := s.subjects.LockByID(ctx, exec, subjectID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		if err := s.professors.Delete(ctx, exec, id); err != nil {
			return err
		}
		return s.aggregator.Recompute(ctx, exec, "", touched...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete professor")
	}
	s.cache.InvalidateProfessors(ctx)
	s.logger.Info("professor deleted", zap.String("professor_id", id), zap.Int("subjects_recomputed", len(touched)))
	return nil
}

// Recompute forces a full recomputation of a professor's aggregate and of the
// subjects tagged on its reviews.
func (s *ProfessorService) Recompute(ctx context.Context, id string) (models.Aggregate, error) {
	var agg models.Aggregate
	err := s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if _, err := s.professors.LockByID(ctx, exec, id); err != nil {
			return err
		}
		ids, err := s.reviews.SubjectIDsForProfessor(ctx, exec, id)
		if err != nil {
			return err
		}
		ids = distinctIDs(ids)
		for _, subjectID := range ids {
			if _, err := s.subjects.LockByID(ctx, exec, subjectID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		if agg, err = s.aggregator.RecomputeProfessor(ctx, exec, id); err != nil {
			return err
		}
		return s.aggregator.Recompute(ctx, exec, "", ids...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Aggregate{}, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return models.Aggregate{}, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to recompute professor rating")
	}
	s.cache.InvalidateProfessors(ctx)
	return agg, nil
}

// ImportCSV creates professors from rows of "name,department[,subject;subject]".
// A header row starting with "name" is skipped. Each row is imported in its own
// transaction; failing rows are reported and do not stop the import.
func (s *ProfessorService) ImportCSV(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &dto.ImportResult{}
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, dto.ImportRowError{Line: parseErr.Line, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, appErrors.Clone(appErrors.ErrValidation, "failed to read CSV: "+err.Error())
		}
		line, _ := reader.FieldPos(0)
		header := first && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "name")
		first = false
		if header {
			continue
		}

		row, reason := parseImportRow(record)
		if reason != "" {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Reason: reason})
			continue
		}
		if err := s.validator.Struct(row.request); err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Reason: "name and department must be at most 100 characters"})
			continue
		}

		subjectsCreated := 0
		err = s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
			subjectsCreated = 0
			ids := make([]string, 0, len(row.subjects))
			for _, name := range row.subjects {
				subject, created, err := s.subjects.FindOrCreateByName(ctx, exec, name)
				if err != nil {
					return err
				}
				if created {
					subjectsCreated++
				}
				ids = append(ids, subject.ID)
			}
			professor := &models.Professor{Name: row.request.Name, Department: row.request.Department}
			if err := s.professors.Create(ctx, exec, professor); err != nil {
				return err
			}
			return s.professors.SetSubjects(ctx, exec, professor.ID, distinctIDs(ids))
		})
		if err != nil {
			s.logger.Warn("professor import row failed", zap.Int("line", line), zap.Error(err))
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Reason: "could not store row"})
			continue
		}
		result.Created++
		result.SubjectsCreated += subjectsCreated
	}

	if result.Created > 0 {
		s.cache.InvalidateProfessors(ctx)
	}
	s.logger.Info("professor import finished", zap.Int("created", result.Created), zap.Int("failed", len(result.Errors)))
	return result, nil
}

type importRow struct {
	request  dto.ProfessorRequest
	subjects []string
}

func parseImportRow(record []string) (importRow, string) {
	if len(record) < 2 {
		return importRow{}, "expected at least name and department"
	}
	row := importRow{request: dto.ProfessorRequest{
		Name:       strings.TrimSpace(record[0]),
		Department: strings.TrimSpace(record[1]),
	}}
	if row.request.Name == "" || row.request.Department == "" {
		return importRow{}, "name and department are required"
	}
	if len(record) > 2 {
		seen := map[string]bool{}
		for _, name := range strings.Split(record[2], ";") {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			row.subjects = append(row.subjects, name)
		}
	}
	return row, ""
}

func (s *ProfessorService) checkRequest(ctx context.Context, req dto.ProfessorRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Department) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name and department are required")
	}
	ids := distinctIDs(req.SubjectIDs)
	if len(ids) == 0 {
		return ids, nil
	}
	found, err := s.subjects.CountExisting(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subjects")
	}
	if found != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%d of %d subjects do not exist", len(ids)-found, len(ids)))
	}
	return ids, nil
}

func (s *ProfessorService) attachSubjects(ctx context.Context, professors []models.Professor) error {
	if len(professors) == 0 {
		return nil
	}
	ids := make([]string, len(professors))
	for i := range professors {
		ids[i] = professors[i].ID
	}
	subjects, err := s.professors.SubjectsFor(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor subjects")
	}
	for i := range professors {
		professors[i].Subjects = subjects[professors[i].ID]
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
