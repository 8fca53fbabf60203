package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/pkg/database"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

// memDB is a map backed stand-in for the relational store shared by the fake repositories.
type memDB struct {
	professors map[string]*models.Professor
	subjects   map[string]*models.Subject
	links      map[string][]string
	reviews    map[string]*models.Review
	seq        int
	locks      []string
	writeErr   error
}

func newMemDB() *memDB {
	return &memDB{
		professors: map[string]*models.Professor{},
		subjects:   map[string]*models.Subject{},
		links:      map[string][]string{},
		reviews:    map[string]*models.Review{},
	}
}

func (db *memDB) addProfessor(id, name string, subjectIDs ...string) {
	db.professors[id] = &models.Professor{ID: id, Name: name, Department: "Sciences"}
	for _, sid := range subjectIDs {
		if _, ok := db.subjects[sid]; !ok {
			db.subjects[sid] = &models.Subject{ID: sid, Name: strings.ToUpper(sid)}
		}
	}
	db.links[id] = append([]string(nil), subjectIDs...)
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s%d", prefix, db.seq)
}

func (db *memDB) snapshot() *memDB {
	cp := newMemDB()
	cp.seq = db.seq
	for k, v := range db.professors {
		p := *v
		cp.professors[k] = &p
	}
	for k, v := range db.subjects {
		s := *v
		cp.subjects[k] = &s
	}
	for k, v := range db.links {
		cp.links[k] = append([]string(nil), v...)
	}
	for k, v := range db.reviews {
		r := *v
		cp.reviews[k] = &r
	}
	return cp
}

func (db *memDB) restore(from *memDB) {
	db.professors, db.subjects, db.links, db.reviews, db.seq = from.professors, from.subjects, from.links, from.reviews, from.seq
}

// aggregateOf computes the expected aggregate straight from the stored reviews.
func (db *memDB) aggregateOf(match func(*models.Review) bool) models.Aggregate {
	sum, count := 0, 0
	for _, r := range db.reviews {
		if r.Approved && match(r) {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return models.Aggregate{}
	}
	return models.Aggregate{AverageRating: float64(sum) / float64(count), ReviewCount: count}
}

// fakeTx rolls the memDB back when the callback fails.
type fakeTx struct {
	db      *memDB
	commits int
}

func (f *fakeTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	before := f.db.snapshot()
	if err := fn(ctx, nil); err != nil {
		f.db.restore(before)
		return err
	}
	f.commits++
	return nil
}

type fakeReviewRepo struct{ db *memDB }

func (f *fakeReviewRepo) Create(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error {
	if f.db.writeErr != nil {
		return f.db.writeErr
	}
	review.ID = f.db.nextID("rev-")
	cp := *review
	f.db.reviews[review.ID] = &cp
	return nil
}

func (f *fakeReviewRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Review, error) {
	r, ok := f.db.reviews[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviewRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Review, error) {
	f.db.locks = append(f.db.locks, "review:"+id)
	return f.FindByID(ctx, exec, id)
}

func (f *fakeReviewRepo) Update(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error {
	if f.db.writeErr != nil {
		return f.db.writeErr
	}
	if _, ok := f.db.reviews[review.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *review
	f.db.reviews[review.ID] = &cp
	return nil
}

func (f *fakeReviewRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if f.db.writeErr != nil {
		return f.db.writeErr
	}
	if _, ok := f.db.reviews[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.reviews, id)
	return nil
}

func (f *fakeReviewRepo) ProfessorAggregate(ctx context.Context, exec sqlx.ExtContext, professorID string) (models.Aggregate, error) {
	return f.db.aggregateOf(func(r *models.Review) bool { return r.ProfessorID == professorID }), nil
}

func (f *fakeReviewRepo) SubjectAggregate(ctx context.Context, exec sqlx.ExtContext, subjectID string) (models.Aggregate, error) {
	return f.db.aggregateOf(func(r *models.Review) bool { return r.SubjectID != nil && *r.SubjectID == subjectID }), nil
}

func (f *fakeReviewRepo) SubjectIDsForProfessor(ctx context.Context, exec sqlx.ExtContext, professorID string) ([]string, error) {
	var ids []string
	for _, r := range f.db.reviews {
		if r.ProfessorID == professorID && r.SubjectID != nil {
			ids = append(ids, *r.SubjectID)
		}
	}
	return distinctIDs(ids), nil
}

type fakeProfessorRepo struct{ db *memDB }

func (f *fakeProfessorRepo) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	p, ok := f.db.professors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfessorRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Professor, error) {
	f.db.locks = append(f.db.locks, "professor:"+id)
	return f.FindByID(ctx, id)
}

func (f *fakeProfessorRepo) SubjectsFor(ctx context.Context, professorIDs []string) (map[string][]models.Subject, error) {
	out := make(map[string][]models.Subject, len(professorIDs))
	for _, pid := range professorIDs {
		for _, sid := range f.db.links[pid] {
			if s, ok := f.db.subjects[sid]; ok {
				out[pid] = append(out[pid], *s)
			}
		}
	}
	return out, nil
}

func (f *fakeProfessorRepo) UpdateAggregate(ctx context.Context, exec sqlx.ExtContext, id string, agg models.Aggregate) error {
	p, ok := f.db.professors[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.AverageRating, p.ReviewCount = agg.AverageRating, agg.ReviewCount
	return nil
}

type fakeSubjectRepo struct{ db *memDB }

func (f *fakeSubjectRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	f.db.locks = append(f.db.locks, "subject:"+id)
	s, ok := f.db.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubjectRepo) UpdateAggregate(ctx context.Context, exec sqlx.ExtContext, id string, agg models.Aggregate) error {
	s, ok := f.db.subjects[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.AverageRating, s.ReviewCount = agg.AverageRating, agg.ReviewCount
	return nil
}

type fakeProfiles struct {
	statuses map[string]models.AccountStatus
	err      error
}

func (f *fakeProfiles) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.AccountProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.statuses == nil {
		f.statuses = map[string]models.AccountStatus{}
	}
	status, ok := f.statuses[userID]
	if !ok {
		status = models.AccountActive
		f.statuses[userID] = status
	}
	return &models.AccountProfile{UserID: userID, Status: status}, nil
}

func (f *fakeProfiles) SetStatus(ctx context.Context, exec sqlx.ExtContext, userID string, status models.AccountStatus) (*models.AccountProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.statuses == nil {
		f.statuses = map[string]models.AccountStatus{}
	}
	f.statuses[userID] = status
	return &models.AccountProfile{UserID: userID, Status: status}, nil
}

type stubModerator struct {
	approve bool
	err     error
	calls   int
	// onApprove runs inside Approve, before the verdict is returned.
	onApprove func()
}

func (m *stubModerator) Approve(ctx context.Context, text string) (bool, error) {
	m.calls++
	if m.onApprove != nil {
		m.onApprove()
	}
	return m.approve, m.err
}

type recordingInvalidator struct{ calls int }

func (r *recordingInvalidator) InvalidateProfessors(ctx context.Context) { r.calls++ }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeProfessorRepo) Search(ctx context.Context, filter models.ProfessorFilter) ([]models.Professor, error) {
	out := make([]models.Professor, 0, len(f.db.professors))
	for _, id := range sortedKeys(f.db.professors) {
		p := f.db.professors[id]
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProfessorRepo) Create(ctx context.Context, exec sqlx.ExtContext, professor *models.Professor) error {
	if f.db.writeErr != nil {
		return f.db.writeErr
	}
	professor.ID = f.db.nextID("prof-")
	professor.AverageRating, professor.ReviewCount = 0, 0
	cp := *professor
	f.db.professors[professor.ID] = &cp
	return nil
}

func (f *fakeProfessorRepo) Update(ctx context.Context, exec sqlx.ExtContext, professor *models.Professor) error {
	p, ok := f.db.professors[professor.ID]
	if !ok {
		return sql.ErrNoRows
	}
	p.Name, p.Department = professor.Name, professor.Department
	return nil
}

func (f *fakeProfessorRepo) SetSubjects(ctx context.Context, exec sqlx.ExtContext, professorID string, subjectIDs []string) error {
	f.db.links[professorID] = append([]string(nil), subjectIDs...)
	return nil
}

func (f *fakeProfessorRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := f.db.professors[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.professors, id)
	delete(f.db.links, id)
	for rid, r := range f.db.reviews {
		if r.ProfessorID == id {
			delete(f.db.reviews, rid)
		}
	}
	return nil
}

func (f *fakeSubjectRepo) CountExisting(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := f.db.subjects[id]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeSubjectRepo) FindOrCreateByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Subject, bool, error) {
	if f.db.writeErr != nil {
		return nil, false, f.db.writeErr
	}
	for _, s := range f.db.subjects {
		if s.Name == name {
			cp := *s
			return &cp, false, nil
		}
	}
	s := &models.Subject{ID: f.db.nextID("subj-"), Name: name}
	f.db.subjects[s.ID] = s
	cp := *s
	return &cp, true, nil
}

// memCache is an in-memory CacheRepository storing JSON so cached values round trip like Redis.
type memCache struct {
	entries map[string][]byte
	deletes []string
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}
