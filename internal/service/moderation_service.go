package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/moderation"
)

// Moderation strategy keys.
const (
	ModerationManual    = "manual"
	ModerationAutomated = "automated"
)

// Moderator approves or rejects review text. A non-nil error means no decision
// could be made and must never be read as approval or rejection.
type Moderator interface {
	Approve(ctx context.Context, text string) (bool, error)
}

// ManualModerator approves everything. It is used when reviews are trusted or
// checked by administrators after publication.
type ManualModerator struct{}

// Approve always approves.
func (ManualModerator) Approve(context.Context, string) (bool, error) {
	return true, nil
}

type textClassifier interface {
	Classify(ctx context.Context, text string) (moderation.Verdict, error)
}

// AutomatedModerator asks an external classifier.
type AutomatedModerator struct {
	classifier textClassifier
}

// NewAutomatedModerator wraps classifier.
func NewAutomatedModerator(classifier textClassifier) *AutomatedModerator {
	return &AutomatedModerator{classifier: classifier}
}

// Approve maps the classifier verdict to a decision.
func (m *AutomatedModerator) Approve(ctx context.Context, text string) (bool, error) {
	verdict, err := m.classifier.Classify(ctx, text)
	if err != nil {
		msg := "moderation service unreachable"
		if errors.Is(err, moderation.ErrUnexpectedAnswer) {
			msg = "moderation service returned an unexpected answer"
		}
		return false, appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, msg)
	}
	switch verdict {
	case moderation.VerdictApproved:
		return true, nil
	case moderation.VerdictRejected:
		return false, nil
	default:
		return false, appErrors.Clone(appErrors.ErrModerationUnavailable, "moderation service returned an unexpected answer")
	}
}

// ModerationService holds the registered strategies and the one currently active.
// The active strategy can be switched at runtime.
type ModerationService struct {
	mu         sync.RWMutex
	strategies map[string]Moderator
	active     string
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewModerationService registers strategies and activates initial.
func NewModerationService(strategies map[string]Moderator, initial string, metrics *MetricsService, logger *zap.Logger) (*ModerationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ModerationService{strategies: strategies, metrics: metrics, logger: logger}
	if err := s.Switch(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Approve runs the active strategy.
func (s *ModerationService) Approve(ctx context.Context, text string) (bool, error) {
	s.mu.RLock()
	name := s.active
	strategy := s.strategies[name]
	s.mu.RUnlock()

	start := time.Now()
	approved, err := strategy.Approve(ctx, text)
	result := "approved"
	switch {
	case err != nil:
		result = "unavailable"
		s.logger.Warn("moderation unavailable", zap.String("strategy", name), zap.Error(err))
	case !approved:
		result = "rejected"
	}
	s.metrics.ObserveModeration(name, result, time.Since(start))
	return approved, err
}

// Switch activates the strategy registered under name.
func (s *ModerationService) Switch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[name]; !ok {
		return appErrors.Clone(appErrors.ErrUnknownStrategy, "unknown moderation strategy: "+name)
	}
	if s.active != name {
		s.logger.Info("moderation strategy switched", zap.String("from", s.active), zap.String("to", name))
	}
	s.active = name
	return nil
}

// Active returns the key of the active strategy.
func (s *ModerationService) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Available lists the registered strategy keys.
func (s *ModerationService) Available() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.strategies))
	for k := range s.strategies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
