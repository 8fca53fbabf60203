package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

func TestAccessPolicyCanSubmit(t *testing.T) {
	profiles := &fakeProfiles{statuses: map[string]models.AccountStatus{"banned": models.AccountSuspended}}
	policy := NewAccessPolicy(profiles, nil)

	ok, reason, err := policy.CanSubmit(context.Background(), nil, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, models.AccountActive, profiles.statuses["fresh"], "missing profile is created as active")

	ok, reason, err = policy.CanSubmit(context.Background(), nil, "banned")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.AccountSuspended.StatusMessage()+" You cannot add reviews.", reason)
}

func TestAccessPolicyStoreFailure(t *testing.T) {
	policy := NewAccessPolicy(&fakeProfiles{err: errors.New("connection reset")}, nil)

	ok, _, err := policy.CanSubmit(context.Background(), nil, "u1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
}
