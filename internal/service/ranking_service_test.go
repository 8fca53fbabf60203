package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

func rankingFixture() []models.Professor {
	return []models.Professor{
		{ID: "d", Name: "D", AverageRating: 5.0, ReviewCount: 1},
		{ID: "c", Name: "C", AverageRating: 3.0, ReviewCount: 50},
		{ID: "b", Name: "B", AverageRating: 4.5, ReviewCount: 3},
		{ID: "a", Name: "A", AverageRating: 4.5, ReviewCount: 10},
	}
}

func names(list []models.Professor) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Name
	}
	return out
}

func TestRankingServiceOrders(t *testing.T) {
	svc, err := NewRankingService(RankingBestRated)
	require.NoError(t, err)

	cases := []struct {
		key  string
		want []string
	}{
		{key: RankingBestRated, want: []string{"D", "A", "B", "C"}},
		{key: RankingMostReviewed, want: []string{"C", "A", "B", "D"}},
		{key: RankingBalanced, want: []string{"A", "B", "C", "D"}},
		{key: RankingAlphabetical, want: []string{"A", "B", "C", "D"}},
		{key: "", want: []string{"D", "A", "B", "C"}},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			input := rankingFixture()
			got, err := svc.Order(tc.key, input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
			assert.Equal(t, "D", input[0].Name, "input must not be reordered")
		})
	}
}

func TestRankingServiceWithoutLowCountProfessor(t *testing.T) {
	svc, err := NewRankingService(RankingBalanced)
	require.NoError(t, err)

	list := rankingFixture()[1:]
	best, err := svc.Order(RankingBestRated, list)
	require.NoError(t, err)
	balanced, err := svc.Order(RankingBalanced, list)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, names(best))
	assert.Equal(t, names(best), names(balanced))
}

func TestRankingServiceTieBreakIsDeterministic(t *testing.T) {
	svc, err := NewRankingService(RankingBestRated)
	require.NoError(t, err)

	list := []models.Professor{
		{ID: "2", Name: "Same", AverageRating: 4, ReviewCount: 2},
		{ID: "1", Name: "Same", AverageRating: 4, ReviewCount: 2},
		{ID: "3", Name: "Other", AverageRating: 4, ReviewCount: 2},
	}
	got, err := svc.Order(RankingMostReviewed, list)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRankingServiceUnknownKey(t *testing.T) {
	_, err := NewRankingService("random")
	assert.ErrorIs(t, err, appErrors.ErrUnknownStrategy)

	svc, err := NewRankingService(RankingAlphabetical)
	require.NoError(t, err)
	_, err = svc.Order("random", rankingFixture())
	assert.ErrorIs(t, err, appErrors.ErrUnknownStrategy)

	assert.Len(t, svc.Available(), 4)
	assert.Equal(t, RankingAlphabetical, svc.Default())
}
