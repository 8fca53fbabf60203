package service

import (
	"sort"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

// Ranking keys.
const (
	RankingBestRated    = "best_rated"
	RankingMostReviewed = "most_reviewed"
	RankingBalanced     = "balanced"
	RankingAlphabetical = "alphabetical"
)

// EstablishedThreshold is the review count from which the balanced ranking treats a professor as established.
const EstablishedThreshold = 3

type rankingStrategy struct {
	info models.RankingInfo
	less func(a, b *models.Professor) bool
}

var rankingStrategies = map[string]rankingStrategy{
	RankingBestRated: {
		info: models.RankingInfo{Key: RankingBestRated, Name: "Best rated", Description: "Highest average rating first, ties by review count"},
		less: bestRatedLess,
	},
	RankingMostReviewed: {
		info: models.RankingInfo{Key: RankingMostReviewed, Name: "Most reviewed", Description: "Most reviews first, ties by average rating"},
		less: func(a, b *models.Professor) bool {
			if a.ReviewCount != b.ReviewCount {
				return a.ReviewCount > b.ReviewCount
			}
			if a.AverageRating != b.AverageRating {
				return a.AverageRating > b.AverageRating
			}
			return nameLess(a, b)
		},
	},
	RankingBalanced: {
		info: models.RankingInfo{Key: RankingBalanced, Name: "Balanced", Description: "Professors with at least 3 reviews first, each group by best rating"},
		less: func(a, b *models.Professor) bool {
			ea, eb := a.ReviewCount >= EstablishedThreshold, b.ReviewCount >= EstablishedThreshold
			if ea != eb {
				return ea
			}
			return bestRatedLess(a, b)
		},
	},
	RankingAlphabetical: {
		info: models.RankingInfo{Key: RankingAlphabetical, Name: "Alphabetical", Description: "By name, A to Z"},
		less: nameLess,
	},
}

func bestRatedLess(a, b *models.Professor) bool {
	if a.AverageRating != b.AverageRating {
		return a.AverageRating > b.AverageRating
	}
	if a.ReviewCount != b.ReviewCount {
		return a.ReviewCount > b.ReviewCount
	}
	return nameLess(a, b)
}

// nameLess is the final tie-break of every strategy so orderings are total.
func nameLess(a, b *models.Professor) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// RankingService orders professor collections by a named strategy.
type RankingService struct {
	defaultKey string
}

// NewRankingService validates the default key.
func NewRankingService(defaultKey string) (*RankingService, error) {
	if _, ok := rankingStrategies[defaultKey]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownStrategy, "unknown ranking strategy: "+defaultKey)
	}
	return &RankingService{defaultKey: defaultKey}, nil
}

// Resolve maps an empty key to the default and rejects unknown ones.
func (s *RankingService) Resolve(key string) (string, error) {
	if key == "" {
		return s.defaultKey, nil
	}
	if _, ok := rankingStrategies[key]; !ok {
		return "", appErrors.Clone(appErrors.ErrUnknownStrategy, "unknown ranking strategy: "+key)
	}
	return key, nil
}

// Order returns a sorted copy of professors. An empty key selects the default strategy.
func (s *RankingService) Order(key string, professors []models.Professor) ([]models.Professor, error) {
	resolved, err := s.Resolve(key)
	if err != nil {
		return nil, err
	}
	less := rankingStrategies[resolved].less
	out := make([]models.Professor, len(professors))
	copy(out, professors)
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out, nil
}

// Available lists the strategies sorted by key.
func (s *RankingService) Available() []models.RankingInfo {
	infos := make([]models.RankingInfo, 0, len(rankingStrategies))
	for _, st := range rankingStrategies {
		infos = append(infos, st.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// Default returns the default strategy key.
func (s *RankingService) Default() string {
	return s.defaultKey
}
