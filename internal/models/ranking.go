package models

// RankingInfo describes an available professor ordering.
type RankingInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
