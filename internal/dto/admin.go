package dto

// ModerationStrategyRequest switches the active moderation strategy.
type ModerationStrategyRequest struct {
	Strategy string `json:"strategy" validate:"required,oneof=manual automated"`
}

// ModerationStrategyResponse reports the active moderation strategy.
type ModerationStrategyResponse struct {
	Strategy  string   `json:"strategy"`
	Available []string `json:"available"`
}
