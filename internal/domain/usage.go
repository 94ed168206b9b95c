package domain

import "time"

// UsageRecord is one (tenant, user, day) token accounting row.
// It is only ever mutated by atomic increment-or-create and never
// decremented; a new record starts each UTC day.
type UsageRecord struct {
	TenantID         string    `json:"wiki_id"`
	UserID           int64     `json:"user_id"`
	UsageDate        time.Time `json:"usage_date"` // date component only, UTC
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	RequestCount     int       `json:"request_count"`
}

// UsageStatus is the result of a quota check for the current UTC day.
type UsageStatus struct {
	TokensUsed      int       `json:"tokens_used"`
	TokensRemaining int       `json:"tokens_remaining"`
	Limit           int       `json:"limit"`
	RequestsToday   int       `json:"requests_today"`
	IsLimited       bool      `json:"is_limited"`
	ResetTime       time.Time `json:"reset_time"`
}

// UsageDay truncates t to its UTC calendar date.
func UsageDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextUTCMidnight returns the moment the daily quota resets.
func NextUTCMidnight(now time.Time) time.Time {
	return UsageDay(now).Add(24 * time.Hour)
}
