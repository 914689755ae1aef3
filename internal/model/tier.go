package model

import (
	"time"
)

const (
	Tier0 = 0
	Tier1 = 1
	Tier2 = 2
)

// TierRecord is keyed by fingerprint. TierExpiresAt is set iff Tier > 0.
type TierRecord struct {
	Fingerprint     string     `db:"fingerprint"`
	IPAddress       string     `db:"ip_address"`
	Tier            int        `db:"tier"`
	CompletionCount int        `db:"completion_count"`
	TierExpiresAt   *time.Time `db:"tier_expires_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// IsExpired reports whether a paid tier has run past its expiry at the given time.
func (r *TierRecord) IsExpired(now time.Time) bool {
	return r.Tier > Tier0 && r.TierExpiresAt != nil && r.TierExpiresAt.Before(now)
}

// TierPlan describes one escalation level.
type TierPlan struct {
	Level        int    `yaml:"level"`
	Name         string `yaml:"name"`
	MaxUploads   int    `yaml:"max_uploads"`
	DurationDays int    `yaml:"duration_days"`
	Requirement  int    `yaml:"requirement"`
}

func (p TierPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// TierTable is indexed by tier level.
type TierTable []TierPlan

// DefaultTiers mirrors the production limits: 30 free uploads a month,
// 50 after 5 completions (45 days), effectively unlimited after 50 (1 year).
func DefaultTiers() TierTable {
	return TierTable{
		{Level: Tier0, Name: "Free", MaxUploads: 30},
		{Level: Tier1, Name: "Supporter", MaxUploads: 50, DurationDays: 45, Requirement: 5},
		{Level: Tier2, Name: "Premium", MaxUploads: 999999, DurationDays: 365, Requirement: 50},
	}
}

// Plan returns the plan for a level, falling back to the free plan for unknown levels.
func (t TierTable) Plan(level int) TierPlan {
	if level < 0 || level >= len(t) {
		return t[Tier0]
	}
	return t[level]
}

func (t TierTable) MaxUploads(level int) int {
	return t.Plan(level).MaxUploads
}

// TierSnapshot is the cached projection of a TierRecord.
type TierSnapshot struct {
	Tier            int        `json:"tier"`
	CompletionCount int        `json:"completionCount"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

// TierStatus is what the UI renders for the current device.
type TierStatus struct {
	Tier            int        `json:"tier"`
	Name            string     `json:"name"`
	CompletionCount int        `json:"completionCount"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	NextTier        *int       `json:"nextTier"`
	Required        int        `json:"required"`
	Progress        int        `json:"progress"` // percent towards NextTier
}
