package model

import (
	"time"
)

const (
	CompletionTypeTierProgress = "tier_progress"
	CompletionTypeExtra        = "extra"
)

// CompletionRecord is append-only; SessionToken is unique across all devices.
type CompletionRecord struct {
	ID             string    `db:"id"`
	Fingerprint    string    `db:"fingerprint"`
	IPAddress      string    `db:"ip_address"`
	SessionToken   string    `db:"session_token"`
	CompletionType string    `db:"completion_type"`
	UserAgent      string    `db:"user_agent"`
	CreatedAt      time.Time `db:"created_at"`
}

const (
	GoalTier1 = "tier1"
	GoalTier2 = "tier2"
	GoalExtra = "extra"
)

// ValidGoal reports whether goal is one of the known task targets.
func ValidGoal(goal string) bool {
	switch goal {
	case GoalTier1, GoalTier2, GoalExtra:
		return true
	}
	return false
}

// CompletionTypeForGoal maps a task target to the kind of completion it produces.
func CompletionTypeForGoal(goal string) string {
	if goal == GoalExtra {
		return CompletionTypeExtra
	}
	return CompletionTypeTierProgress
}

// SessionToken lives only in the device-local store. A device holds at most one.
type SessionToken struct {
	Token      string    `json:"token"`
	IssuedAt   time.Time `json:"issuedAt"`
	TargetGoal string    `json:"targetGoal"`
}

// IssuedTask is returned to the UI when a task attempt starts.
type IssuedTask struct {
	Token      string `json:"token"`
	TargetGoal string `json:"targetGoal"`
	TaskURL    string `json:"taskUrl"`
}

// CompletionOutcome summarises the state after a verified completion.
type CompletionOutcome struct {
	Type            string `json:"type"`
	Tier            int    `json:"tier"`
	CompletionCount int    `json:"completionCount"`
	ExtraAdded      int    `json:"extraAdded,omitempty"`
	Remaining       int    `json:"remaining"`
	Max             int    `json:"max"`
}
