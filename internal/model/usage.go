package model

import (
	"time"
)

// UsageRecord counts submissions for one IP address in one calendar month.
// MaxUploads is a high-water mark and never decreases within a period.
type UsageRecord struct {
	ID           string    `db:"id"`
	IPAddress    string    `db:"ip_address"`
	MonthKey     string    `db:"month_key"`
	Fingerprint  string    `db:"fingerprint"`
	UploadCount  int       `db:"upload_count"`
	MaxUploads   int       `db:"max_uploads"`
	BonusUploads int       `db:"bonus_uploads"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// MonthKey returns the YYYY-MM period key of t in its own location.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// QuotaSnapshot is derived from TierRecord + UsageRecord and only ever cached locally.
type QuotaSnapshot struct {
	Allowed         bool       `json:"allowed"`
	Remaining       int        `json:"remaining"`
	Used            int        `json:"used"`
	Max             int        `json:"max"`
	Tier            int        `json:"tier"`
	CompletionCount int        `json:"completionCount"`
	TierExpiresAt   *time.Time `json:"tierExpiresAt,omitempty"`
}
