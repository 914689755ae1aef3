package service

import (
	"context"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/cache"
	"github.com/DuyAnh662/Fileshare/internal/localstore"
	"github.com/DuyAnh662/Fileshare/internal/model"
)

// Keys in the device-local store.
const (
	keyTierSnapshot   = "tier_snapshot"
	keyQuotaSnapshot  = "quota_snapshot"
	keySessionToken   = "session_token"
	keyLastSubmission = "last_submission"
)

// IdentitySource yields the identity of the device behind the current request.
type IdentitySource interface {
	Identity(ctx context.Context) model.Identity
}

// Device is the state every per-device service operates on.
type Device struct {
	ID       string
	Identity IdentitySource
	Store    localstore.Store
}

// Settings carries the knobs shared by all devices.
type Settings struct {
	Tiers             model.TierTable
	CacheTTL          time.Duration
	CacheStaleAfter   time.Duration
	UploadCooldown    time.Duration
	ExtraUploads      int
	ExtraUploadsCap   int
	MinCompletionTime time.Duration
	TaskURLs          map[string]string
	Refresher         *cache.Refresher
	Now               func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Settings) tiers() model.TierTable {
	if len(s.Tiers) == 0 {
		return model.DefaultTiers()
	}
	return s.Tiers
}

func newCache[T any](s Settings, d Device, key string) *cache.Cache[T] {
	return cache.New[T](d.Store, key, cache.Options{
		TTL:        s.CacheTTL,
		StaleAfter: s.CacheStaleAfter,
		Now:        s.now,
		Refresher:  s.Refresher,
		Scope:      d.ID,
	})
}
