package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/cache"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/DuyAnh662/Fileshare/internal/repository"
)

type TierService struct {
	tierRepo       repository.TierRepository
	completionRepo repository.CompletionRepository
	device         Device
	settings       Settings
}

func NewTierService(
	tierRepo repository.TierRepository,
	completionRepo repository.CompletionRepository,
	device Device,
	settings Settings,
) *TierService {
	return &TierService{
		tierRepo:       tierRepo,
		completionRepo: completionRepo,
		device:         device,
		settings:       settings,
	}
}

// ComputeTier returns the highest level whose requirement count meets.
func ComputeTier(tiers model.TierTable, count int) int {
	for level := len(tiers) - 1; level > model.Tier0; level-- {
		if count >= tiers[level].Requirement {
			return level
		}
	}
	return model.Tier0
}

func (s *TierService) ComputeTier(count int) int {
	return ComputeTier(s.settings.tiers(), count)
}

func (s *TierService) cache(fingerprint string) *cache.Cache[model.TierSnapshot] {
	c := newCache[model.TierSnapshot](s.settings, s.device, keyTierSnapshot+":"+fingerprint)
	c.Valid = func(snap model.TierSnapshot, now time.Time) bool {
		return !snapshotExpired(snap.Tier, snap.ExpiresAt, now)
	}
	return c
}

func snapshotExpired(tier int, expiresAt *time.Time, now time.Time) bool {
	return tier > model.Tier0 && expiresAt != nil && expiresAt.Before(now)
}

// Snapshot returns the device's current tier. Expiry is checked on every
// read, cached or not.
func (s *TierService) Snapshot(ctx context.Context) (model.TierSnapshot, error) {
	id := s.device.Identity.Identity(ctx)
	return s.cache(id.Fingerprint).Get(ctx, func(ctx context.Context) (model.TierSnapshot, error) {
		return s.load(ctx, id.Fingerprint)
	})
}

func (s *TierService) load(ctx context.Context, fingerprint string) (model.TierSnapshot, error) {
	record, err := s.tierRepo.ByFingerprint(ctx, fingerprint)
	if errors.Is(err, repository.ErrTierNotFound) {
		return model.TierSnapshot{Tier: model.Tier0}, nil
	}
	if err != nil {
		return model.TierSnapshot{}, fmt.Errorf("failed to load tier: %w", err)
	}

	record, err = s.CheckExpiry(ctx, record)
	if err != nil {
		return model.TierSnapshot{}, err
	}

	return model.TierSnapshot{
		Tier:            record.Tier,
		CompletionCount: record.CompletionCount,
		ExpiresAt:       record.TierExpiresAt,
	}, nil
}

// CheckExpiry resets an expired paid tier to 0, keeping the completion count.
// It is the only path that lowers a tier.
func (s *TierService) CheckExpiry(ctx context.Context, record *model.TierRecord) (*model.TierRecord, error) {
	now := s.settings.now()
	if !record.IsExpired(now) {
		return record, nil
	}

	reset, err := s.tierRepo.ResetExpired(ctx, record.Fingerprint, record.Tier, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to reset expired tier: %w", err)
	}

	if !reset {
		// Another request changed the tier first; use what it wrote.
		current, err := s.tierRepo.ByFingerprint(ctx, record.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("failed to reload tier: %w", err)
		}
		if current.IsExpired(now) {
			return s.CheckExpiry(ctx, current)
		}
		return current, nil
	}

	slog.Info("tier expired",
		"fingerprint", record.Fingerprint,
		"tier", record.Tier,
		"expired_at", record.TierExpiresAt,
	)

	expired := *record
	expired.Tier = model.Tier0
	expired.TierExpiresAt = nil
	expired.UpdatedAt = now.UTC()
	return &expired, nil
}

// ApplyCompletion recounts tier-progress completions and stores the result.
// The tier only ever moves up here, and re-applying the same count changes
// nothing but updated_at.
func (s *TierService) ApplyCompletion(ctx context.Context) (*model.TierRecord, error) {
	existing, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.upgrade(ctx, s.tierRepo, s.completionRepo)
	if err != nil {
		return nil, err
	}

	err = s.Invalidate(ctx)
	if err != nil {
		return nil, err
	}
	logUpgrade(existing, record)

	return record, nil
}

// current loads the stored tier with expiry applied. It returns nil when the
// device has no tier yet.
func (s *TierService) current(ctx context.Context) (*model.TierRecord, error) {
	id := s.device.Identity.Identity(ctx)

	existing, err := s.tierRepo.ByFingerprint(ctx, id.Fingerprint)
	if errors.Is(err, repository.ErrTierNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tier: %w", err)
	}

	return s.CheckExpiry(ctx, existing)
}

// upgrade recounts through completions and stores the tier through tiers.
// Both may be bound to the transaction that inserted the completion.
func (s *TierService) upgrade(
	ctx context.Context,
	tiers repository.TierRepository,
	completions repository.CompletionRepository,
) (*model.TierRecord, error) {
	id := s.device.Identity.Identity(ctx)
	now := s.settings.now().UTC()

	count, err := completions.CountByFingerprint(ctx, id.Fingerprint, model.CompletionTypeTierProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	candidate := s.ComputeTier(count)
	var expiresAt *time.Time
	if candidate > model.Tier0 {
		t := now.Add(s.settings.tiers().Plan(candidate).Duration())
		expiresAt = &t
	}

	record, err := tiers.UpsertUpgrade(ctx, &model.TierRecord{
		Fingerprint:     id.Fingerprint,
		IPAddress:       id.IPAddress,
		Tier:            candidate,
		CompletionCount: count,
		TierExpiresAt:   expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store tier: %w", err)
	}

	return record, nil
}

func logUpgrade(existing, record *model.TierRecord) {
	if existing == nil || record.Tier != existing.Tier {
		slog.Info("tier updated",
			"fingerprint", record.Fingerprint,
			"tier", record.Tier,
			"completion_count", record.CompletionCount,
		)
	}
}

func (s *TierService) Invalidate(ctx context.Context) error {
	id := s.device.Identity.Identity(ctx)
	err := s.cache(id.Fingerprint).Invalidate(ctx)
	if err != nil {
		return fmt.Errorf("failed to invalidate tier cache: %w", err)
	}
	return nil
}

// UserTier describes the current tier and the progress towards the next one.
func (s *TierService) UserTier(ctx context.Context) (model.TierStatus, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return model.TierStatus{}, err
	}
	return s.status(snap), nil
}

func (s *TierService) status(snap model.TierSnapshot) model.TierStatus {
	tiers := s.settings.tiers()
	status := model.TierStatus{
		Tier:            snap.Tier,
		Name:            tiers.Plan(snap.Tier).Name,
		CompletionCount: snap.CompletionCount,
		ExpiresAt:       snap.ExpiresAt,
		Progress:        100,
	}

	next := snap.Tier + 1
	if next < len(tiers) {
		required := tiers[next].Requirement
		status.NextTier = &next
		status.Required = required
		if required > 0 {
			status.Progress = min(100, int(math.Round(float64(snap.CompletionCount)*100/float64(required))))
		}
	}

	return status
}
