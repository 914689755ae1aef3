package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/cache"
	"github.com/DuyAnh662/Fileshare/internal/localstore"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/DuyAnh662/Fileshare/internal/repository"
)

type QuotaService struct {
	usageRepo repository.UsageRepository
	tiers     *TierService
	device    Device
	settings  Settings
}

func NewQuotaService(
	usageRepo repository.UsageRepository,
	tiers *TierService,
	device Device,
	settings Settings,
) *QuotaService {
	return &QuotaService{
		usageRepo: usageRepo,
		tiers:     tiers,
		device:    device,
		settings:  settings,
	}
}

func (s *QuotaService) cache(id model.Identity, monthKey string) *cache.Cache[model.QuotaSnapshot] {
	key := keyQuotaSnapshot + ":" + id.IPAddress + ":" + monthKey
	c := newCache[model.QuotaSnapshot](s.settings, s.device, key)
	c.Valid = func(snap model.QuotaSnapshot, now time.Time) bool {
		return !snapshotExpired(snap.Tier, snap.TierExpiresAt, now)
	}
	return c
}

// CheckUploadLimit reports how many uploads the device has left this period.
func (s *QuotaService) CheckUploadLimit(ctx context.Context) (model.QuotaSnapshot, error) {
	id := s.device.Identity.Identity(ctx)
	monthKey := model.MonthKey(s.settings.now())

	return s.cache(id, monthKey).Get(ctx, func(ctx context.Context) (model.QuotaSnapshot, error) {
		return s.load(ctx, id, monthKey)
	})
}

func (s *QuotaService) load(ctx context.Context, id model.Identity, monthKey string) (model.QuotaSnapshot, error) {
	tier, err := s.tiers.Snapshot(ctx)
	if err != nil {
		return model.QuotaSnapshot{}, err
	}
	ceiling := s.settings.tiers().MaxUploads(tier.Tier)

	snap := model.QuotaSnapshot{
		Allowed:         true,
		Remaining:       ceiling,
		Max:             ceiling,
		Tier:            tier.Tier,
		CompletionCount: tier.CompletionCount,
		TierExpiresAt:   tier.ExpiresAt,
	}

	usage, err := s.usageRepo.ByPeriod(ctx, id.IPAddress, monthKey)
	if errors.Is(err, repository.ErrUsageNotFound) {
		return snap, nil
	}
	if err != nil {
		return model.QuotaSnapshot{}, fmt.Errorf("failed to load usage: %w", err)
	}

	// An upgrade mid-period raises the ceiling for the period already running.
	snap.Max = max(usage.MaxUploads, ceiling)
	snap.Used = usage.UploadCount
	snap.Remaining = max(0, snap.Max-snap.Used)
	snap.Allowed = snap.Remaining > 0

	return snap, nil
}

// Invalidate drops the cached snapshot for the current period.
func (s *QuotaService) Invalidate(ctx context.Context) error {
	id := s.device.Identity.Identity(ctx)
	err := s.cache(id, model.MonthKey(s.settings.now())).Invalidate(ctx)
	if err != nil {
		return fmt.Errorf("failed to invalidate quota cache: %w", err)
	}
	return nil
}

// IncrementUsage counts one successful submission. It does not check the
// limit; callers gate on CheckUploadLimit first.
func (s *QuotaService) IncrementUsage(ctx context.Context) (*model.UsageRecord, error) {
	err := s.Invalidate(ctx)
	if err != nil {
		return nil, err
	}

	key, err := s.usageKey(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.usageRepo.Increment(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}

	// A background refresh may have repopulated the entry in between.
	err = s.Invalidate(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GrantExtra raises this period's ceiling by amount on top of the tier ceiling.
func (s *QuotaService) GrantExtra(ctx context.Context, amount int) (*model.UsageRecord, error) {
	key, err := s.usageKey(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.grant(ctx, s.usageRepo, key, amount)
	if err != nil {
		return nil, err
	}

	err = s.Invalidate(ctx)
	if err != nil {
		return nil, err
	}
	logGrant(key, amount, record)

	return record, nil
}

// grant stores the grant through usage, which may be bound to a transaction.
// The per-period cap is enforced by the store in the same statement.
func (s *QuotaService) grant(ctx context.Context, usage repository.UsageRepository, key repository.UsageKey, amount int) (*model.UsageRecord, error) {
	record, err := usage.GrantExtra(ctx, key, amount, s.settings.ExtraUploadsCap)
	if errors.Is(err, repository.ErrExtraCapReached) {
		return nil, reject(ReasonExtraCapReached)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to grant extra uploads: %w", err)
	}
	return record, nil
}

func logGrant(key repository.UsageKey, amount int, record *model.UsageRecord) {
	slog.Info("extra uploads granted",
		"ip_address", key.IPAddress,
		"month", key.MonthKey,
		"amount", amount,
		"max_uploads", record.MaxUploads,
	)
}

func (s *QuotaService) usageKey(ctx context.Context) (repository.UsageKey, error) {
	tier, err := s.tiers.Snapshot(ctx)
	if err != nil {
		return repository.UsageKey{}, err
	}
	return s.usageKeyFor(ctx, tier), nil
}

func (s *QuotaService) usageKeyFor(ctx context.Context, tier model.TierSnapshot) repository.UsageKey {
	id := s.device.Identity.Identity(ctx)
	now := s.settings.now()

	return repository.UsageKey{
		IPAddress:   id.IPAddress,
		MonthKey:    model.MonthKey(now),
		Fingerprint: id.Fingerprint,
		Ceiling:     s.settings.tiers().MaxUploads(tier.Tier),
		Now:         now.UTC(),
	}
}

// CheckCooldown returns a *CooldownError while the last submission is more
// recent than the configured interval.
func (s *QuotaService) CheckCooldown(ctx context.Context) error {
	if s.settings.UploadCooldown <= 0 {
		return nil
	}

	var last time.Time
	ok, err := localstore.GetJSON(ctx, s.device.Store, keyLastSubmission, &last)
	if err != nil {
		slog.Warn("unreadable last submission time, ignoring", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	elapsed := s.settings.now().Sub(last)
	if elapsed < s.settings.UploadCooldown {
		return &CooldownError{Wait: s.settings.UploadCooldown - elapsed}
	}
	return nil
}

// MarkSubmitted starts the cooldown window.
func (s *QuotaService) MarkSubmitted(ctx context.Context) error {
	err := localstore.SetJSON(ctx, s.device.Store, keyLastSubmission, s.settings.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record submission time: %w", err)
	}
	return nil
}
