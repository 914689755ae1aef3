package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/DuyAnh662/Fileshare/internal/localstore"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/DuyAnh662/Fileshare/internal/repository"
	"github.com/google/uuid"
)

const randomTokenLength = 13

// Verifier runs the task attempt lifecycle: issue a token, check it on return,
// record the completion and apply its reward.
type Verifier struct {
	completionRepo repository.CompletionRepository
	transactor     repository.Transactor
	tiers          *TierService
	quota          *QuotaService
	device         Device
	settings       Settings
}

func NewVerifier(
	completionRepo repository.CompletionRepository,
	transactor repository.Transactor,
	tiers *TierService,
	quota *QuotaService,
	device Device,
	settings Settings,
) *Verifier {
	return &Verifier{
		completionRepo: completionRepo,
		transactor:     transactor,
		tiers:          tiers,
		quota:          quota,
		device:         device,
		settings:       settings,
	}
}

// IssueSessionToken starts an attempt for goal. Any earlier unconsumed token
// on this device is replaced.
func (v *Verifier) IssueSessionToken(ctx context.Context, goal string) (model.IssuedTask, error) {
	if !model.ValidGoal(goal) {
		return model.IssuedTask{}, &ValidationError{Err: fmt.Errorf("unknown task goal %q", goal)}
	}

	id := v.device.Identity.Identity(ctx)
	now := v.settings.now()

	fp := id.Fingerprint
	if len(fp) > 8 {
		fp = fp[:8]
	}
	token := strconv.FormatInt(now.UnixMilli(), 36) + "_" + randomPart() + "_" + fp

	err := localstore.SetJSON(ctx, v.device.Store, keySessionToken, model.SessionToken{
		Token:      token,
		IssuedAt:   now.UTC(),
		TargetGoal: goal,
	})
	if err != nil {
		return model.IssuedTask{}, fmt.Errorf("failed to store session token: %w", err)
	}

	return model.IssuedTask{
		Token:      token,
		TargetGoal: goal,
		TaskURL:    taskURL(v.settings.TaskURLs[goal], token),
	}, nil
}

func randomPart() string {
	id := uuid.New()
	s := new(big.Int).SetBytes(id[:]).Text(36)
	if len(s) > randomTokenLength {
		s = s[:randomTokenLength]
	}
	return s
}

// taskURL appends the token to the external task link without re-encoding
// the link's own query, which some providers use as an opaque key.
func taskURL(base, token string) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func (v *Verifier) storedToken(ctx context.Context) (*model.SessionToken, error) {
	data, ok, err := v.device.Store.Get(ctx, keySessionToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var session model.SessionToken
	err = json.Unmarshal(data, &session)
	if err != nil || session.Token == "" {
		slog.Warn("unreadable session token, discarding", "error", err)
		_ = v.device.Store.Delete(ctx, keySessionToken)
		return nil, nil
	}

	return &session, nil
}

// ResolveCallbackToken prefers the token echoed by the task provider and falls
// back to the one stored on the device.
func (v *Verifier) ResolveCallbackToken(ctx context.Context, echoed string) (string, error) {
	if echoed != "" {
		return echoed, nil
	}

	session, err := v.storedToken(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", reject(ReasonNoToken)
	}
	return session.Token, nil
}

// VerifyToken checks token against the stored attempt and the minimum task
// duration.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (*model.SessionToken, error) {
	session, err := v.storedToken(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Token != token {
		return nil, reject(ReasonMismatch)
	}

	elapsed := v.settings.now().Sub(session.IssuedAt)
	if elapsed < v.settings.MinCompletionTime {
		return nil, reject(ReasonTooFast)
	}

	return session, nil
}

// RecordCompletion verifies token, records it once and applies the reward for
// completionType. The completion and its reward commit together, so a failed
// call leaves the token unspent and can be retried.
func (v *Verifier) RecordCompletion(ctx context.Context, token, completionType string) (model.CompletionOutcome, error) {
	// Replay is checked against the store first so a reused token is reported
	// as such even after this device cleared its copy.
	used, err := v.completionRepo.ExistsByToken(ctx, token)
	if err != nil {
		return model.CompletionOutcome{}, fmt.Errorf("failed to check token: %w", err)
	}
	if used {
		return model.CompletionOutcome{}, reject(ReasonReplay)
	}

	session, err := v.VerifyToken(ctx, token)
	if err != nil {
		return model.CompletionOutcome{}, err
	}

	if model.CompletionTypeForGoal(session.TargetGoal) != completionType {
		return model.CompletionOutcome{}, reject(ReasonInvalidCallback)
	}

	id := v.device.Identity.Identity(ctx)
	record := &model.CompletionRecord{
		Fingerprint:    id.Fingerprint,
		IPAddress:      id.IPAddress,
		SessionToken:   token,
		CompletionType: completionType,
		UserAgent:      id.UserAgent,
		CreatedAt:      v.settings.now().UTC(),
	}

	var outcome model.CompletionOutcome
	switch completionType {
	case model.CompletionTypeExtra:
		outcome, err = v.recordExtra(ctx, record)
	default:
		outcome, err = v.recordTierProgress(ctx, record)
	}
	if err != nil {
		return model.CompletionOutcome{}, err
	}

	err = v.device.Store.Delete(ctx, keySessionToken)
	if err != nil {
		slog.Warn("failed to clear session token", "error", err)
	}

	// The completion is committed; a failed read only loses precision.
	snap, err := v.quota.CheckUploadLimit(ctx)
	if err != nil {
		slog.Warn("failed to read quota after completion", "error", err)
	} else {
		outcome.Tier = snap.Tier
		outcome.CompletionCount = snap.CompletionCount
		outcome.Remaining = snap.Remaining
		outcome.Max = snap.Max
	}

	slog.Info("task completion recorded",
		"fingerprint", id.Fingerprint,
		"type", completionType,
		"tier", outcome.Tier,
	)

	return outcome, nil
}

func createCompletion(ctx context.Context, completions repository.CompletionRepository, record *model.CompletionRecord) error {
	err := completions.Create(ctx, record)
	if errors.Is(err, repository.ErrCompletionExists) {
		return reject(ReasonReplay)
	}
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// recordExtra inserts the completion and grants the extra uploads in one
// transaction. Reaching the cap rolls the completion back.
func (v *Verifier) recordExtra(ctx context.Context, record *model.CompletionRecord) (model.CompletionOutcome, error) {
	tier, err := v.tiers.Snapshot(ctx)
	if err != nil {
		return model.CompletionOutcome{}, err
	}
	key := v.quota.usageKeyFor(ctx, tier)
	amount := v.settings.ExtraUploads

	var usage *model.UsageRecord
	err = v.transactor.InTx(ctx, func(tx repository.Tx) error {
		err := createCompletion(ctx, tx.Completions, record)
		if err != nil {
			return err
		}
		usage, err = v.quota.grant(ctx, tx.Usage, key, amount)
		return err
	})
	if err != nil {
		return model.CompletionOutcome{}, err
	}

	v.invalidate(ctx, v.quota.Invalidate)
	logGrant(key, amount, usage)

	return model.CompletionOutcome{
		Type:            model.CompletionTypeExtra,
		Tier:            tier.Tier,
		CompletionCount: tier.CompletionCount,
		Remaining:       max(0, usage.MaxUploads-usage.UploadCount),
		Max:             usage.MaxUploads,
		ExtraAdded:      amount,
	}, nil
}

// recordTierProgress inserts the completion and stores the recounted tier in
// one transaction. Expiry is applied beforehand since it commits on its own.
func (v *Verifier) recordTierProgress(ctx context.Context, record *model.CompletionRecord) (model.CompletionOutcome, error) {
	existing, err := v.tiers.current(ctx)
	if err != nil {
		return model.CompletionOutcome{}, err
	}

	var upgraded *model.TierRecord
	err = v.transactor.InTx(ctx, func(tx repository.Tx) error {
		err := createCompletion(ctx, tx.Completions, record)
		if err != nil {
			return err
		}
		upgraded, err = v.tiers.upgrade(ctx, tx.Tiers, tx.Completions)
		return err
	})
	if err != nil {
		return model.CompletionOutcome{}, err
	}

	v.invalidate(ctx, v.tiers.Invalidate)
	v.invalidate(ctx, v.quota.Invalidate)
	logUpgrade(existing, upgraded)

	ceiling := v.settings.tiers().MaxUploads(upgraded.Tier)
	return model.CompletionOutcome{
		Type:            model.CompletionTypeTierProgress,
		Tier:            upgraded.Tier,
		CompletionCount: upgraded.CompletionCount,
		Remaining:       ceiling,
		Max:             ceiling,
	}, nil
}

func (v *Verifier) invalidate(ctx context.Context, fn func(context.Context) error) {
	err := fn(ctx)
	if err != nil {
		slog.Warn("failed to invalidate cache after completion", "error", err)
	}
}
