package service

import (
	"context"
	"log/slog"

	"github.com/DuyAnh662/Fileshare/internal/model"
)

// Gate is the boundary the UI talks to. Every call returns a tagged Result.
// Reads degrade to permissive defaults when the store is unreachable so a user
// is never blocked by an outage; writes report "unavailable" instead.
type Gate struct {
	tiers       *TierService
	quota       *QuotaService
	verifier    *Verifier
	submissions *SubmissionService
	settings    Settings
}

func NewGate(
	tiers *TierService,
	quota *QuotaService,
	verifier *Verifier,
	submissions *SubmissionService,
	settings Settings,
) *Gate {
	return &Gate{
		tiers:       tiers,
		quota:       quota,
		verifier:    verifier,
		submissions: submissions,
		settings:    settings,
	}
}

func (g *Gate) permissiveQuota() model.QuotaSnapshot {
	ceiling := g.settings.tiers().MaxUploads(model.Tier0)
	return model.QuotaSnapshot{Allowed: true, Remaining: ceiling, Max: ceiling, Tier: model.Tier0}
}

func (g *Gate) CheckUploadLimit(ctx context.Context) Result[model.QuotaSnapshot] {
	snap, err := g.quota.CheckUploadLimit(ctx)
	if err != nil {
		slog.Warn("quota check failed, using permissive default", "error", err)
		return Success(g.permissiveQuota())
	}
	return Success(snap)
}

// IncrementUsage counts one upload and returns the refreshed quota.
func (g *Gate) IncrementUsage(ctx context.Context) Result[model.QuotaSnapshot] {
	_, err := g.quota.IncrementUsage(ctx)
	if err != nil {
		return FailureFrom[model.QuotaSnapshot](err)
	}
	return g.CheckUploadLimit(ctx)
}

func (g *Gate) UserTier(ctx context.Context) Result[model.TierStatus] {
	status, err := g.tiers.UserTier(ctx)
	if err != nil {
		slog.Warn("tier lookup failed, using free tier", "error", err)
		return Success(g.tiers.status(model.TierSnapshot{Tier: model.Tier0}))
	}
	return Success(status)
}

func (g *Gate) IssueSessionToken(ctx context.Context, goal string) Result[model.IssuedTask] {
	task, err := g.verifier.IssueSessionToken(ctx, goal)
	if err != nil {
		return FailureFrom[model.IssuedTask](err)
	}
	return Success(task)
}

// RecordCompletion handles the return from a tier task. token may be empty
// when the provider did not echo it back.
func (g *Gate) RecordCompletion(ctx context.Context, token string) Result[model.CompletionOutcome] {
	return g.record(ctx, token, model.CompletionTypeTierProgress)
}

func (g *Gate) RecordExtraCompletion(ctx context.Context, token string) Result[model.CompletionOutcome] {
	return g.record(ctx, token, model.CompletionTypeExtra)
}

func (g *Gate) record(ctx context.Context, token, completionType string) Result[model.CompletionOutcome] {
	token, err := g.verifier.ResolveCallbackToken(ctx, token)
	if err != nil {
		return FailureFrom[model.CompletionOutcome](err)
	}

	outcome, err := g.verifier.RecordCompletion(ctx, token, completionType)
	if err != nil {
		return FailureFrom[model.CompletionOutcome](err)
	}
	return Success(outcome)
}

func (g *Gate) Submit(ctx context.Context, input SubmissionInput) Result[*model.PendingSubmission] {
	submission, err := g.submissions.Submit(ctx, input)
	if err != nil {
		return FailureFrom[*model.PendingSubmission](err)
	}
	return Success(submission)
}
