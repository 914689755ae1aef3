package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/DuyAnh662/Fileshare/internal/repository"
	"github.com/DuyAnh662/Fileshare/internal/validation"
	"github.com/google/uuid"
)

type SubmissionInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	FileType    string `json:"file_type"`
	DriveLink   string `json:"drive_link"`
}

type SubmissionService struct {
	repo     repository.SubmissionRepository
	quota    *QuotaService
	device   Device
	settings Settings
}

func NewSubmissionService(
	repo repository.SubmissionRepository,
	quota *QuotaService,
	device Device,
	settings Settings,
) *SubmissionService {
	return &SubmissionService{
		repo:     repo,
		quota:    quota,
		device:   device,
		settings: settings,
	}
}

// Submit queues a Drive link for moderation and counts it against the quota.
func (s *SubmissionService) Submit(ctx context.Context, input SubmissionInput) (*model.PendingSubmission, error) {
	snap, err := s.quota.CheckUploadLimit(ctx)
	if err != nil {
		slog.Warn("quota check unavailable, allowing submission", "error", err)
	} else if !snap.Allowed {
		msg := reasonMessages[ReasonQuotaExceeded]
		if snap.Tier < model.Tier2 {
			msg += " Complete tasks to unlock more uploads!"
		}
		return nil, &RejectionError{Reason: ReasonQuotaExceeded, Message: msg}
	}

	err = s.quota.CheckCooldown(ctx)
	if err != nil {
		return nil, err
	}

	fileType := input.FileType
	if fileType == "" {
		fileType = model.FileTypeOther
	}

	for _, check := range []error{
		validation.ValidateTitle(input.Title),
		validation.ValidateDescription(input.Description),
		validation.ValidateFileType(fileType),
		validation.ValidateDriveLink(input.DriveLink),
	} {
		if check != nil {
			return nil, &ValidationError{Err: check}
		}
	}

	id := s.device.Identity.Identity(ctx)
	submission := &model.PendingSubmission{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(input.Title),
		FileType:    fileType,
		DriveLink:   strings.TrimSpace(input.DriveLink),
		Fingerprint: id.Fingerprint,
		IPAddress:   id.IPAddress,
		CreatedAt:   s.settings.now().UTC(),
	}
	if d := strings.TrimSpace(input.Description); d != "" {
		submission.Description = &d
	}

	err = s.repo.Create(ctx, submission)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	// The submission is stored; a counting failure must not turn it into an error.
	_, err = s.quota.IncrementUsage(ctx)
	if err != nil {
		slog.Error("failed to count submission", "submission_id", submission.ID, "error", err)
	}

	err = s.quota.MarkSubmitted(ctx)
	if err != nil {
		slog.Warn("failed to start cooldown", "submission_id", submission.ID, "error", err)
	}

	slog.Info("submission queued",
		"submission_id", submission.ID,
		"file_type", submission.FileType,
		"drive_id", validation.DriveID(submission.DriveLink),
	)

	return submission, nil
}
