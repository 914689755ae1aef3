package service

import (
	"github.com/DuyAnh662/Fileshare/internal/repository"
)

// Repositories are the shared store adapters every device uses.
type Repositories struct {
	Tiers       repository.TierRepository
	Usage       repository.UsageRepository
	Completions repository.CompletionRepository
	Submissions repository.SubmissionRepository
	Tx          repository.Transactor
}

// NewDeviceGate wires the per-device services for one request.
func NewDeviceGate(repos Repositories, device Device, settings Settings) *Gate {
	tiers := NewTierService(repos.Tiers, repos.Completions, device, settings)
	quota := NewQuotaService(repos.Usage, tiers, device, settings)
	verifier := NewVerifier(repos.Completions, repos.Tx, tiers, quota, device, settings)
	submissions := NewSubmissionService(repos.Submissions, quota, device, settings)
	return NewGate(tiers, quota, verifier, submissions, settings)
}
