// Package identity derives the (fingerprint, IP) pair that quota and tier
// state are keyed by.
package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DuyAnh662/Fileshare/internal/localstore"
	"github.com/DuyAnh662/Fileshare/internal/model"
)

const (
	fingerprintKey   = "client_fingerprint"
	ipFallbackPrefix = "fp_"
)

// Provider is scoped to one page load: the IP it resolves is kept for its
// lifetime, the fingerprint for the browser session.
type Provider struct {
	attrs     model.DeviceAttributes
	session   localstore.Store
	resolvers []Resolver

	mu sync.Mutex
	ip string
}

func NewProvider(attrs model.DeviceAttributes, session localstore.Store, resolvers ...Resolver) *Provider {
	return &Provider{
		attrs:     attrs,
		session:   session,
		resolvers: resolvers,
	}
}

// Fingerprint returns the session-cached fingerprint, computing and storing it
// on first use. Store failures only cost the cache.
func (p *Provider) Fingerprint(ctx context.Context) string {
	cached, ok, err := p.session.Get(ctx, fingerprintKey)
	if err == nil && ok && len(cached) > 0 {
		return string(cached)
	}

	fp := Compute(p.attrs)
	err = p.session.Set(ctx, fingerprintKey, []byte(fp))
	if err != nil {
		slog.Warn("failed to cache fingerprint", "error", err)
	}

	return fp
}

// IPAddress tries each resolver in order and returns the first address found.
// When all fail it returns "fp_" + fingerprint, which is not cached so a later
// call may still resolve a real address.
func (p *Provider) IPAddress(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ip != "" {
		return p.ip
	}

	for _, r := range p.resolvers {
		ip, err := r.ResolveIP(ctx)
		if err != nil {
			slog.Debug("ip resolver failed", "error", err)
			continue
		}
		if ip != "" {
			p.ip = ip
			return ip
		}
	}

	return ipFallbackPrefix + p.Fingerprint(ctx)
}

// Identity resolves both halves of the key at once.
func (p *Provider) Identity(ctx context.Context) model.Identity {
	return model.Identity{
		Fingerprint: p.Fingerprint(ctx),
		IPAddress:   p.IPAddress(ctx),
		UserAgent:   p.attrs.UserAgent,
	}
}
