package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/localstore"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	ip    string
	err   error
	calls atomic.Int32
}

func (s *stubResolver) ResolveIP(context.Context) (string, error) {
	s.calls.Add(1)
	return s.ip, s.err
}

var testAttrs = model.DeviceAttributes{UserAgent: "ua", Locale: "en-US", ScreenWidth: 1, ScreenHeight: 2}

func TestProviderFingerprintCachedInSession(t *testing.T) {
	ctx := context.Background()
	session := localstore.NewMemory()

	p := NewProvider(testAttrs, session)
	fp := p.Fingerprint(ctx)
	assert.Equal(t, Compute(testAttrs), fp)

	stored, ok, err := session.Get(ctx, fingerprintKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fp, string(stored))

	// A later page load in the same session reuses the stored value even if
	// the attributes changed (e.g. window resized).
	changed := testAttrs
	changed.ScreenWidth = 999
	p2 := NewProvider(changed, session)
	assert.Equal(t, fp, p2.Fingerprint(ctx))
}

func TestProviderIPFirstSuccessWins(t *testing.T) {
	ctx := context.Background()
	failing := &stubResolver{err: errors.New("boom")}
	empty := &stubResolver{}
	good := &stubResolver{ip: "203.0.113.9"}
	unused := &stubResolver{ip: "198.51.100.1"}

	p := NewProvider(testAttrs, localstore.NewMemory(), failing, empty, good, unused)

	assert.Equal(t, "203.0.113.9", p.IPAddress(ctx))
	assert.Equal(t, "203.0.113.9", p.IPAddress(ctx))
	assert.Equal(t, int32(1), good.calls.Load())
	assert.Equal(t, int32(0), unused.calls.Load())
}

func TestProviderIPFallback(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(testAttrs, localstore.NewMemory(), &stubResolver{err: errors.New("offline")})

	id := p.Identity(ctx)
	assert.Equal(t, "fp_"+id.Fingerprint, id.IPAddress)
	assert.Equal(t, "ua", id.UserAgent)
}

func TestHTTPResolver(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    string
		wantErr bool
	}{
		{name: "ip field", body: `{"ip":"203.0.113.5"}`, status: 200, want: "203.0.113.5"},
		{name: "origin field", body: `{"origin":"203.0.113.6"}`, status: 200, want: "203.0.113.6"},
		{name: "no address", body: `{"city":"Hanoi"}`, status: 200, wantErr: true},
		{name: "bad json", body: `nope`, status: 200, wantErr: true},
		{name: "server error", body: `{"ip":"1.1.1.1"}`, status: 500, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := &HTTPResolver{URL: srv.URL, Client: srv.Client(), Timeout: time.Second}
			ip, err := r.ResolveIP(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestHTTPResolverTimeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer srv.Close()
	defer close(done)

	r := &HTTPResolver{URL: srv.URL, Client: srv.Client(), Timeout: 50 * time.Millisecond}
	_, err := r.ResolveIP(context.Background())
	assert.Error(t, err)
}

func TestRequestResolver(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 203.0.113.2 "}, remote: "10.0.0.2:1234", want: "203.0.113.2"},
		{name: "remote addr", remote: "203.0.113.3:5555", want: "203.0.113.3"},
		{name: "ipv6 remote addr", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			ip, err := RequestResolver{Request: req}.ResolveIP(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestAttributesFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9,en;q=0.8")
	req.Header.Set(HeaderScreen, "1920x1080")
	req.Header.Set(HeaderColorDepth, "24")
	req.Header.Set(HeaderTimezoneOffset, "-420")
	req.Header.Set(HeaderCores, "8")
	req.Header.Set(HeaderPlatform, `"Windows"`)

	attrs := AttributesFromRequest(req)
	assert.Equal(t, model.DeviceAttributes{
		UserAgent:      "Mozilla/5.0",
		Locale:         "vi-VN",
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		ColorDepth:     24,
		TimezoneOffset: -420,
		Cores:          8,
		Platform:       "Windows",
	}, attrs)

	bare := AttributesFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "", bare.Locale)
	assert.Equal(t, 0, bare.Cores)
	assert.Equal(t, "unknown", Components(bare)[5])
}
