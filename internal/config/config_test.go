package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTiers = `
tiers:
  - level: 0
    name: Free
    max_uploads: 10
  - level: 1
    name: Supporter
    max_uploads: 40
    duration_days: 30
    requirement: 3
  - level: 2
    name: Premium
    max_uploads: 500
    duration_days: 365
    requirement: 20
`

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers([]byte(validTiers))
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, "Supporter", tiers[1].Name)
	assert.Equal(t, 40, tiers.MaxUploads(model.Tier1))
	assert.Equal(t, 20, tiers[2].Requirement)
}

func TestParseTiersRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "wrong count",
			yaml: "tiers:\n  - {level: 0, name: Free, max_uploads: 10}\n",
			want: "expected 3 tiers",
		},
		{
			name: "out of order",
			yaml: `tiers:
  - {level: 0, name: Free, max_uploads: 10}
  - {level: 2, name: Premium, max_uploads: 50, duration_days: 30, requirement: 5}
  - {level: 1, name: Supporter, max_uploads: 40, duration_days: 30, requirement: 3}
`,
			want: "listed at position",
		},
		{
			name: "requirement not increasing",
			yaml: `tiers:
  - {level: 0, name: Free, max_uploads: 10}
  - {level: 1, name: Supporter, max_uploads: 40, duration_days: 30, requirement: 5}
  - {level: 2, name: Premium, max_uploads: 50, duration_days: 30, requirement: 5}
`,
			want: "requirement must exceed",
		},
		{
			name: "missing duration",
			yaml: `tiers:
  - {level: 0, name: Free, max_uploads: 10}
  - {level: 1, name: Supporter, max_uploads: 40, requirement: 5}
  - {level: 2, name: Premium, max_uploads: 50, duration_days: 30, requirement: 9}
`,
			want: "duration_days must be positive",
		},
		{
			name: "malformed",
			yaml: "tiers: [",
			want: "failed to parse tiers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTiers([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validTiers), 0o600))

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	assert.Equal(t, 10, tiers.MaxUploads(model.Tier0))

	_, err = LoadTiers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read tiers file")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "soon")
	t.Setenv("TEST_INT", "7")
	t.Setenv("TEST_LIST", " a, ,b ,")
	t.Setenv("TEST_BOOL", "true")

	assert.Equal(t, 90*time.Second, envDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, envDuration("TEST_BAD_DURATION", time.Second))
	assert.Equal(t, 7, envInt("TEST_INT", 1))
	assert.Equal(t, 3, envInt("TEST_UNSET_INT", 3))
	assert.Equal(t, []string{"a", "b"}, envList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, envList("TEST_UNSET_LIST", []string{"x"}))
	assert.True(t, envBool("TEST_BOOL", false))
}

func TestSanitizedDropsSecrets(t *testing.T) {
	cfg := &Config{
		AppName:       "FileShare",
		DBConnection:  "postgres://user:pass@db/fileshare",
		DeviceSecret:  "super-secret",
		RedisURL:      "redis://:pass@cache:6379/0",
		SentryDSN:     "https://key@sentry.example/1",
		SecureCookies: true,
	}

	s := cfg.Sanitized()
	assert.Equal(t, "FileShare", s.AppName)
	assert.True(t, s.SecureCookies)
	assert.Empty(t, s.DBConnection)
	assert.Empty(t, s.DeviceSecret)
	assert.Empty(t, s.RedisURL)
	assert.Empty(t, s.SentryDSN)
}
