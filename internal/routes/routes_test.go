package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/app"
	"github.com/DuyAnh662/Fileshare/internal/config"
	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(redisURL string) *config.Config {
	return &config.Config{
		AppName:           "FileShare",
		AppEnv:            "development",
		DBDriver:          "sqlite",
		DBConnection:      ":memory:",
		RedisURL:          redisURL,
		DeviceSecret:      "routes-test-secret",
		DeviceStateTTL:    24 * time.Hour,
		SessionTTL:        time.Hour,
		CacheTTL:          time.Hour,
		CacheStaleAfter:   5 * time.Minute,
		Tiers:             model.DefaultTiers(),
		UploadCooldown:    time.Minute,
		ExtraUploads:      5,
		MinCompletionTime: 30 * time.Second,
		TaskURLs:          map[string]string{model.GoalTier1: "https://tasks.example/s?abc"},
	}
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
	csrf string
}

func newServer(t *testing.T, cfg *config.Config) *client {
	t.Helper()

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)

	h, stop := SetupRoutes(a)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		stop()
		require.NoError(t, a.Close())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path, body string) (*http.Response, map[string]any) {
	c.t.Helper()

	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("X-Device-Screen", "1920x1080")
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if token := resp.Header.Get("X-CSRF-Token"); token != "" {
		c.csrf = token
	}

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAPI(t *testing.T) {
	backends := map[string]func(t *testing.T) string{
		"memory": func(t *testing.T) string {
			return ""
		},
		"redis": func(t *testing.T) string {
			return "redis://" + miniredis.RunT(t).Addr()
		},
	}

	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			c := newServer(t, testConfig(backend(t)))

			resp, body := c.do(http.MethodGet, "/healthz", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "ok", body["database"])

			resp, body = c.do(http.MethodGet, "/api/quota", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, true, body["ok"])
			assert.Equal(t, float64(30), body["data"].(map[string]any)["remaining"])
			require.NotEmpty(t, c.csrf)

			resp, body = c.do(http.MethodGet, "/api/tier", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "Free", body["data"].(map[string]any)["name"])

			resp, body = c.do(http.MethodPost, "/api/tasks/tier1", "")
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.Contains(t, body["data"].(map[string]any)["taskUrl"], "token=")

			resp, body = c.do(http.MethodGet, "/api/tasks/callback", "")
			assert.Equal(t, http.StatusConflict, resp.StatusCode)
			assert.Equal(t, "too_fast", body["reason"])

			resp, _ = c.do(http.MethodPost, "/api/submissions",
				`{"title":"Notes","drive_link":"https://drive.google.com/file/d/abc123/view"}`)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			resp, body = c.do(http.MethodGet, "/api/quota", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, float64(1), body["data"].(map[string]any)["used"])

			resp, body = c.do(http.MethodPost, "/api/submissions",
				`{"title":"More notes","drive_link":"https://drive.google.com/file/d/def456/view"}`)
			assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
			assert.Equal(t, "cooldown", body["reason"])
		})
	}
}

func TestAPIRequiresCSRF(t *testing.T) {
	c := newServer(t, testConfig(""))

	resp, _ := c.do(http.MethodPost, "/api/quota/increment", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c.do(http.MethodGet, "/api/quota", "")
	resp, body := c.do(http.MethodPost, "/api/quota/increment", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["used"])
}
