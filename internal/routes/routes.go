package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/DuyAnh662/Fileshare/internal/app"
	"github.com/DuyAnh662/Fileshare/internal/handler"
	"github.com/DuyAnh662/Fileshare/internal/middleware"
)

const (
	taskRateLimit   = 20
	submitRateLimit = 10
	rateWindow      = 10 * time.Minute
)

// SetupRoutes returns the HTTP handler and a stop func for its background
// workers.
func SetupRoutes(app *app.App) (http.Handler, func()) {
	// Handlers
	quota := handler.NewQuotaHandler(app.Gate)
	tier := handler.NewTierHandler(app.Gate)
	task := handler.NewTaskHandler(app.Gate)
	submission := handler.NewSubmissionHandler(app.Gate)

	checks := map[string]handler.Pinger{"database": app.DB}
	if app.Redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
	health := handler.NewHealthHandler(checks)

	taskLimiter := middleware.NewRateLimiter(taskRateLimit, rateWindow)
	submitLimiter := middleware.NewRateLimiter(submitRateLimit, rateWindow)
	limitTasks := middleware.RateLimit(taskLimiter)
	limitSubmits := middleware.RateLimit(submitLimiter)

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", health.Check)

	// Quota
	mux.HandleFunc("GET /api/quota", quota.Check)
	mux.HandleFunc("POST /api/quota/increment", quota.Increment)
	mux.HandleFunc("GET /api/tier", tier.Status)

	// Tasks (rate limited)
	mux.Handle("POST /api/tasks/{goal}", limitTasks(http.HandlerFunc(task.Start)))
	mux.Handle("GET /api/tasks/callback", limitTasks(http.HandlerFunc(task.Callback)))
	mux.Handle("POST /api/tasks/callback", limitTasks(http.HandlerFunc(task.Callback)))
	mux.Handle("GET /api/tasks/extra-callback", limitTasks(http.HandlerFunc(task.ExtraCallback)))
	mux.Handle("POST /api/tasks/extra-callback", limitTasks(http.HandlerFunc(task.ExtraCallback)))

	// Submissions (rate limited)
	mux.Handle("POST /api/submissions", limitSubmits(http.HandlerFunc(submission.Create)))

	// Apply global middleware
	h := middleware.Chain(mux,
		middleware.Config(app.Cfg),
		middleware.Device(app.DeviceTokens),
		middleware.RequestLogging,
		middleware.CSRFProtection,
	)

	stop := func() {
		taskLimiter.Stop()
		submitLimiter.Stop()
	}

	return h, stop
}
