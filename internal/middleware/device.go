package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DuyAnh662/Fileshare/internal/ctxkeys"
	"github.com/DuyAnh662/Fileshare/internal/service"
)

// Device resolves the device and browser-session ids from their signed cookies,
// minting fresh ones when a cookie is missing, expired or tampered with.
func Device(tokens *service.DeviceTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := ""
			if cookie, err := r.Cookie(service.DeviceCookieName); err == nil {
				deviceID, _ = tokens.VerifyDevice(cookie.Value)
			}
			if deviceID == "" {
				id, err := tokens.IssueDevice(w)
				if err != nil {
					slog.Error("failed to issue device cookie", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				deviceID = id
			}

			sessionID := ""
			if cookie, err := r.Cookie(service.SessionCookieName); err == nil {
				sessionID, _ = tokens.VerifySession(cookie.Value)
			}
			if sessionID == "" {
				id, err := tokens.IssueSession(w)
				if err != nil {
					slog.Error("failed to issue session cookie", "error", err, "device_id", deviceID)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				sessionID = id
			}

			ctx := ctxkeys.WithDeviceID(r.Context(), deviceID)
			ctx = ctxkeys.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
