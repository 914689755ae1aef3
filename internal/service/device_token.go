package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DeviceCookieName  = "device"
	SessionCookieName = "device_session"

	claimDeviceID  = "device_id"
	claimSessionID = "session_id"
)

var ErrInvalidDeviceToken = errors.New("invalid device token")

// DeviceTokens signs the cookies that tie a browser to its device-local state.
// The device cookie lives for DeviceTTL; the session cookie ends with the
// browser session and is additionally bounded by SessionTTL.
type DeviceTokens struct {
	secret     string
	deviceTTL  time.Duration
	sessionTTL time.Duration
	secure     bool
}

func NewDeviceTokens(secret string, deviceTTL, sessionTTL time.Duration, secure bool) *DeviceTokens {
	return &DeviceTokens{
		secret:     secret,
		deviceTTL:  deviceTTL,
		sessionTTL: sessionTTL,
		secure:     secure,
	}
}

func (t *DeviceTokens) sign(claim, id string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		claim: id,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(t.secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (t *DeviceTokens) verify(claim, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidDeviceToken
	}

	id, ok := claims[claim].(string)
	if !ok || uuid.Validate(id) != nil {
		return "", ErrInvalidDeviceToken
	}

	return id, nil
}

func (t *DeviceTokens) VerifyDevice(tokenString string) (string, error) {
	return t.verify(claimDeviceID, tokenString)
}

func (t *DeviceTokens) VerifySession(tokenString string) (string, error) {
	return t.verify(claimSessionID, tokenString)
}

// IssueDevice mints a new device id and sets its cookie.
func (t *DeviceTokens) IssueDevice(w http.ResponseWriter) (string, error) {
	id := uuid.New().String()
	token, err := t.sign(claimDeviceID, id, t.deviceTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign device token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookieName,
		Value:    token,
		Expires:  time.Now().Add(t.deviceTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return id, nil
}

// IssueSession mints a new session id. The cookie has no expiry so the
// browser drops it when the session ends.
func (t *DeviceTokens) IssueSession(w http.ResponseWriter) (string, error) {
	id := uuid.New().String()
	token, err := t.sign(claimSessionID, id, t.sessionTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return id, nil
}
