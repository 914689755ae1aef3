package service

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Reason is the machine-readable cause of a negative result.
type Reason string

const (
	ReasonQuotaExceeded   Reason = "quota_exceeded"
	ReasonCooldown        Reason = "cooldown"
	ReasonMismatch        Reason = "mismatch"
	ReasonTooFast         Reason = "too_fast"
	ReasonReplay          Reason = "replay"
	ReasonValidation      Reason = "validation"
	ReasonUnavailable     Reason = "unavailable"
	ReasonInvalidCallback Reason = "invalid_callback"
	ReasonNoToken         Reason = "no_token"
	ReasonExtraCapReached Reason = "extra_cap_reached"
	ReasonRateLimited     Reason = "rate_limited"
)

var reasonMessages = map[Reason]string{
	ReasonQuotaExceeded:   "Upload limit reached for this month.",
	ReasonMismatch:        "Token mismatch",
	ReasonTooFast:         "Too fast - suspected bypass",
	ReasonReplay:          "Token already used",
	ReasonInvalidCallback: "This task link does not match the task you started",
	ReasonNoToken:         "No task session found, please start the task again",
	ReasonExtraCapReached: "Extra upload limit reached for this month",
	ReasonUnavailable:     "Service temporarily unavailable, please try again",
	ReasonRateLimited:     "Too many requests. Please try again later.",
}

// Result is what the UI boundary returns: either OK with Data, or a Reason
// with a human-readable Message.
type Result[T any] struct {
	OK      bool   `json:"ok"`
	Data    T      `json:"data"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	// RetryAfter is set in seconds for cooldown failures.
	RetryAfter int `json:"retryAfter,omitempty"`
}

func Success[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

func Failure[T any](reason Reason, message string) Result[T] {
	if message == "" {
		message = reasonMessages[reason]
	}
	return Result[T]{Reason: reason, Message: message}
}

// RejectionError is an expected negative outcome, not a fault.
type RejectionError struct {
	Reason  Reason
	Message string
}

func reject(reason Reason) *RejectionError {
	return &RejectionError{Reason: reason, Message: reasonMessages[reason]}
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Reason)
}

// CooldownError reports how long the device must wait before submitting again.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("Please wait %ds before uploading again.", e.Seconds())
}

// Seconds rounds the wait up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

// ValidationError wraps malformed user input. It is surfaced verbatim.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FailureFrom maps an error from a write path onto a tagged failure.
// Anything that is not an expected rejection is reported as unavailable.
func FailureFrom[T any](err error) Result[T] {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return Failure[T](rejection.Reason, rejection.Message)
	}

	var cooldown *CooldownError
	if errors.As(err, &cooldown) {
		res := Failure[T](ReasonCooldown, cooldown.Error())
		res.RetryAfter = cooldown.Seconds()
		return res
	}

	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return Failure[T](ReasonValidation, invalid.Error())
	}

	slog.Error("operation failed", "error", err)
	return Failure[T](ReasonUnavailable, "")
}
