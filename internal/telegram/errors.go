package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrAuthExpired reports that the session is no longer valid and a
// fresh login is required. Never retried.
var ErrAuthExpired = errors.New("authentication expired")

// ErrTargetUnavailable reports that the addressed channel is missing or
// inaccessible. Never retried.
var ErrTargetUnavailable = errors.New("channel not found or inaccessible")

// FloodWaitError is the platform's throttle signal: wait Seconds before
// retrying the identical call.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %ds", e.Seconds)
}

// TransientError wraps a network-level failure that is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MapRPCError converts a wire-level error code into the typed taxonomy.
// Unknown codes are treated as transient.
func MapRPCError(code string) error {
	switch {
	case strings.HasPrefix(code, "FLOOD_WAIT_"):
		secs, err := strconv.Atoi(strings.TrimPrefix(code, "FLOOD_WAIT_"))
		if err != nil || secs < 0 {
			secs = 1
		}
		return &FloodWaitError{Seconds: secs}
	case code == "AUTH_KEY_UNREGISTERED", code == "SESSION_REVOKED", code == "SESSION_EXPIRED":
		return fmt.Errorf("%s: %w", code, ErrAuthExpired)
	case code == "CHANNEL_INVALID", code == "CHANNEL_PRIVATE", code == "PEER_ID_INVALID", code == "USERNAME_NOT_OCCUPIED":
		return fmt.Errorf("%s: %w", code, ErrTargetUnavailable)
	default:
		return &TransientError{Err: errors.New(code)}
	}
}
