package queue

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so callers can react without string matching.
type Kind string

const (
	KindSessionInactive         Kind = "session_inactive"
	KindSessionNotFound         Kind = "session_not_found"
	KindInvalidInput            Kind = "invalid_input"
	KindUnauthorized            Kind = "unauthorized"
	KindInsufficientPoints      Kind = "insufficient_points"
	KindInsufficientKarmaOrPerk Kind = "insufficient_karma_or_perk"
	KindProtectedTrack          Kind = "protected_track"
	KindNotFound                Kind = "not_found"
	KindTransportFailure        Kind = "transport_failure"
	KindStoreFailure            Kind = "store_failure"
)

// Error is the typed error every mutator returns. Status is an HTTP-style
// hint; the HTTP layer maps it mechanically and adds nothing.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

func errSessionInactive() *Error {
	return newError(KindSessionInactive, 403, "queue is not active, owner must log in again")
}

func errSessionNotFound(passcode string) *Error {
	return newError(KindSessionNotFound, 404, "queue not found for passcode "+passcode)
}

func errInvalidInput(msg string) *Error {
	return newError(KindInvalidInput, 400, msg)
}

func errUnauthorized(msg string) *Error {
	return newError(KindUnauthorized, 403, msg)
}

func errInsufficientPoints(needed, have int) *Error {
	return newError(KindInsufficientPoints, 403,
		fmt.Sprintf("not enough points, need %d but have %d", needed, have))
}

func errInsufficientKarmaOrPerk(perk string) *Error {
	return newError(KindInsufficientKarmaOrPerk, 403,
		"perk "+perk+" is not available at your karma level")
}

func errProtectedTrack() *Error {
	return newError(KindProtectedTrack, 403, "track is protected")
}

func errNotFound(what string) *Error {
	return newError(KindNotFound, 404, what+" not found")
}

func errTransport(err error) *Error {
	return &Error{Kind: KindTransportFailure, Status: 500, Message: "playback service unavailable", Err: err}
}

func errStore(err error) *Error {
	return &Error{Kind: KindStoreFailure, Status: 500, Message: "storage failure", Err: err}
}

// AsError extracts a typed *Error, wrapping unknown errors as store failures
// so the HTTP layer always has a status hint.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return errStore(err)
}
