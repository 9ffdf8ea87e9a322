package monitor

import (
	"context"
	"errors"

	"slotwatch/lib/session"
	"slotwatch/services/notify"
)

// Slot is one available unit reported by an endpoint. ID is an ISO date
// or datetime so that lexicographic order is chronological order.
type Slot struct {
	ID   string
	Meta map[string]string
}

type ResultKind int

const (
	Success ResultKind = iota
	AuthRequired
	TransientError
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case AuthRequired:
		return "auth_required"
	case TransientError:
		return "error"
	}
	return "unknown"
}

type PollResult struct {
	Kind  ResultKind
	Slots []Slot
	Err   error
}

func Succeeded(slots []Slot) PollResult {
	return PollResult{Kind: Success, Slots: slots}
}

func NeedsAuth(err error) PollResult {
	if err == nil {
		err = session.ErrAuthRequired
	}
	return PollResult{Kind: AuthRequired, Err: err}
}

func Failed(err error) PollResult {
	return PollResult{Kind: TransientError, Err: err}
}

// Classify maps the outcome of a fetch to a result, session.ErrAuthRequired
// anywhere in the chain marks the session as expired.
func Classify(slots []Slot, err error) PollResult {
	switch {
	case err == nil:
		return Succeeded(slots)
	case errors.Is(err, session.ErrAuthRequired):
		return NeedsAuth(err)
	default:
		return Failed(err)
	}
}

type Endpoint interface {
	Name() string
	FetchAvailability(ctx context.Context) PollResult
}

// DetailFetcher is implemented by endpoints that can describe a single
// slot further, its fields are appended to the earliest-match message.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, id string) ([]notify.Field, error)
}

// SignOuter is implemented by endpoints holding a remote session that
// should be ended on shutdown.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// NoAuth is used for endpoints that never report AuthRequired.
type NoAuth struct{}

func (NoAuth) Authenticate(context.Context) error { return nil }

type Status int

const (
	StatusUnknown Status = iota
	StatusAvailable
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
