package collab

import (
	"errors"
	"fmt"
	"math"
	"time"

	sharedgroupstore "github.com/dalemusser/taskgroups/internal/app/store/sharedgroups"
)

// Kind classifies an engine error for callers.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    Kind
	Message string
	// DaysLeft is set on cooldown conflicts.
	DaysLeft int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind and no message, so
// errors.Is(err, collab.ErrForbidden) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrValidation = &Error{Kind: KindValidation}
	ErrInternal   = &Error{Kind: KindInternal}
)

// KindOf classifies err. Errors that did not originate in the engine are
// Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DaysLeftOf returns the cooldown days carried by err, or 0.
func DaysLeftOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.DaysLeft
	}
	return 0
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error { return newError(KindNotFound, format, args...) }
func forbidden(format string, args ...any) *Error { return newError(KindForbidden, format, args...) }
func conflict(format string, args ...any) *Error  { return newError(KindConflict, format, args...) }
func invalid(format string, args ...any) *Error   { return newError(KindValidation, format, args...) }

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// cooldownConflict reports a role-upgrade request made too soon.
func cooldownConflict(remaining time.Duration) *Error {
	days := daysLeft(remaining)
	return &Error{
		Kind:     KindConflict,
		Message:  fmt.Sprintf("a role upgrade request is already pending; try again in %d day(s)", days),
		DaysLeft: days,
	}
}

// daysLeft rounds remaining up to whole days, never below 1.
func daysLeft(remaining time.Duration) int {
	d := int(math.Ceil(remaining.Hours() / 24))
	if d < 1 {
		d = 1
	}
	return d
}

// fromStore maps store sentinels into the taxonomy.
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sharedgroupstore.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "group not found", Err: err}
	case errors.Is(err, sharedgroupstore.ErrDuplicateName):
		return &Error{Kind: KindConflict, Message: "a group with this name already exists", Err: err}
	case errors.Is(err, sharedgroupstore.ErrVersionConflict):
		return &Error{Kind: KindConflict, Message: "the group was changed by someone else; reload and retry", Err: err}
	default:
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return internal("group store failure", err)
	}
}
