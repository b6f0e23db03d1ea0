package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies every failure the match engine reports.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindInvalidState    ErrorKind = "invalid_state"
	KindInvalidInput    ErrorKind = "invalid_input"
	KindConflict        ErrorKind = "conflict"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindStorage         ErrorKind = "storage_error"
)

// Sentinels for conditions callers commonly branch on.
var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotJoinable     = errors.New("match is not open for joining")
	ErrSelfJoin        = errors.New("cannot join your own match")
	ErrNotParticipant  = errors.New("not a participant of this match")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrDuplicateShot   = errors.New("cell already fired at")
	ErrDuplicateShip   = errors.New("ship type already placed")
	ErrFleetIncomplete = errors.New("fleet must have exactly 5 ships")
	ErrAlreadyReady    = errors.New("player already ready")
)

// MatchError is the typed error returned by MatchService operations.
type MatchError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *MatchError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *MatchError {
	return &MatchError{Kind: kind, Op: op, Err: err}
}

func errorf(kind ErrorKind, op, format string, args ...any) *MatchError {
	return &MatchError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// storageError wraps a persistence failure; a MatchError passing through
// a transaction callback keeps its own kind.
func storageError(op string, err error) error {
	var me *MatchError
	if errors.As(err, &me) {
		return me
	}
	return &MatchError{Kind: KindStorage, Op: op, Err: err}
}

// KindOf extracts the kind of err, defaulting to storage for unknown errors.
func KindOf(err error) ErrorKind {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindStorage
}

// IsKind reports whether err is a MatchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *MatchError
	return errors.As(err, &me) && me.Kind == kind
}

func statusFor(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return fiber.StatusNotFound
	case KindUnauthorized:
		return fiber.StatusForbidden
	case KindInvalidState, KindConflict:
		return fiber.StatusConflict
	case KindInvalidInput:
		return fiber.StatusBadRequest
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	}
	return fiber.StatusServiceUnavailable
}

// respondError renders err as the JSON error body used by every route.
func respondError(c *fiber.Ctx, err error) error {
	kind := KindOf(err)
	if kind == KindStorage {
		log.Printf("❌ [MATCH] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(statusFor(kind)).JSON(fiber.Map{
			"error": "storage unavailable, retry later",
			"kind":  kind,
		})
	}
	return c.Status(statusFor(kind)).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  kind,
	})
}
