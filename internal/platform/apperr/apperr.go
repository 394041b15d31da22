// Package apperr classifies failures into the categories callers act on:
// validation problems caught before any I/O, network failures reaching the
// storage backend, persistence errors returned by it, and everything else.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindNetwork     Kind = "network"
	KindPersistence Kind = "persistence"
	KindUnknown     Kind = "unknown"
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		if e.Op == "" {
			return e.Msg
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

func Conflictf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func Persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// FromDB wraps an error returned by the Postgres driver. Errors that are
// already classified pass through unchanged.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Op: op, Msg: "record not found", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23xxx integrity constraint violations
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return &Error{Kind: KindConflict, Op: op, Msg: pgErr.ConstraintName, Err: err}
		}
		return Persistence(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return Network(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network(op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Network(op, err)
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

// KindOf reports the Kind of err, KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }

// HTTPStatus maps an error kind to the status code a handler should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindPersistence:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// HTTPError converts err into an echo.HTTPError carrying the mapped status.
func HTTPError(err error) *echo.HTTPError {
	return echo.NewHTTPError(HTTPStatus(err), err.Error()).SetInternal(err)
}
