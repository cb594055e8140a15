// Package apperr defines the error taxonomy surfaced by the message
// pipeline and its sub-operations. Every failed call maps to exactly one
// Kind; collaborator failures that cannot be attributed to caller input
// wrap into KindInternalError.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one failure class. The set is closed.
type Kind string

const (
	KindEmptyMessage       Kind = "EmptyMessage"
	KindInvalidProperty    Kind = "InvalidProperty"
	KindInvalidFlagValue   Kind = "InvalidFlagValue"
	KindIsNotBot           Kind = "IsNotBot"
	KindMissingPermission  Kind = "MissingPermission"
	KindTooManyReplies     Kind = "TooManyReplies"
	KindTooManyAttachments Kind = "TooManyAttachments"
	KindTooManyEmbeds      Kind = "TooManyEmbeds"
	KindPayloadTooLarge    Kind = "PayloadTooLarge"
	KindFailedValidation   Kind = "FailedValidation"
	KindDuplicateRequest   Kind = "DuplicateRequest"
	KindNotFound           Kind = "NotFound"
	KindInvalidOperation   Kind = "InvalidOperation"
	KindInternalError      Kind = "InternalError"
)

// Error carries a Kind plus the payload fields the taxonomy attaches to
// some kinds. Max is meaningful for the TooMany* kinds, Permission for
// MissingPermission, Detail for FailedValidation.
type Error struct {
	Kind       Kind
	Permission string
	Max        int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Permission != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Permission)
	case e.Max > 0:
		return fmt.Sprintf("%s: max %d", e.Kind, e.Max)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is works against bare kind errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// MarshalJSON renders the wire form used by the HTTP surface:
// {"type":"TooManyReplies","max":5}.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Type       Kind   `json:"type"`
		Permission string `json:"permission,omitempty"`
		Max        int    `json:"max,omitempty"`
		Error      string `json:"error,omitempty"`
	}{Type: e.Kind, Permission: e.Permission, Max: e.Max, Error: e.Detail}
	return json.Marshal(out)
}

// New returns a bare error of the given kind.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Wrap attaches a cause to a kind. A nil cause yields a bare kind error.
func Wrap(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// Internal wraps a collaborator failure. If err is already a taxonomy
// error it is returned unchanged so kinds survive call chains.
func Internal(err error) error {
	var t *Error
	if errors.As(err, &t) {
		return err
	}
	return &Error{Kind: KindInternalError, Err: err}
}

// MissingPermission names the capability the caller lacked.
func MissingPermission(capability string) *Error {
	return &Error{Kind: KindMissingPermission, Permission: capability}
}

// TooManyReplies, TooManyAttachments and TooManyEmbeds carry the limit
// that was exceeded.
func TooManyReplies(max int) *Error {
	return &Error{Kind: KindTooManyReplies, Max: max}
}

func TooManyAttachments(max int) *Error {
	return &Error{Kind: KindTooManyAttachments, Max: max}
}

func TooManyEmbeds(max int) *Error {
	return &Error{Kind: KindTooManyEmbeds, Max: max}
}

// FailedValidation carries the field-level validation detail.
func FailedValidation(detail string) *Error {
	return &Error{Kind: KindFailedValidation, Detail: detail}
}

// KindOf extracts the Kind from an error chain, or KindInternalError when
// the chain carries no taxonomy error.
func KindOf(err error) Kind {
	var t *Error
	if errors.As(err, &t) {
		return t.Kind
	}
	return KindInternalError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the route layer responds
// with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindMissingPermission, KindIsNotBot:
		return http.StatusForbidden
	case KindDuplicateRequest:
		return http.StatusConflict
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
