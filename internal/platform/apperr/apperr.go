// Package apperr defines the error kinds surfaced to API callers. Services
// return *Error values so handlers and the HTTP error handler can tell the
// kinds apart without inspecting message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates the error taxonomy.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindParticipantNotFound Kind = "participant_not_found"
	KindSlotAlreadyBooked   Kind = "slot_already_booked"
	KindConflict            Kind = "conflict"
	KindValidation          Kind = "validation"
	KindInternal            Kind = "internal"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind              `json:"code"`
	Message string            `json:"error"`
	Field   string            `json:"field,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func ParticipantNotFound(id string) *Error {
	return &Error{
		Kind:    KindParticipantNotFound,
		Message: "participant not found",
		Details: map[string]string{"participant_id": id},
	}
}

// SlotAlreadyBooked carries the requested date and time so callers can
// re-fetch availability for that day.
func SlotAlreadyBooked(date, timeOfDay string) *Error {
	return &Error{
		Kind:    KindSlotAlreadyBooked,
		Message: "the selected time slot is already booked",
		Details: map[string]string{"date": date, "time": timeOfDay},
	}
}

// Validation reports a malformed or missing input field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Field: field}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
