package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: bad dates, reversed ranges,
// unsupported slot lengths and similar.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// InvalidRangeError covers inverted ranges and ranges longer than the
// configured maximum.
type InvalidRangeError struct {
	msg string
}

func (e *InvalidRangeError) Error() string {
	return e.msg
}

func InvalidRangef(format string, args ...any) error {
	return &InvalidRangeError{msg: fmt.Sprintf(format, args...)}
}

type PastDateError struct {
	Date LocalDate
	Time LocalTime
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("%s %s is in the past", e.Date, FormatClock(e.Time))
}

type OutsideOpeningHoursError struct {
	Date LocalDate
	Time LocalTime
}

func (e *OutsideOpeningHoursError) Error() string {
	return fmt.Sprintf("%s %s is outside opening hours", e.Date, FormatClock(e.Time))
}

// SlotUnavailableError is returned when the requested interval overlaps an
// active appointment. Its text is safe to show to customers.
type SlotUnavailableError struct{}

func (e *SlotUnavailableError) Error() string {
	return SlotUnavailableMessage
}

const SlotUnavailableMessage = "This time is no longer available. Please pick another slot."

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Err
}

// StorageUnavailable wraps err unless it already carries a domain error.
func StorageUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &StorageUnavailableError{Op: op, Err: err}
}

type ExportError struct {
	Reason string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return "calendar export failed: " + e.Reason
	}
	return fmt.Sprintf("calendar export failed: %s: %v", e.Reason, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// AuthorizationError is returned when a caller presents no valid credential
// (Forbidden false) or a valid credential without the required role.
type AuthorizationError struct {
	Action    string
	Forbidden bool
}

func (e *AuthorizationError) Error() string {
	if e.Forbidden {
		return "forbidden: " + e.Action
	}
	return "unauthorized: " + e.Action
}

func IsDomainError(err error) bool {
	var (
		vErr  *ValidationError
		rErr  *InvalidRangeError
		pErr  *PastDateError
		oErr  *OutsideOpeningHoursError
		sErr  *SlotUnavailableError
		nfErr *NotFoundError
		suErr *StorageUnavailableError
		exErr *ExportError
		aErr  *AuthorizationError
	)
	return errors.As(err, &vErr) ||
		errors.As(err, &rErr) ||
		errors.As(err, &pErr) ||
		errors.As(err, &oErr) ||
		errors.As(err, &sErr) ||
		errors.As(err, &nfErr) ||
		errors.As(err, &suErr) ||
		errors.As(err, &exErr) ||
		errors.As(err, &aErr)
}
