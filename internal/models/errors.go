package models

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is on any error returned by the storage layer.
var (
	ErrIo          = errors.New("io error")
	ErrParse       = errors.New("parse error")
	ErrSerialize   = errors.New("serialization error")
	ErrHourRange   = errors.New("hour out of range")
	ErrReadOnly    = errors.New("read only violation")
	ErrPath        = errors.New("invalid path")
	ErrBeforeEpoch = errors.New("timestamp before reference epoch")
	ErrReference   = errors.New("reference instant must be UTC midnight")
)

// StorageError carries the failing operation and path next to its kind and cause.
type StorageError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %q: %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s %q", e.Kind, e.Op, e.Path)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the error kind, so errors.Is(err, ErrIo) holds for an io StorageError.
func (e *StorageError) Is(target error) bool {
	return e.Kind == target
}

// HourError reports an hour outside 0..23.
type HourError struct {
	Hour int
}

func (e *HourError) Error() string {
	return fmt.Sprintf("%s: %d not in 0..%d", ErrHourRange, e.Hour, HoursPerDay-1)
}

func (e *HourError) Is(target error) bool {
	return target == ErrHourRange
}

func checkHour(hour int) error {
	if hour < 0 || hour >= HoursPerDay {
		return &HourError{Hour: hour}
	}
	return nil
}
