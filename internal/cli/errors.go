package cli

import (
	"errors"

	"github.com/mesh-intelligence/propbag/internal/store"
	"github.com/mesh-intelligence/propbag/pkg/propbag"
	"github.com/mesh-intelligence/propbag/pkg/propbag/archive"
)

// exitError pins the exit code of err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// silentError exits with code without printing anything, like a quiet
// lookup miss.
type silentError struct {
	code int
}

func (e *silentError) Error() string {
	return "silent exit"
}

func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

// userErrors are caused by arguments or input files rather than by the
// environment.
var userErrors = []error{
	propbag.ErrTypeMismatch,
	propbag.ErrKeyNotFound,
	propbag.ErrInvalidArguments,
	archive.ErrUnregisteredType,
	archive.ErrMalformedArchive,
	store.ErrBagNotFound,
	store.ErrInvalidName,
	store.ErrBackendEmpty,
	store.ErrBackendUnknown,
	store.ErrDSNRequired,
	store.ErrBucketRequired,
}

// classify marks err as a system error unless it matches one of userErrors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return sysError(err)
}

// exitCode maps err to a process exit code. Errors not marked otherwise,
// including cobra's usage errors, are user errors.
func exitCode(err error) int {
	var silent *silentError
	if errors.As(err, &silent) {
		return silent.code
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return exitUserError
}
