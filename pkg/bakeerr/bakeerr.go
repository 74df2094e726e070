// Package bakeerr defines the error kinds shared by the baking pipeline.
//
// Producers wrap one of the sentinels below, so callers classify a failure
// with errors.Is regardless of which stage raised it.
package bakeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrIO reports missing or unreadable inputs and failed writes.
	ErrIO = errors.New("i/o error")
	// ErrCompression reports corrupt or incompatible compressed input.
	ErrCompression = errors.New("compression error")
	// ErrFormat reports a baked file that fails validation on decode.
	ErrFormat = errors.New("format error")
	// ErrParse reports a geometry source the parser rejected.
	ErrParse = errors.New("parse error")
	// ErrContract reports a broken invariant caused by a programming error.
	ErrContract = errors.New("contract violation")
)

// IO wraps err as an ErrIO failure while keeping err in the chain.
func IO(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

// Contractf panics with an error wrapping ErrContract. Contract violations
// are not recoverable; the pipeline never catches them.
func Contractf(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrContract, fmt.Sprintf(format, args...)))
}
