// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries a specific process exit code. main prints the
// message unless it wraps errSilent.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode returns the process exit code.
func (e *exitError) ExitCode() int { return e.code }

// errSilent marks an exit whose explanation was already written.
var errSilent = errors.New("")

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

// notFound reports a query with no result: exit status 1 and no
// extra error line.
func notFound() error {
	return &exitError{code: exitFailure, err: errSilent}
}
