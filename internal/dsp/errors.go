package dsp

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrNoHandler is returned by NoopHandler and signals "driver lacks a
// handler" the way the original logged it rather than treating it as a
// protocol error.
var ErrNoHandler = errors.New("dsp: driver has no handler for this operation")

// diagnoseBindError wraps a failed socket bind with the same rescue hints
// drivers/dstate.c's sock_fail prints for the three errno values new users
// most often hit, per spec.md's supplemented features (section 7 of
// SPEC_FULL.md): a missing or wrongly-owned state directory is the most
// common first-run stumbling block, and a one-line "bind failed" is not
// enough to self-diagnose it.
func diagnoseBindError(path string, err error) error {
	var hint string
	switch {
	case errors.Is(err, syscall.EACCES):
		hint = fmt.Sprintf("check ownership/permissions on the directory containing %s", path)
	case errors.Is(err, syscall.ENOENT):
		hint = fmt.Sprintf("create the state directory first: mkdir -p %s", dirOf(path))
	case errors.Is(err, syscall.ENOTDIR):
		hint = fmt.Sprintf("a path component of %s exists as a regular file; remove it and mkdir -p instead", path)
	default:
		return fmt.Errorf("dsp: bind %s: %w", path, err)
	}
	return fmt.Errorf("dsp: bind %s: %w (%s)", path, err, hint)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator {
			return path[:i]
		}
	}
	return "."
}
