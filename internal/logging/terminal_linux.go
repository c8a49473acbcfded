//go:build linux

package logging

import (
	"os"

	"golang.org/x/sys/unix"
)

// isTerminal reports whether f's file descriptor is attached to a terminal.
// The stdout mirror colorizes only when this is true; it is a cosmetic check
// and is never part of the write contract itself.
func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
