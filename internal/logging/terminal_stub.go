//go:build !linux

package logging

import "os"

// isTerminal always reports false on non-Linux builds; the shared-memory and
// signal machinery this module depends on is Linux-only anyway (see the
// internal/shm and internal/threadmgr build constraints), so this stub only
// keeps `go vet`/editors happy on other platforms.
func isTerminal(f *os.File) bool { return false }
