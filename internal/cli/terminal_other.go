//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package cli

import "os"

// IsTerminal reports false on platforms without termios; color must be
// requested explicitly there.
func IsTerminal(f *os.File) bool {
	return false
}
