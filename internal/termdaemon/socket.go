package termdaemon

import (
	"os"
	"path/filepath"
)

// DefaultSocketPath returns the Terminal Daemon's conventional Unix
// socket location under the user's XDG runtime (or state) directory.
func DefaultSocketPath() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "forgeman", "term.sock")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "state", "forgeman", "term.sock")
	}
	return filepath.Join(home, ".local", "state", "forgeman", "term.sock")
}
