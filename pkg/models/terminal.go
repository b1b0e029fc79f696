package models

import "time"

// TerminalConfig configures a PTY session hosted by the Terminal Daemon.
type TerminalConfig struct {
	// Shell is the command to run inside the PTY, defaulting to the
	// user's login shell when empty.
	Shell string `json:"shell,omitempty"`
	// WorkDir is the directory the PTY starts in.
	WorkDir string `json:"work_dir"`
	// Cols and Rows size the PTY window.
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// TerminalRecord is the daemon's record of one hosted PTY session.
type TerminalRecord struct {
	// ID is the terminal's unique identifier.
	ID string `json:"id"`
	// ProjectID associates the terminal with a project, empty for
	// terminals opened outside any project context.
	ProjectID string `json:"project_id,omitempty"`
	// Config is the configuration the PTY was started with.
	Config TerminalConfig `json:"config"`
	// PID is the PTY's child process id.
	PID int `json:"pid"`
	// CreatedAt is when the terminal was opened.
	CreatedAt time.Time `json:"created_at"`
	// ClosedAt is when the terminal exited, zero while open.
	ClosedAt time.Time `json:"closed_at,omitempty"`
	// SubscriberCount is the number of clients currently attached.
	SubscriberCount int `json:"subscriber_count"`
}

// Open reports whether the terminal's PTY is still running.
func (t *TerminalRecord) Open() bool {
	return t.ClosedAt.IsZero()
}
