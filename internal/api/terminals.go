package api

import (
	"github.com/forgeman/controlplane/internal/termclient"
	"github.com/forgeman/controlplane/pkg/models"
)

// CreateTerminal opens a new daemon-hosted PTY, dialing (and spawning,
// if absent) the Terminal Daemon on first use.
func (s *Surface) CreateTerminal(projectID string, cfg models.TerminalConfig) (*models.TerminalRecord, *Error) {
	c, err := s.termDial()
	if err != nil {
		return nil, newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	record, err := c.Create(projectID, cfg)
	if err != nil {
		return nil, newError(KindExternalFailure, "create terminal", err)
	}
	return record, nil
}

// WriteTerminal sends data to a terminal's PTY.
func (s *Surface) WriteTerminal(terminalID, data string) *Error {
	c, err := s.termDial()
	if err != nil {
		return newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	if err := c.Write(terminalID, data); err != nil {
		return newError(KindNotFound, "write terminal", err)
	}
	return nil
}

// ResizeTerminal changes a terminal's PTY window size.
func (s *Surface) ResizeTerminal(terminalID string, cols, rows int) *Error {
	c, err := s.termDial()
	if err != nil {
		return newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	if err := c.Resize(terminalID, cols, rows); err != nil {
		return newError(KindNotFound, "resize terminal", err)
	}
	return nil
}

// KillTerminal terminates a terminal's child process.
func (s *Surface) KillTerminal(terminalID string) *Error {
	c, err := s.termDial()
	if err != nil {
		return newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	if err := c.Kill(terminalID); err != nil {
		return newError(KindNotFound, "kill terminal", err)
	}
	return nil
}

// GetTerminalBuffer returns a terminal's replay buffer.
func (s *Surface) GetTerminalBuffer(terminalID string) (string, *Error) {
	c, err := s.termDial()
	if err != nil {
		return "", newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	data, err := c.GetBuffer(terminalID)
	if err != nil {
		return "", newError(KindNotFound, "get terminal buffer", err)
	}
	return data, nil
}

// SubscribeTerminal attaches to a terminal's output stream. The caller
// owns the returned Client and must Close it when done consuming events.
func (s *Surface) SubscribeTerminal(terminalID string) (*termclient.Client, <-chan termclient.Event, *Error) {
	c, err := s.termDial()
	if err != nil {
		return nil, nil, newError(KindExternalFailure, "dial terminal daemon", err)
	}

	events, err := c.Subscribe(terminalID)
	if err != nil {
		c.Close()
		return nil, nil, newError(KindNotFound, "subscribe terminal", err)
	}
	return c, events, nil
}

// UnsubscribeTerminal detaches from a terminal's output stream as an
// explicit call, rather than relying on the subscribing connection closing.
func (s *Surface) UnsubscribeTerminal(terminalID string) *Error {
	c, err := s.termDial()
	if err != nil {
		return newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	if err := c.Unsubscribe(terminalID); err != nil {
		return newError(KindNotFound, "unsubscribe terminal", err)
	}
	return nil
}

// ListTerminals returns every terminal the daemon hosts, optionally
// filtered to one project.
func (s *Surface) ListTerminals(projectID string) ([]*models.TerminalRecord, *Error) {
	c, err := s.termDial()
	if err != nil {
		return nil, newError(KindExternalFailure, "dial terminal daemon", err)
	}
	defer c.Close()

	records, err := c.List(projectID)
	if err != nil {
		return nil, newError(KindExternalFailure, "list terminals", err)
	}
	return records, nil
}
