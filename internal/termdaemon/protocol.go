// Package termdaemon implements the Terminal Daemon: a detached process
// hosting PTY sessions behind a Unix domain socket, so terminal
// sessions outlive the orchestrator and its frontend.
package termdaemon

import "github.com/forgeman/controlplane/pkg/models"

// Op names one client request.
type Op string

const (
	OpCreate      Op = "create"
	OpWrite       Op = "write"
	OpResize      Op = "resize"
	OpKill        Op = "kill"
	OpGetBuffer   Op = "get-buffer"
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpList        Op = "list"
	OpPing        Op = "ping"
)

// Request is one newline-delimited JSON request sent by a client.
type Request struct {
	// ReqID correlates a request with its Response; set by the client.
	ReqID string `json:"req_id"`
	Op    Op     `json:"op"`

	TerminalID string                `json:"terminal_id,omitempty"`
	ProjectID  string                `json:"project_id,omitempty"`
	Config     models.TerminalConfig `json:"config,omitempty"`
	Data       string                `json:"data,omitempty"`
	Cols       int                   `json:"cols,omitempty"`
	Rows       int                   `json:"rows,omitempty"`
}

// MessageType classifies a server-to-client message.
type MessageType string

const (
	MessageOK           MessageType = "ok"
	MessageError        MessageType = "error"
	MessageData         MessageType = "data"
	MessageExit         MessageType = "exit"
	MessageTitleChange  MessageType = "title_change"
	MessageBuffer       MessageType = "buffer"
	MessageTerminalInfo MessageType = "terminal"
	MessageTerminalList MessageType = "terminal_list"
)

// Message is one newline-delimited JSON message sent by the daemon,
// either a direct reply to a Request (ReqID set) or an unsolicited
// event for a subscribed terminal (TerminalID set).
type Message struct {
	ReqID string      `json:"req_id,omitempty"`
	Type  MessageType `json:"type"`

	TerminalID string                  `json:"terminal_id,omitempty"`
	Terminal   *models.TerminalRecord  `json:"terminal,omitempty"`
	Terminals  []*models.TerminalRecord `json:"terminals,omitempty"`
	Data       string                  `json:"data,omitempty"`
	Title      string                  `json:"title,omitempty"`
	ExitCode   int                     `json:"exit_code,omitempty"`
	Error      string                  `json:"error,omitempty"`
}
