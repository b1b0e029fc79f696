// Package termclient dials the Terminal Daemon's Unix socket, spawning
// the daemon itself on first use if nothing is listening yet.
package termclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgeman/controlplane/internal/termdaemon"
	"github.com/forgeman/controlplane/pkg/models"
)

const pingTimeout = 2 * time.Second

// Event is an unsolicited message delivered to a Subscribe call:
// PTY output, an exit notice, or a title change.
type Event struct {
	Type     termdaemon.MessageType
	Data     string
	Title    string
	ExitCode int
}

// Client is a single connection to the Terminal Daemon.
type Client struct {
	socketPath string

	mu      sync.Mutex
	nc      net.Conn
	enc     *json.Encoder
	dec     *bufio.Scanner
	nextReq int64

	pending  map[string]chan termdaemon.Message
	subs     map[string][]chan Event
	closed   bool
}

// Dial connects to an already-running daemon at socketPath, spawning
// daemonBinary as a detached process and retrying once if nothing
// answers.
func Dial(socketPath, daemonBinary string) (*Client, error) {
	c, err := dial(socketPath)
	if err == nil {
		return c, nil
	}

	if spawnErr := spawn(daemonBinary, socketPath); spawnErr != nil {
		return nil, fmt.Errorf("spawn terminal daemon: %w", spawnErr)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c, err = dial(socketPath); err == nil {
			return c, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("terminal daemon did not come up at %s", socketPath)
}

func dial(socketPath string) (*Client, error) {
	nc, err := net.DialTimeout("unix", socketPath, pingTimeout)
	if err != nil {
		return nil, err
	}

	c := &Client{
		socketPath: socketPath,
		nc:         nc,
		enc:        json.NewEncoder(nc),
		dec:        bufio.NewScanner(nc),
		pending:    make(map[string]chan termdaemon.Message),
		subs:       make(map[string][]chan Event),
	}
	c.dec.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	go c.readLoop()

	if _, err := c.call(termdaemon.Request{Op: termdaemon.OpPing}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ping terminal daemon: %w", err)
	}
	return c, nil
}

func spawn(daemonBinary, socketPath string) error {
	if daemonBinary == "" {
		daemonBinary = "forgemand-term"
	}
	cmd := exec.Command(daemonBinary, "--socket", socketPath)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}

func (c *Client) nextReqID() string {
	return fmt.Sprintf("req-%d", atomic.AddInt64(&c.nextReq, 1))
}

func (c *Client) readLoop() {
	for c.dec.Scan() {
		var msg termdaemon.Message
		if err := json.Unmarshal(c.dec.Bytes(), &msg); err != nil {
			continue
		}

		if msg.ReqID != "" {
			c.mu.Lock()
			ch, ok := c.pending[msg.ReqID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}

		c.mu.Lock()
		chans := append([]chan Event(nil), c.subs[msg.TerminalID]...)
		c.mu.Unlock()

		ev := Event{Type: msg.Type, Data: msg.Data, Title: msg.Title, ExitCode: msg.ExitCode}
		for _, ch := range chans {
			ch <- ev
		}
	}

	c.mu.Lock()
	c.closed = true
	for _, ch := range c.pending {
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Client) call(req termdaemon.Request) (termdaemon.Message, error) {
	req.ReqID = c.nextReqID()
	ch := make(chan termdaemon.Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return termdaemon.Message{}, fmt.Errorf("terminal daemon connection closed")
	}
	c.pending[req.ReqID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ReqID)
		c.mu.Unlock()
	}()

	if err := c.enc.Encode(req); err != nil {
		return termdaemon.Message{}, fmt.Errorf("send request: %w", err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return termdaemon.Message{}, fmt.Errorf("terminal daemon connection closed")
		}
		if msg.Type == termdaemon.MessageError {
			return msg, fmt.Errorf("%s", msg.Error)
		}
		return msg, nil
	case <-time.After(30 * time.Second):
		return termdaemon.Message{}, fmt.Errorf("terminal daemon request timed out")
	}
}

// Create starts a new PTY session and returns its record.
func (c *Client) Create(projectID string, cfg models.TerminalConfig) (*models.TerminalRecord, error) {
	msg, err := c.call(termdaemon.Request{Op: termdaemon.OpCreate, ProjectID: projectID, Config: cfg})
	if err != nil {
		return nil, err
	}
	return msg.Terminal, nil
}

// Write sends data to a terminal's PTY.
func (c *Client) Write(terminalID, data string) error {
	_, err := c.call(termdaemon.Request{Op: termdaemon.OpWrite, TerminalID: terminalID, Data: data})
	return err
}

// Resize changes a terminal's PTY window size.
func (c *Client) Resize(terminalID string, cols, rows int) error {
	_, err := c.call(termdaemon.Request{Op: termdaemon.OpResize, TerminalID: terminalID, Cols: cols, Rows: rows})
	return err
}

// Kill terminates a terminal's child process and forgets the session.
func (c *Client) Kill(terminalID string) error {
	_, err := c.call(termdaemon.Request{Op: termdaemon.OpKill, TerminalID: terminalID})
	return err
}

// GetBuffer returns a terminal's replay buffer.
func (c *Client) GetBuffer(terminalID string) (string, error) {
	msg, err := c.call(termdaemon.Request{Op: termdaemon.OpGetBuffer, TerminalID: terminalID})
	if err != nil {
		return "", err
	}
	return msg.Data, nil
}

// Subscribe attaches to a terminal's output stream, returning a channel
// of events delivered until the terminal exits or the connection closes.
func (c *Client) Subscribe(terminalID string) (<-chan Event, error) {
	ch := make(chan Event, 64)

	c.mu.Lock()
	c.subs[terminalID] = append(c.subs[terminalID], ch)
	c.mu.Unlock()

	if _, err := c.call(termdaemon.Request{Op: termdaemon.OpSubscribe, TerminalID: terminalID}); err != nil {
		return nil, err
	}
	return ch, nil
}

// Unsubscribe detaches this client from a terminal's output stream as an
// explicit call, rather than relying on connection close.
func (c *Client) Unsubscribe(terminalID string) error {
	_, err := c.call(termdaemon.Request{Op: termdaemon.OpUnsubscribe, TerminalID: terminalID})

	c.mu.Lock()
	delete(c.subs, terminalID)
	c.mu.Unlock()

	return err
}

// List returns every terminal the daemon hosts, optionally filtered to
// one project.
func (c *Client) List(projectID string) ([]*models.TerminalRecord, error) {
	msg, err := c.call(termdaemon.Request{Op: termdaemon.OpList, ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return msg.Terminals, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.nc.Close()
}
