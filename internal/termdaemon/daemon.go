package termdaemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/forgeman/controlplane/pkg/models"
)

// session is one hosted PTY, alive or dead. A dead session (child
// exited) is retained, buffer included, until an explicit kill.
type session struct {
	mu     sync.Mutex
	record *models.TerminalRecord
	ptmx   *os.File
	cmd    *exec.Cmd
	buf    *ringBuffer
	subs   map[*conn]bool
}

// conn wraps one client connection with a write mutex, since the
// daemon pushes unsolicited events on the same socket a client issues
// requests on.
type conn struct {
	nc net.Conn
	mu sync.Mutex
	enc *json.Encoder
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(msg)
}

// Daemon hosts PTY sessions behind a Unix domain socket.
type Daemon struct {
	SocketPath string

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a Daemon bound to socketPath.
func New(socketPath string) *Daemon {
	return &Daemon{SocketPath: socketPath, sessions: make(map[string]*session)}
}

// Serve listens on d.SocketPath until the listener is closed (typically
// by a shutdown signal handled by the caller, which should also call
// d.Shutdown).
func (d *Daemon) Serve() error {
	os.Remove(d.SocketPath)

	ln, err := net.Listen("unix", d.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.SocketPath, err)
	}
	defer ln.Close()
	defer os.Remove(d.SocketPath)

	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.handleConn(nc)
	}
}

// Shutdown kills every live session's child process. Callers unlink
// the socket by letting Serve's listener close (e.g. via signal).
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	sessions := make([]*session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		if s.record.Open() {
			_ = s.cmd.Process.Kill()
		}
		s.mu.Unlock()
	}
}

func (d *Daemon) handleConn(nc net.Conn) {
	c := &conn{nc: nc, enc: json.NewEncoder(nc)}
	defer nc.Close()
	defer d.detach(c)

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = c.send(Message{Type: MessageError, Error: fmt.Sprintf("parse request: %v", err)})
			continue
		}
		d.dispatch(c, req)
	}
}

func (d *Daemon) dispatch(c *conn, req Request) {
	switch req.Op {
	case OpPing:
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageOK})
	case OpCreate:
		d.create(c, req)
	case OpWrite:
		d.write(c, req)
	case OpResize:
		d.resize(c, req)
	case OpKill:
		d.kill(c, req)
	case OpGetBuffer:
		d.getBuffer(c, req)
	case OpSubscribe:
		d.subscribe(c, req)
	case OpUnsubscribe:
		d.unsubscribe(c, req)
	case OpList:
		d.list(c, req)
	default:
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

func (d *Daemon) create(c *conn, req Request) {
	cfg := req.Config
	if cfg.Shell == "" {
		cfg.Shell = os.Getenv("SHELL")
		if cfg.Shell == "" {
			cfg.Shell = "/bin/sh"
		}
	}
	if cfg.Cols == 0 {
		cfg.Cols = 80
	}
	if cfg.Rows == 0 {
		cfg.Rows = 24
	}

	cmd := exec.Command(cfg.Shell)
	cmd.Dir = cfg.WorkDir

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cfg.Cols), Rows: uint16(cfg.Rows)})
	if err != nil {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: fmt.Sprintf("start pty: %v", err)})
		return
	}

	s := &session{
		record: &models.TerminalRecord{
			ID:        uuid.New().String(),
			ProjectID: req.ProjectID,
			Config:    cfg,
			PID:       cmd.Process.Pid,
			CreatedAt: time.Now(),
		},
		ptmx: ptmx,
		cmd:  cmd,
		buf:  &ringBuffer{},
		subs: make(map[*conn]bool),
	}

	d.mu.Lock()
	d.sessions[s.record.ID] = s
	d.mu.Unlock()

	go d.pump(s)

	_ = c.send(Message{ReqID: req.ReqID, Type: MessageTerminalInfo, Terminal: s.record})
}

// pump copies PTY output into the ring buffer and fans it out to
// subscribers until the child exits.
func (d *Daemon) pump(s *session) {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			s.buf.append(chunk)

			s.mu.Lock()
			subs := make([]*conn, 0, len(s.subs))
			for c := range s.subs {
				subs = append(subs, c)
			}
			s.mu.Unlock()

			for _, c := range subs {
				_ = c.send(Message{Type: MessageData, TerminalID: s.record.ID, Data: string(chunk)})
			}
		}
		if err != nil {
			break
		}
	}

	exitCode := 0
	if err := s.cmd.Wait(); err != nil {
		exitCode = 1
	}

	s.mu.Lock()
	s.record.ClosedAt = time.Now()
	subs := make([]*conn, 0, len(s.subs))
	for c := range s.subs {
		subs = append(subs, c)
	}
	s.mu.Unlock()

	for _, c := range subs {
		_ = c.send(Message{Type: MessageExit, TerminalID: s.record.ID, ExitCode: exitCode})
	}
}

func (d *Daemon) lookup(id string) (*session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	return s, ok
}

func (d *Daemon) write(c *conn, req Request) {
	s, ok := d.lookup(req.TerminalID)
	if !ok {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "unknown terminal"})
		return
	}

	s.mu.Lock()
	open := s.record.Open()
	s.mu.Unlock()
	if !open {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "terminal is closed"})
		return
	}

	if _, err := io.WriteString(s.ptmx, req.Data); err != nil {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: err.Error()})
		return
	}
	_ = c.send(Message{ReqID: req.ReqID, Type: MessageOK})
}

func (d *Daemon) resize(c *conn, req Request) {
	s, ok := d.lookup(req.TerminalID)
	if !ok {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "unknown terminal"})
		return
	}

	if err := pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(req.Cols), Rows: uint16(req.Rows)}); err != nil {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: err.Error()})
		return
	}
	_ = c.send(Message{ReqID: req.ReqID, Type: MessageOK})
}

func (d *Daemon) kill(c *conn, req Request) {
	s, ok := d.lookup(req.TerminalID)
	if !ok {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "unknown terminal"})
		return
	}

	s.mu.Lock()
	if s.record.Open() {
		_ = s.cmd.Process.Kill()
	}
	s.mu.Unlock()

	d.mu.Lock()
	delete(d.sessions, req.TerminalID)
	d.mu.Unlock()

	_ = c.send(Message{ReqID: req.ReqID, Type: MessageOK})
}

func (d *Daemon) getBuffer(c *conn, req Request) {
	s, ok := d.lookup(req.TerminalID)
	if !ok {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "unknown terminal"})
		return
	}

	_ = c.send(Message{ReqID: req.ReqID, Type: MessageBuffer, TerminalID: req.TerminalID, Data: string(s.buf.snapshot())})
}

func (d *Daemon) subscribe(c *conn, req Request) {
	s, ok := d.lookup(req.TerminalID)
	if !ok {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "unknown terminal"})
		return
	}

	s.mu.Lock()
	s.subs[c] = true
	s.record.SubscriberCount = len(s.subs)
	s.mu.Unlock()

	_ = c.send(Message{ReqID: req.ReqID, Type: MessageOK})
}

// unsubscribe detaches c from one terminal's subscriber set, as an
// explicit callable op rather than relying on connection-close cleanup.
func (d *Daemon) unsubscribe(c *conn, req Request) {
	s, ok := d.lookup(req.TerminalID)
	if !ok {
		_ = c.send(Message{ReqID: req.ReqID, Type: MessageError, Error: "unknown terminal"})
		return
	}

	s.mu.Lock()
	if s.subs[c] {
		delete(s.subs, c)
		s.record.SubscriberCount = len(s.subs)
	}
	s.mu.Unlock()

	_ = c.send(Message{ReqID: req.ReqID, Type: MessageOK})
}

// list returns every hosted terminal, optionally filtered to req.ProjectID.
func (d *Daemon) list(c *conn, req Request) {
	d.mu.Lock()
	records := make([]*models.TerminalRecord, 0, len(d.sessions))
	for _, s := range d.sessions {
		s.mu.Lock()
		if req.ProjectID == "" || s.record.ProjectID == req.ProjectID {
			records = append(records, s.record)
		}
		s.mu.Unlock()
	}
	d.mu.Unlock()

	_ = c.send(Message{ReqID: req.ReqID, Type: MessageTerminalList, Terminals: records})
}

// detach removes c from every session's subscriber set when its
// connection closes.
func (d *Daemon) detach(c *conn) {
	d.mu.Lock()
	sessions := make([]*session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		if s.subs[c] {
			delete(s.subs, c)
			s.record.SubscriberCount = len(s.subs)
		}
		s.mu.Unlock()
	}
}
