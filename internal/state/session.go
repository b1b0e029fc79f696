package state

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionStatus represents the status of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCanceled  SessionStatus = "canceled"
)

// AgentStatus represents the status of an agent-kind invocation.
type AgentStatus string

const (
	AgentPending AgentStatus = "pending"
	AgentRunning AgentStatus = "running"
	AgentDone    AgentStatus = "done"
	AgentFailed  AgentStatus = "failed"
)

// Session represents one run of the control plane process (cmd/forgeman
// serve, or a one-shot CLI invocation). It exists so RecoveryManager can
// tell, on the next startup, whether the previous run exited cleanly.
type Session struct {
	ID        string        `json:"id"`
	PID       int           `json:"pid"`
	StartedAt time.Time     `json:"started_at"`
	Status    SessionStatus `json:"status"`
}

// Agent is the cache's record of one supervised agent-kind invocation,
// mirroring internal/agentkind.Supervisor.Run's lifecycle. It exists so a
// crash mid-invocation can be detected and the task reset on restart; the
// orchestrator's in-memory task map remains the source of truth for a
// live process.
type Agent struct {
	ID           string      `json:"id"`
	TaskID       string      `json:"task_id"`
	Kind         string      `json:"kind"`
	Status       AgentStatus `json:"status"`
	WorktreePath string      `json:"worktree_path"`
	PID          int         `json:"pid"`
	StartedAt    *time.Time  `json:"started_at"`
}

// Task is the cache's record of a Task Orchestrator task, kept in sync
// with pkg/models.Task's identity and status fields so a restarted
// control plane can repopulate its in-memory task map before recomputing
// status from live artifacts.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SpecID      string    `json:"spec_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal is the cache's record of one PTY session hosted by the
// Terminal Daemon, kept so a restarted daemon can report which terminals
// it no longer has a live PTY for instead of silently forgetting them.
type Terminal struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	WorkDir   string     `json:"work_dir"`
	PID       int        `json:"pid"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

// Session CRUD operations

// CreateSession creates a new session.
func (db *DB) CreateSession(s *Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (id, pid, started_at, status)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.PID, formatTime(s.StartedAt), string(s.Status))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, pid, started_at, status
		FROM sessions WHERE id = ?
	`, id)

	var s Session
	var startedAt string
	err := row.Scan(&s.ID, &s.PID, &startedAt, &s.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.StartedAt, _ = parseTime(startedAt)
	return &s, nil
}

// UpdateSession updates a session.
func (db *DB) UpdateSession(s *Session) error {
	_, err := db.Exec(`
		UPDATE sessions SET pid = ?, status = ?
		WHERE id = ?
	`, s.PID, string(s.Status), s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// DeleteSession deletes a session by ID.
func (db *DB) DeleteSession(id string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions lists all sessions, optionally filtered by status.
func (db *DB) ListSessions(status *SessionStatus) ([]Session, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, pid, started_at, status
			FROM sessions WHERE status = ? ORDER BY started_at DESC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, pid, started_at, status
			FROM sessions ORDER BY started_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAt string
		if err := rows.Scan(&s.ID, &s.PID, &startedAt, &s.Status); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt, _ = parseTime(startedAt)
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// GetActiveSession returns the most recently started active session, if any.
func (db *DB) GetActiveSession() (*Session, error) {
	status := SessionActive
	sessions, err := db.ListSessions(&status)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// Agent CRUD operations

// CreateAgent creates a new agent record.
func (db *DB) CreateAgent(a *Agent) error {
	var startedAt *string
	if a.StartedAt != nil {
		s := formatTime(*a.StartedAt)
		startedAt = &s
	}

	_, err := db.Exec(`
		INSERT INTO agents (id, task_id, kind, status, worktree_path, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TaskID, a.Kind, string(a.Status), a.WorktreePath, a.PID, startedAt)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (db *DB) GetAgent(id string) (*Agent, error) {
	row := db.QueryRow(`
		SELECT id, task_id, kind, status, worktree_path, pid, started_at
		FROM agents WHERE id = ?
	`, id)
	return scanAgent(row)
}

func scanAgent(row *sql.Row) (*Agent, error) {
	var a Agent
	var startedAt sql.NullString
	var worktreePath sql.NullString
	var pid sql.NullInt64
	err := row.Scan(&a.ID, &a.TaskID, &a.Kind, &a.Status, &worktreePath, &pid, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}

	if worktreePath.Valid {
		a.WorktreePath = worktreePath.String
	}
	if pid.Valid {
		a.PID = int(pid.Int64)
	}
	a.StartedAt = parseNullableTime(startedAt)
	return &a, nil
}

// UpdateAgent updates an agent.
func (db *DB) UpdateAgent(a *Agent) error {
	var startedAt *string
	if a.StartedAt != nil {
		s := formatTime(*a.StartedAt)
		startedAt = &s
	}

	_, err := db.Exec(`
		UPDATE agents SET task_id = ?, kind = ?, status = ?, worktree_path = ?, pid = ?, started_at = ?
		WHERE id = ?
	`, a.TaskID, a.Kind, string(a.Status), a.WorktreePath, a.PID, startedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// DeleteAgent deletes an agent by ID.
func (db *DB) DeleteAgent(id string) error {
	_, err := db.Exec("DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// ListAgents lists all agents, optionally filtered by status.
func (db *DB) ListAgents(status *AgentStatus) ([]Agent, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, task_id, kind, status, worktree_path, pid, started_at
			FROM agents WHERE status = ?
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, task_id, kind, status, worktree_path, pid, started_at
			FROM agents
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

// ListAgentsByTask lists all agents for a task.
func (db *DB) ListAgentsByTask(taskID string) ([]Agent, error) {
	rows, err := db.Query(`
		SELECT id, task_id, kind, status, worktree_path, pid, started_at
		FROM agents WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list agents by task: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func scanAgents(rows *sql.Rows) ([]Agent, error) {
	var agents []Agent
	for rows.Next() {
		var a Agent
		var startedAt sql.NullString
		var worktreePath sql.NullString
		var pid sql.NullInt64
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Kind, &a.Status, &worktreePath, &pid, &startedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		if worktreePath.Valid {
			a.WorktreePath = worktreePath.String
		}
		if pid.Valid {
			a.PID = int(pid.Int64)
		}
		a.StartedAt = parseNullableTime(startedAt)
		agents = append(agents, a)
	}
	return agents, nil
}

// Task CRUD operations

// CreateTask creates a new task record.
func (db *DB) CreateTask(t *Task) error {
	_, err := db.Exec(`
		INSERT INTO tasks (id, project_id, spec_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.SpecID, t.Title, t.Description, t.Status, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(id string) (*Task, error) {
	row := db.QueryRow(`
		SELECT id, project_id, spec_id, title, description, status, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	var t Task
	var createdAt, updatedAt string
	var specID, description sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &specID, &t.Title, &description, &t.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if specID.Valid {
		t.SpecID = specID.String
	}
	if description.Valid {
		t.Description = description.String
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	return &t, nil
}

// UpsertTask creates the task if it doesn't exist, or updates it in place.
// The orchestrator calls this on every status transition rather than
// tracking create-vs-update itself.
func (db *DB) UpsertTask(t *Task) error {
	existing, err := db.GetTask(t.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.CreateTask(t)
	}
	return db.UpdateTask(t)
}

// UpdateTask updates a task.
func (db *DB) UpdateTask(t *Task) error {
	_, err := db.Exec(`
		UPDATE tasks SET project_id = ?, spec_id = ?, title = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, t.ProjectID, t.SpecID, t.Title, t.Description, t.Status, formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// DeleteTask deletes a task by ID.
func (db *DB) DeleteTask(id string) error {
	_, err := db.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListTasks lists all tasks, optionally filtered by status.
func (db *DB) ListTasks(status *string) ([]Task, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, project_id, spec_id, title, description, status, created_at, updated_at
			FROM tasks WHERE status = ? ORDER BY created_at
		`, *status)
	} else {
		rows, err = db.Query(`
			SELECT id, project_id, spec_id, title, description, status, created_at, updated_at
			FROM tasks ORDER BY created_at
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListTasksByParent lists all tasks belonging to a project. The name is
// kept from the TaskStore interface's original parent/child framing;
// "parent" here is the owning project id.
func (db *DB) ListTasksByParent(projectID string) ([]Task, error) {
	rows, err := db.Query(`
		SELECT id, project_id, spec_id, title, description, status, created_at, updated_at
		FROM tasks WHERE project_id = ? ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by project: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		var createdAt, updatedAt string
		var specID, description sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &specID, &t.Title, &description, &t.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if specID.Valid {
			t.SpecID = specID.String
		}
		if description.Valid {
			t.Description = description.String
		}
		t.CreatedAt, _ = parseTime(createdAt)
		t.UpdatedAt, _ = parseTime(updatedAt)
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Terminal CRUD operations

// CreateTerminal creates a new terminal record.
func (db *DB) CreateTerminal(t *Terminal) error {
	_, err := db.Exec(`
		INSERT INTO terminals (id, project_id, work_dir, pid, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.WorkDir, t.PID, formatTime(t.CreatedAt), nil)
	if err != nil {
		return fmt.Errorf("create terminal: %w", err)
	}
	return nil
}

// CloseTerminal marks a terminal record closed.
func (db *DB) CloseTerminal(id string, closedAt time.Time) error {
	_, err := db.Exec(`UPDATE terminals SET closed_at = ? WHERE id = ?`, formatTime(closedAt), id)
	if err != nil {
		return fmt.Errorf("close terminal: %w", err)
	}
	return nil
}

// ListOpenTerminals lists terminals with no recorded close time, i.e.
// terminals a crashed daemon never got to mark closed.
func (db *DB) ListOpenTerminals() ([]Terminal, error) {
	rows, err := db.Query(`
		SELECT id, project_id, work_dir, pid, created_at, closed_at
		FROM terminals WHERE closed_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list open terminals: %w", err)
	}
	defer rows.Close()

	var terminals []Terminal
	for rows.Next() {
		var t Terminal
		var createdAt string
		var closedAt sql.NullString
		var projectID, workDir sql.NullString
		var pid sql.NullInt64
		if err := rows.Scan(&t.ID, &projectID, &workDir, &pid, &createdAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan terminal: %w", err)
		}
		if projectID.Valid {
			t.ProjectID = projectID.String
		}
		if workDir.Valid {
			t.WorkDir = workDir.String
		}
		if pid.Valid {
			t.PID = int(pid.Int64)
		}
		t.CreatedAt, _ = parseTime(createdAt)
		t.ClosedAt = parseNullableTime(closedAt)
		terminals = append(terminals, t)
	}
	return terminals, nil
}
