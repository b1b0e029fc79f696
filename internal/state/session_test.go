package state

import (
	"testing"
	"time"
)

// Session CRUD Tests

func TestCreateSession(t *testing.T) {
	db := setupTestDB(t)

	session := &Session{
		ID:        "sess-001",
		PID:       4242,
		StartedAt: time.Now(),
		Status:    SessionActive,
	}

	err := db.CreateSession(session)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := db.GetSession("sess-001")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetSession returned nil")
	}
	if got.ID != session.ID || got.PID != session.PID {
		t.Errorf("session mismatch: got %+v, want %+v", got, session)
	}
}

func TestGetSession(t *testing.T) {
	db := setupTestDB(t)

	session := &Session{
		ID:        "sess-get-001",
		PID:       100,
		StartedAt: time.Now(),
		Status:    SessionActive,
	}
	if err := db.CreateSession(session); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err := db.GetSession("sess-get-001")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.PID != 100 {
		t.Errorf("PID mismatch: got %d, want 100", got.PID)
	}

	got, err = db.GetSession("nonexistent")
	if err != nil {
		t.Fatalf("GetSession failed for nonexistent: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for nonexistent session, got %+v", got)
	}
}

func TestUpdateSession(t *testing.T) {
	db := setupTestDB(t)

	session := &Session{
		ID:        "sess-update",
		PID:       100,
		StartedAt: time.Now(),
		Status:    SessionActive,
	}
	if err := db.CreateSession(session); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	session.Status = SessionCompleted
	if err := db.UpdateSession(session); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	got, err := db.GetSession("sess-update")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != SessionCompleted {
		t.Errorf("Status = %s, want %s", got.Status, SessionCompleted)
	}
}

func TestDeleteSession(t *testing.T) {
	db := setupTestDB(t)

	session := &Session{
		ID:        "sess-delete",
		StartedAt: time.Now(),
		Status:    SessionActive,
	}
	if err := db.CreateSession(session); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := db.DeleteSession("sess-delete"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	got, err := db.GetSession("sess-delete")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestListSessions(t *testing.T) {
	db := setupTestDB(t)

	sessions := []*Session{
		{ID: "sess-list-1", StartedAt: time.Now().Add(-2 * time.Hour), Status: SessionActive},
		{ID: "sess-list-2", StartedAt: time.Now().Add(-1 * time.Hour), Status: SessionCompleted},
		{ID: "sess-list-3", StartedAt: time.Now(), Status: SessionActive},
	}
	for _, s := range sessions {
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	all, err := db.ListSessions(nil)
	if err != nil {
		t.Fatalf("ListSessions(nil) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListSessions(nil) returned %d sessions, want 3", len(all))
	}

	active := SessionActive
	activeList, err := db.ListSessions(&active)
	if err != nil {
		t.Fatalf("ListSessions(active) failed: %v", err)
	}
	if len(activeList) != 2 {
		t.Errorf("ListSessions(active) returned %d sessions, want 2", len(activeList))
	}

	completed := SessionCompleted
	completedList, err := db.ListSessions(&completed)
	if err != nil {
		t.Fatalf("ListSessions(completed) failed: %v", err)
	}
	if len(completedList) != 1 {
		t.Errorf("ListSessions(completed) returned %d sessions, want 1", len(completedList))
	}
}

func TestGetActiveSession(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetActiveSession()
	if err != nil {
		t.Fatalf("GetActiveSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil when no active session, got %+v", got)
	}

	session := &Session{
		ID:        "sess-active",
		StartedAt: time.Now(),
		Status:    SessionActive,
	}
	if err := db.CreateSession(session); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err = db.GetActiveSession()
	if err != nil {
		t.Fatalf("GetActiveSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected active session, got nil")
	}
	if got.ID != "sess-active" {
		t.Errorf("GetActiveSession returned %s, want sess-active", got.ID)
	}
}

func TestPurgeOldSessions(t *testing.T) {
	db := setupTestDB(t)

	now := time.Now()
	sessions := []*Session{
		{ID: "sess-recent-1", StartedAt: now.Add(-1 * 24 * time.Hour), Status: SessionCompleted},
		{ID: "sess-recent-2", StartedAt: now.Add(-15 * 24 * time.Hour), Status: SessionCompleted},
		{ID: "sess-old-1", StartedAt: now.Add(-31 * 24 * time.Hour), Status: SessionCompleted},
		{ID: "sess-old-2", StartedAt: now.Add(-60 * 24 * time.Hour), Status: SessionFailed},
		{ID: "sess-very-old", StartedAt: now.Add(-365 * 24 * time.Hour), Status: SessionCanceled},
		{ID: "sess-active-old", StartedAt: now.Add(-45 * 24 * time.Hour), Status: SessionActive},
	}
	for _, s := range sessions {
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	all, err := db.ListSessions(nil)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 sessions before purge, got %d", len(all))
	}

	purged, err := db.PurgeOldSessions(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldSessions failed: %v", err)
	}
	if purged != 4 {
		t.Errorf("expected 4 sessions purged, got %d", purged)
	}

	remaining, err := db.ListSessions(nil)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("expected 2 sessions remaining, got %d", len(remaining))
	}

	ids := make(map[string]bool)
	for _, s := range remaining {
		ids[s.ID] = true
	}
	if !ids["sess-recent-1"] || !ids["sess-recent-2"] {
		t.Errorf("unexpected remaining sessions: %v", ids)
	}
}

func TestPurgeOldSessions_NoOldSessions(t *testing.T) {
	db := setupTestDB(t)

	now := time.Now()
	session := &Session{
		ID:        "sess-recent",
		StartedAt: now.Add(-1 * 24 * time.Hour),
		Status:    SessionCompleted,
	}
	if err := db.CreateSession(session); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	purged, err := db.PurgeOldSessions(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldSessions failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("expected 0 sessions purged, got %d", purged)
	}

	remaining, err := db.ListSessions(nil)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected 1 session remaining, got %d", len(remaining))
	}
}

func TestPurgeOldSessions_EmptyDB(t *testing.T) {
	db := setupTestDB(t)

	purged, err := db.PurgeOldSessions(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldSessions failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("expected 0 sessions purged on empty db, got %d", purged)
	}
}

// Agent CRUD Tests

func TestCreateAgent(t *testing.T) {
	db := setupTestDB(t)

	now := time.Now()
	agent := &Agent{
		ID:           "agent-001",
		TaskID:       "task-001",
		Kind:         "implementation",
		Status:       AgentPending,
		WorktreePath: "/path/to/worktree",
		PID:          12345,
		StartedAt:    &now,
	}

	err := db.CreateAgent(agent)
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}

	got, err := db.GetAgent("agent-001")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetAgent returned nil")
	}
	if got.TaskID != "task-001" || got.PID != 12345 || got.Kind != "implementation" {
		t.Errorf("agent mismatch: got %+v", got)
	}
}

func TestCreateAgent_NilStartedAt(t *testing.T) {
	db := setupTestDB(t)

	agent := &Agent{
		ID:        "agent-nil-time",
		TaskID:    "task-001",
		Status:    AgentPending,
		StartedAt: nil,
	}

	err := db.CreateAgent(agent)
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}

	got, err := db.GetAgent("agent-nil-time")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.StartedAt != nil {
		t.Errorf("expected nil StartedAt, got %v", got.StartedAt)
	}
}

func TestGetAgent(t *testing.T) {
	db := setupTestDB(t)

	agent := &Agent{
		ID:     "agent-get",
		TaskID: "task-001",
		Status: AgentRunning,
	}
	if err := db.CreateAgent(agent); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err := db.GetAgent("agent-get")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got == nil || got.Status != AgentRunning {
		t.Errorf("GetAgent mismatch: got %+v", got)
	}

	got, err = db.GetAgent("nonexistent")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for nonexistent, got %+v", got)
	}
}

func TestUpdateAgent(t *testing.T) {
	db := setupTestDB(t)

	agent := &Agent{
		ID:     "agent-update",
		TaskID: "task-001",
		Status: AgentPending,
	}
	if err := db.CreateAgent(agent); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	agent.Status = AgentRunning
	agent.PID = 9999
	now := time.Now()
	agent.StartedAt = &now

	if err := db.UpdateAgent(agent); err != nil {
		t.Fatalf("UpdateAgent failed: %v", err)
	}

	got, err := db.GetAgent("agent-update")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got.Status != AgentRunning {
		t.Errorf("Status = %s, want %s", got.Status, AgentRunning)
	}
	if got.PID != 9999 {
		t.Errorf("PID = %d, want 9999", got.PID)
	}
}

func TestDeleteAgent(t *testing.T) {
	db := setupTestDB(t)

	agent := &Agent{
		ID:     "agent-delete",
		TaskID: "task-001",
		Status: AgentPending,
	}
	if err := db.CreateAgent(agent); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := db.DeleteAgent("agent-delete"); err != nil {
		t.Fatalf("DeleteAgent failed: %v", err)
	}

	got, err := db.GetAgent("agent-delete")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestListAgents(t *testing.T) {
	db := setupTestDB(t)

	agents := []*Agent{
		{ID: "agent-list-1", TaskID: "task-1", Status: AgentPending},
		{ID: "agent-list-2", TaskID: "task-2", Status: AgentRunning},
		{ID: "agent-list-3", TaskID: "task-3", Status: AgentRunning},
		{ID: "agent-list-4", TaskID: "task-4", Status: AgentDone},
	}
	for _, a := range agents {
		if err := db.CreateAgent(a); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	all, err := db.ListAgents(nil)
	if err != nil {
		t.Fatalf("ListAgents(nil) failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("ListAgents(nil) returned %d, want 4", len(all))
	}

	running := AgentRunning
	runningList, err := db.ListAgents(&running)
	if err != nil {
		t.Fatalf("ListAgents(running) failed: %v", err)
	}
	if len(runningList) != 2 {
		t.Errorf("ListAgents(running) returned %d, want 2", len(runningList))
	}
}

func TestListAgentsByTask(t *testing.T) {
	db := setupTestDB(t)

	agents := []*Agent{
		{ID: "agent-task-1", TaskID: "shared-task", Status: AgentDone},
		{ID: "agent-task-2", TaskID: "shared-task", Status: AgentRunning},
		{ID: "agent-task-3", TaskID: "other-task", Status: AgentPending},
	}
	for _, a := range agents {
		if err := db.CreateAgent(a); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	list, err := db.ListAgentsByTask("shared-task")
	if err != nil {
		t.Fatalf("ListAgentsByTask failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListAgentsByTask returned %d, want 2", len(list))
	}

	list, err = db.ListAgentsByTask("nonexistent-task")
	if err != nil {
		t.Fatalf("ListAgentsByTask failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListAgentsByTask returned %d, want 0", len(list))
	}
}

// Task CRUD Tests

func TestCreateTask(t *testing.T) {
	db := setupTestDB(t)

	task := &Task{
		ID:          "task-001",
		ProjectID:   "project-001",
		SpecID:      "task-001",
		Title:       "Test Task",
		Description: "A test task description",
		Status:      "backlog",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	err := db.CreateTask(task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := db.GetTask("task-001")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetTask returned nil")
	}
	if got.Title != "Test Task" {
		t.Errorf("Title = %s, want Test Task", got.Title)
	}
	if got.ProjectID != "project-001" {
		t.Errorf("ProjectID = %s, want project-001", got.ProjectID)
	}
}

func TestGetTask(t *testing.T) {
	db := setupTestDB(t)

	task := &Task{
		ID:        "task-get",
		Title:     "Get Test",
		Status:    "in_progress",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err := db.GetTask("task-get")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil || got.Status != "in_progress" {
		t.Errorf("GetTask mismatch: got %+v", got)
	}

	got, err = db.GetTask("nonexistent")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for nonexistent, got %+v", got)
	}
}

func TestUpdateTask(t *testing.T) {
	db := setupTestDB(t)

	task := &Task{
		ID:        "task-update",
		Title:     "Update Test",
		Status:    "backlog",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	task.Status = "done"
	task.UpdatedAt = time.Now()
	task.Description = "Updated description"

	if err := db.UpdateTask(task); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, err := db.GetTask("task-update")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != "done" {
		t.Errorf("Status = %s, want done", got.Status)
	}
	if got.Description != "Updated description" {
		t.Errorf("Description = %s, want Updated description", got.Description)
	}
}

func TestUpsertTask(t *testing.T) {
	db := setupTestDB(t)

	task := &Task{
		ID:        "task-upsert",
		Title:     "Upsert Test",
		Status:    "backlog",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask(create) failed: %v", err)
	}

	task.Status = "in_progress"
	task.UpdatedAt = time.Now()
	if err := db.UpsertTask(task); err != nil {
		t.Fatalf("UpsertTask(update) failed: %v", err)
	}

	got, err := db.GetTask("task-upsert")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != "in_progress" {
		t.Errorf("Status = %s, want in_progress", got.Status)
	}
}

func TestDeleteTask(t *testing.T) {
	db := setupTestDB(t)

	task := &Task{
		ID:        "task-delete",
		Title:     "Delete Test",
		Status:    "backlog",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := db.DeleteTask("task-delete"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	got, err := db.GetTask("task-delete")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestListTasks(t *testing.T) {
	db := setupTestDB(t)

	tasks := []*Task{
		{ID: "task-list-1", Title: "Task 1", Status: "backlog", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: "task-list-2", Title: "Task 2", Status: "in_progress", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: "task-list-3", Title: "Task 3", Status: "done", CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	for _, task := range tasks {
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	all, err := db.ListTasks(nil)
	if err != nil {
		t.Fatalf("ListTasks(nil) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListTasks(nil) returned %d, want 3", len(all))
	}

	backlog := "backlog"
	backlogList, err := db.ListTasks(&backlog)
	if err != nil {
		t.Fatalf("ListTasks(backlog) failed: %v", err)
	}
	if len(backlogList) != 1 {
		t.Errorf("ListTasks(backlog) returned %d, want 1", len(backlogList))
	}
}

func TestListTasksByParent(t *testing.T) {
	db := setupTestDB(t)

	tasks := []*Task{
		{ID: "child-1", ProjectID: "project-001", Title: "Child 1", Status: "backlog", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: "child-2", ProjectID: "project-001", Title: "Child 2", Status: "backlog", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: "child-3", ProjectID: "project-002", Title: "Child 3", Status: "backlog", CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	for _, task := range tasks {
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	list, err := db.ListTasksByParent("project-001")
	if err != nil {
		t.Fatalf("ListTasksByParent failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListTasksByParent returned %d, want 2", len(list))
	}
}

// Terminal CRUD Tests

func TestCreateAndCloseTerminal(t *testing.T) {
	db := setupTestDB(t)

	term := &Terminal{
		ID:        "term-001",
		ProjectID: "project-001",
		WorkDir:   "/work/dir",
		PID:       555,
		CreatedAt: time.Now(),
	}
	if err := db.CreateTerminal(term); err != nil {
		t.Fatalf("CreateTerminal failed: %v", err)
	}

	open, err := db.ListOpenTerminals()
	if err != nil {
		t.Fatalf("ListOpenTerminals failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open terminal, got %d", len(open))
	}

	if err := db.CloseTerminal("term-001", time.Now()); err != nil {
		t.Fatalf("CloseTerminal failed: %v", err)
	}

	open, err = db.ListOpenTerminals()
	if err != nil {
		t.Fatalf("ListOpenTerminals failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected 0 open terminals after close, got %d", len(open))
	}
}
