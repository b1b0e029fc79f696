package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgeman/controlplane/internal/logging"
	"github.com/forgeman/controlplane/internal/orchestrator"
	"github.com/forgeman/controlplane/internal/state"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// serveLog carries session-lifecycle diagnostics that aren't part of
// any task's event stream (recovery checks, cache write failures).
var serveLog = logging.Default("serve")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane in the foreground",
	Long: `Run the control plane's orchestrator in the foreground, printing task
lifecycle events to stdout until interrupted.

This is the same orchestrator the project/task commands drive one
operation at a time; serve keeps it resident so long-running agent
subprocesses and the worktree/merge operations they trigger can be
supervised continuously.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(reg)
	if err != nil {
		return err
	}
	defer orch.Close()

	session := recordSessionStart(orch.Cache())
	defer recordSessionEnd(orch.Cache(), session)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("forgeman control plane running; press Ctrl-C to stop")

	for {
		select {
		case ev, ok := <-orch.Events():
			if !ok {
				return nil
			}
			printEvent(ev)
		case <-sigCh:
			fmt.Println("\nreceived interrupt, shutting down...")
			return nil
		}
	}
}

// recordSessionStart reports any session left interrupted by a prior
// crash, then records the start of this one in the cache. Returns an
// empty session id when cache is nil, signaling recordSessionEnd to
// skip its write too.
func recordSessionStart(cache *state.DB) string {
	if cache == nil {
		return ""
	}

	if interrupted, err := state.NewRecoveryManager(cache).CheckForInterrupted(); err != nil {
		serveLog.Warnf("check for interrupted session: %v", err)
	} else if interrupted != nil {
		serveLog.Infof("found interrupted session %s (%d agents still marked running); cleaning up", interrupted.SessionID, interrupted.RunningAgents)
		if err := state.NewRecoveryManager(cache).Clean(interrupted.SessionID); err != nil {
			serveLog.Warnf("clean interrupted session %s: %v", interrupted.SessionID, err)
		}
	}

	id := uuid.New().String()
	session := &state.Session{
		ID:        id,
		PID:       os.Getpid(),
		StartedAt: time.Now(),
		Status:    state.SessionActive,
	}
	if err := cache.CreateSession(session); err != nil {
		serveLog.Warnf("record session start: %v", err)
	}
	return id
}

// recordSessionEnd marks this run's session row completed on clean
// shutdown.
func recordSessionEnd(cache *state.DB, sessionID string) {
	if cache == nil || sessionID == "" {
		return
	}
	session, err := cache.GetSession(sessionID)
	if err != nil || session == nil {
		return
	}
	session.Status = state.SessionCompleted
	if err := cache.UpdateSession(session); err != nil {
		serveLog.Warnf("record session end: %v", err)
	}
}

func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventTaskStatus:
		fmt.Printf("[%s] task %s -> %s\n", ev.Timestamp.Format("15:04:05"), ev.TaskID, ev.Status)
	case orchestrator.EventTaskProgress:
		fmt.Printf("[%s] task %s %s %d%% %s\n", ev.Timestamp.Format("15:04:05"), ev.TaskID, ev.Progress.Phase, ev.Progress.Percent, ev.Progress.Message)
	case orchestrator.EventTaskStuck:
		fmt.Printf("[%s] task %s appears stuck\n", ev.Timestamp.Format("15:04:05"), ev.TaskID)
	case orchestrator.EventError:
		fmt.Printf("[%s] task %s error: %v\n", ev.Timestamp.Format("15:04:05"), ev.TaskID, ev.Err)
	}
}
