// Package watcher observes spec and project directories for the
// artifact files agent-kind subprocesses write, and turns settled
// changes into ArtifactEvents.
package watcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgeman/controlplane/pkg/models"
)

// debounceWindow coalesces bursts of writes to one file into a single
// emitted event.
const debounceWindow = 250 * time.Millisecond

const (
	planFileName         = "implementation_plan.json"
	qaReportFileName     = "qa_report.md"
	qaFixRequestFileName = "qa_fix_request.md"
	projectIndexFileName = "roadmap.json"
)

// OnArtifact is invoked once a debounced file change settles.
type OnArtifact func(models.ArtifactEvent)

// OnParseError is invoked when a watched file changes but its payload
// cannot be parsed. The watcher keeps running afterward.
type OnParseError func(projectID, specID, path string, err error)

type watchedDir struct {
	projectID string
	specID    string // empty for project-level directories
}

// Watcher observes spec directories for implementation_plan.json,
// qa_report.md, qa_fix_request.md, and phase-log files, plus project
// root directories for the roadmap index, and emits one ArtifactEvent
// per settled (debounced) change.
//
// One underlying fsnotify.Watcher multiplexes every registered
// directory; debounce timers are tracked per absolute file path, so a
// single Watcher instance serves every active task at once rather than
// the one-fsnotify-handle-per-concern split spec.md's prose suggests.
// This mirrors the shape of the teacher's notification manager, which
// keeps one *fsnotify.Watcher alive for the life of a repo rather than
// one per signal file.
type Watcher struct {
	fs *fsnotify.Watcher

	onArtifact   OnArtifact
	onParseError OnParseError

	mu     sync.Mutex
	dirs   map[string]watchedDir
	timers map[string]*time.Timer

	done chan struct{}
}

// New creates a Watcher. Call WatchTask/WatchProject to register
// directories, then Run in its own goroutine to begin dispatching
// events; Run returns once Close is called.
func New(onArtifact OnArtifact, onParseError OnParseError) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fs:           fs,
		onArtifact:   onArtifact,
		onParseError: onParseError,
		dirs:         make(map[string]watchedDir),
		timers:       make(map[string]*time.Timer),
		done:         make(chan struct{}),
	}, nil
}

// WatchTask registers a task's spec directory for plan/QA/log artifact
// events.
func (w *Watcher) WatchTask(projectID, specID, dir string) error {
	return w.watch(dir, watchedDir{projectID: projectID, specID: specID})
}

// WatchProject registers a project's root directory for project-level
// artifacts (currently the roadmap index).
func (w *Watcher) WatchProject(projectID, dir string) error {
	return w.watch(dir, watchedDir{projectID: projectID})
}

func (w *Watcher) watch(dir string, reg watchedDir) error {
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.mu.Lock()
	w.dirs[filepath.Clean(dir)] = reg
	w.mu.Unlock()
	return nil
}

// Unwatch stops observing dir, e.g. once a task is deleted or stopped.
func (w *Watcher) Unwatch(dir string) {
	_ = w.fs.Remove(dir)
	w.mu.Lock()
	delete(w.dirs, filepath.Clean(dir))
	w.mu.Unlock()
}

// Run processes fsnotify events until Close is called. fsnotify-level
// errors are reported through onParseError with an empty path and never
// stop the loop, matching the "parse failures ... do not break the
// watcher" requirement.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.scheduleSettle(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.onParseError != nil {
				w.onParseError("", "", "", fmt.Errorf("fsnotify: %w", err))
			}
		}
	}
}

// Close stops Run and releases the underlying fsnotify handle.
func (w *Watcher) Close() {
	close(w.done)
	w.fs.Close()
}

// scheduleSettle (re)starts path's debounce timer; a burst of writes to
// the same path collapses into the single settle that fires 250ms after
// the last one.
func (w *Watcher) scheduleSettle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.settle(path)
	})
}

// settle builds and emits the ArtifactEvent for one settled file change.
func (w *Watcher) settle(path string) {
	dir := filepath.Dir(path)
	w.mu.Lock()
	reg, ok := w.dirs[filepath.Clean(dir)]
	w.mu.Unlock()
	if !ok {
		return
	}

	kind, ok := classify(filepath.Base(path))
	if !ok {
		return
	}

	payload, err := readPayload(kind, path)
	if err != nil {
		if w.onParseError != nil {
			w.onParseError(reg.projectID, reg.specID, path, err)
		}
		return
	}

	if w.onArtifact != nil {
		w.onArtifact(models.ArtifactEvent{
			ProjectID:  reg.projectID,
			SpecID:     reg.specID,
			Kind:       kind,
			Path:       path,
			Payload:    payload,
			ObservedAt: time.Now(),
		})
	}
}

// classify maps a watched file's base name to its artifact kind. Phase
// logs have no single canonical name, so any "*.log" file under a
// watched directory qualifies; memory episodes are "*.episode.jsonl"
// files.
func classify(base string) (models.ArtifactKind, bool) {
	switch {
	case base == planFileName:
		return models.ArtifactKindPlan, true
	case base == qaReportFileName:
		return models.ArtifactKindQAReport, true
	case base == qaFixRequestFileName:
		return models.ArtifactKindQAFixRequest, true
	case base == projectIndexFileName:
		return models.ArtifactKindProjectIndex, true
	case strings.HasSuffix(base, ".episode.jsonl"):
		return models.ArtifactKindMemoryEpisode, true
	case strings.HasSuffix(base, ".log"):
		return models.ArtifactKindTaskLog, true
	default:
		return "", false
	}
}

// readPayload reads path and, for the structured plan kind, unmarshals
// it. Every other kind is forwarded as raw text, since QA reports, fix
// requests, and logs are read by reviewers, not parsed by the core.
func readPayload(kind models.ArtifactKind, path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if kind != models.ArtifactKindPlan {
		return string(data), nil
	}

	var plan models.ImplementationPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse implementation plan: %w", err)
	}
	return &plan, nil
}
