// Package mergeai resolves the merge conflicts format-aware merging
// alone cannot: once internal/merge gives up on a file
// (NeedsSemanticMerge), mergeai hands its conflicted content to an
// agent, either an external merge-agent executable installed with the
// project's framework or, when none is configured, the Anthropic API
// directly.
package mergeai

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgeman/controlplane/internal/agentkind"
	"github.com/forgeman/controlplane/internal/git"
	"github.com/forgeman/controlplane/internal/merge"
	"github.com/forgeman/controlplane/pkg/models"
)

const invocationTimeout = 3 * time.Minute

// Resolution is one file's proposed conflict resolution.
type Resolution struct {
	Path    string
	Content string
}

// Resolver resolves conflicted files against a base and incoming branch
// description, using whichever agent is available for the project.
type Resolver struct {
	// ExecutablePath is the external merge-agent binary to invoke, found
	// at <framework>/bin/merge-agent by convention with the other agent
	// kinds. Empty when the project has no framework installed or the
	// binary is absent, in which case Resolve falls back to Claude.
	ExecutablePath string
	// Claude is the direct-API fallback, used only when ExecutablePath
	// is empty.
	Claude *agentkind.ClaudeClient
}

// NewResolver builds a Resolver for project, locating its merge-agent
// executable by the same bin/<kind> convention DefaultFrameworkResolver
// uses for the other agent kinds.
func NewResolver(project *models.Project, claude *agentkind.ClaudeClient) *Resolver {
	r := &Resolver{Claude: claude}
	if !project.HasFramework() {
		return r
	}

	path := filepath.Join(project.Dir, project.FrameworkPath, "bin", "merge-agent")
	if _, err := os.Stat(path); err == nil {
		r.ExecutablePath = path
	}
	return r
}

// Resolve proposes a resolution for one conflicted file given its raw
// conflict-marker content and the branch names on either side.
func (r *Resolver) Resolve(ctx context.Context, path, conflictedContent, baseBranch, incomingBranch string) (Resolution, error) {
	prompt := buildPrompt(path, conflictedContent, baseBranch, incomingBranch)

	var resolved string
	var err error
	if r.ExecutablePath != "" {
		resolved, err = r.runExecutable(ctx, prompt)
	} else if r.Claude != nil {
		resolved, err = r.Claude.Complete(ctx, systemPrompt, prompt)
	} else {
		return Resolution{}, fmt.Errorf("no merge agent available: no framework executable and no Anthropic client configured")
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve conflict in %s: %w", path, err)
	}

	return Resolution{Path: path, Content: stripFences(resolved)}, nil
}

// ResolveAll resolves every conflicted file independently and returns
// one Resolution per input, stopping at the first failure since a
// partially-resolved merge is not safe to apply.
func (r *Resolver) ResolveAll(ctx context.Context, files map[string]string, baseBranch, incomingBranch string) ([]Resolution, error) {
	resolutions := make([]Resolution, 0, len(files))
	for path, content := range files {
		res, err := r.Resolve(ctx, path, content, baseBranch, incomingBranch)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}
	return resolutions, nil
}

// ResolveConflicts resolves every file a worktree merge gave up on,
// using the base/session/agent content and parsed conflict regions
// ConflictPresenter assembles instead of a raw working-tree diff, since
// internal/merge.Handler aborts the failed merge before this runs and
// no conflict markers survive on disk.
func (r *Resolver) ResolveConflicts(ctx context.Context, repoPath string, runner git.Runner, sessionBranch, agentBranch, taskID string, conflictFiles []string) ([]Resolution, error) {
	presenter := merge.NewConflictPresenter(repoPath, runner)
	presentations, err := presenter.AnalyzeMultipleConflicts(ctx, conflictFiles, sessionBranch, agentBranch, taskID, "", 1)
	if err != nil {
		return nil, fmt.Errorf("analyze conflicts: %w", err)
	}

	resolutions := make([]Resolution, 0, len(presentations))
	for _, p := range presentations {
		res, err := r.Resolve(ctx, p.FilePath, merge.FormatConflictDiff(p), sessionBranch, agentBranch)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}
	return resolutions, nil
}

const systemPrompt = "You resolve git merge conflicts. Given a file's content with " +
	"conflict markers, output only the fully resolved file content with no " +
	"markers, no explanation, and no markdown code fence."

func buildPrompt(path, conflictedContent, baseBranch, incomingBranch string) string {
	return fmt.Sprintf(
		"File: %s\nBase branch: %s\nIncoming branch: %s\n\nConflicted content:\n%s",
		path, baseBranch, incomingBranch, conflictedContent,
	)
}

func (r *Resolver) runExecutable(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, invocationTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.ExecutablePath)
	cmd.Stdin = strings.NewReader(prompt)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("merge-agent: %w: %s", err, out.String())
	}
	return out.String(), nil
}

// stripFences removes a leading/trailing markdown code fence, since
// agents are prone to wrapping output even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
