package orchestrator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgeman/controlplane/pkg/models"
)

const (
	planFileName         = "implementation_plan.json"
	specFileName         = "spec.md"
	qaReportFileName     = "qa_report.md"
	qaFixRequestFileName = "qa_fix_request.md"
)

func specDir(project *models.Project, specID string) string {
	return filepath.Join(project.SpecRoot(), specID)
}

// readPlan parses a spec directory's implementation plan, if present.
// A missing file is not an error; it means no plan has been written yet.
func readPlan(dir string) (*models.ImplementationPlan, error) {
	data, err := os.ReadFile(filepath.Join(dir, planFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", planFileName, err)
	}

	var plan models.ImplementationPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse %s: %w", planFileName, err)
	}
	return &plan, nil
}

// readQAVerdict reads the QA report written by the QA agent kind. The
// first non-blank line carries the verdict, matched case-insensitively:
// PASSED or APPROVED approves, REJECTED or FAILED rejects; anything after
// is kept as feedback.
func readQAVerdict(dir string) (qaVerdict, string, error) {
	data, err := os.ReadFile(filepath.Join(dir, qaReportFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return qaVerdictNone, "", nil
		}
		return qaVerdictNone, "", fmt.Errorf("read %s: %w", qaReportFileName, err)
	}

	text := string(data)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		feedback := strings.TrimSpace(strings.TrimPrefix(text, scanner.Text()))
		switch strings.ToUpper(line) {
		case "PASSED", "APPROVED":
			return qaVerdictApproved, feedback, nil
		case "REJECTED", "FAILED":
			return qaVerdictRejected, feedback, nil
		default:
			return qaVerdictNone, "", fmt.Errorf("parse %s: unrecognized verdict %q", qaReportFileName, line)
		}
	}
	return qaVerdictNone, "", nil
}

// writeQAReport writes (or overwrites) the QA report artifact.
func writeQAReport(dir string, approved bool, feedback string) error {
	verdict := "REJECTED"
	if approved {
		verdict = "APPROVED"
	}
	content := verdict + "\n"
	if feedback != "" {
		content += "\n" + feedback + "\n"
	}
	return os.WriteFile(filepath.Join(dir, qaReportFileName), []byte(content), 0644)
}

// writeQAFixRequest records reviewer feedback for a rejected task so the
// QA agent kind can be re-spawned against it.
func writeQAFixRequest(dir, feedback string) error {
	return os.WriteFile(filepath.Join(dir, qaFixRequestFileName), []byte(feedback+"\n"), 0644)
}

// readOverview extracts the first non-empty paragraph under an "Overview"
// heading in spec.md, for use as a task's description when scanning.
func readOverview(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, specFileName))
	if err != nil {
		return ""
	}

	lines := strings.Split(string(data), "\n")
	inOverview := false
	var para []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.ToLower(strings.TrimLeft(trimmed, "# "))
			if strings.Contains(heading, "overview") {
				inOverview = true
				continue
			}
			if inOverview {
				break
			}
			continue
		}
		if !inOverview {
			continue
		}
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, trimmed)
	}
	return strings.Join(para, " ")
}

// scanEntry is one task reconstructed from a project's spec directory.
type scanEntry struct {
	specID string
	plan   *models.ImplementationPlan
	title  string
	desc   string
}

// scanSpecs enumerates a project's spec root, skipping hidden entries and
// unreadable or malformed artifacts (whose errors are logged, not
// propagated, per spec.md §4.1.3).
func (o *Orchestrator) scanSpecs(project *models.Project) []scanEntry {
	root := project.SpecRoot()
	if root == "" {
		return nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var out []scanEntry
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		dir := filepath.Join(root, e.Name())
		plan, err := readPlan(dir)
		if err != nil {
			o.logger.Log("scan %s: %v", dir, err)
			continue
		}

		out = append(out, scanEntry{
			specID: e.Name(),
			plan:   plan,
			title:  e.Name(),
			desc:   readOverview(dir),
		})
	}
	return out
}
