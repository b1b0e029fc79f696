package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeman/controlplane/pkg/models"
)

// frameworkDirNames lists the accepted framework directory names, hidden
// form preferred.
var frameworkDirNames = []string{".forge", "forge"}

// DefaultFrameworkResolver locates agent-kind executables under a
// project's installed framework directory's bin/ subdirectory, named
// after the agent kind (e.g. "implementation", "qa").
type DefaultFrameworkResolver struct{}

// Executable returns the path to kind's executable inside project's
// framework directory.
func (DefaultFrameworkResolver) Executable(project *models.Project, kind models.AgentKind) (string, error) {
	if !project.HasFramework() {
		return "", fmt.Errorf("project %s has no framework installed", project.ID)
	}

	path := filepath.Join(project.Dir, project.FrameworkPath, "bin", string(kind))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("locate %s executable: %w", kind, err)
	}
	return path, nil
}

// FindFrameworkDir returns the first accepted framework directory name
// present under projectDir, or "" if neither exists.
func FindFrameworkDir(projectDir string) string {
	for _, name := range frameworkDirNames {
		if info, err := os.Stat(filepath.Join(projectDir, name)); err == nil && info.IsDir() {
			return name
		}
	}
	return ""
}
