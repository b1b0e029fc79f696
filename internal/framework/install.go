package framework

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/forgeman/controlplane/pkg/models"
)

// DirName is the framework directory's preferred (hidden) name for new
// installs. FindDirName also recognizes the plain form.
const DirName = ".forge"

// versionFileName is the metadata file written inside the installed
// framework directory.
const versionFileName = ".version.json"

// envExampleName and envFileName are the environment file seeded on
// first install and left untouched on update.
const (
	envExampleName = ".env.example"
	envFileName    = ".env"
)

// FindDirName returns the accepted framework directory name already
// present under projectDir (hidden form preferred), or "" if neither
// exists.
func FindDirName(projectDir string) string {
	for _, name := range []string{".forge", "forge"} {
		if info, err := os.Stat(filepath.Join(projectDir, name)); err == nil && info.IsDir() {
			return name
		}
	}
	return ""
}

// Install copies bundledDir into projectDir/DirName, seeds a specs
// subdirectory and a .env file from the bundle's .env.example, and
// writes version metadata. Fails if a framework directory already
// exists under projectDir.
func Install(bundledDir, projectDir, version string) (*models.FrameworkVersionFile, error) {
	if existing := FindDirName(projectDir); existing != "" {
		return nil, fmt.Errorf("framework already installed at %s", filepath.Join(projectDir, existing))
	}

	dest := filepath.Join(projectDir, DirName)
	if err := copyTree(bundledDir, dest); err != nil {
		return nil, fmt.Errorf("copy framework: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dest, "specs"), 0o755); err != nil {
		return nil, fmt.Errorf("seed specs directory: %w", err)
	}

	if err := seedEnvFile(dest); err != nil {
		return nil, fmt.Errorf("seed environment file: %w", err)
	}

	hash, err := contentHash(bundledDir)
	if err != nil {
		return nil, fmt.Errorf("hash framework source: %w", err)
	}

	now := time.Now()
	meta := &models.FrameworkVersionFile{
		Version:     version,
		ContentHash: hash,
		Source:      bundledDir,
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if err := writeVersionFile(dest, meta); err != nil {
		return nil, fmt.Errorf("write version metadata: %w", err)
	}

	return meta, nil
}

// Update re-copies bundledDir over the project's existing framework
// directory, preserving its specs subdirectory and .env file, and
// recomputes the recorded content hash.
func Update(bundledDir, projectDir, version string) (*models.FrameworkVersionFile, error) {
	existing := FindDirName(projectDir)
	if existing == "" {
		return nil, fmt.Errorf("no framework installed at %s", projectDir)
	}
	dest := filepath.Join(projectDir, existing)

	meta, err := readVersionFile(dest)
	if err != nil {
		return nil, fmt.Errorf("read existing version metadata: %w", err)
	}

	staging := dest + ".update-staging"
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clear staging directory: %w", err)
	}
	if err := copyTree(bundledDir, staging); err != nil {
		return nil, fmt.Errorf("copy framework: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := preserveAndReplace(dest, staging); err != nil {
		return nil, fmt.Errorf("replace framework: %w", err)
	}

	hash, err := contentHash(bundledDir)
	if err != nil {
		return nil, fmt.Errorf("hash framework source: %w", err)
	}

	meta.Version = version
	meta.ContentHash = hash
	meta.Source = bundledDir
	meta.UpdatedAt = time.Now()
	if err := writeVersionFile(dest, meta); err != nil {
		return nil, fmt.Errorf("write version metadata: %w", err)
	}

	return meta, nil
}

// preserveAndReplace moves staging's entries into dest, skipping
// specs/ and .env so in-flight tasks and local secrets survive an
// update.
func preserveAndReplace(dest, staging string) error {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Name() == "specs" || e.Name() == envFileName {
			continue
		}

		target := filepath.Join(dest, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(staging, e.Name()), target); err != nil {
			return err
		}
	}
	return nil
}

func seedEnvFile(dest string) error {
	dst := filepath.Join(dest, envFileName)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	src := filepath.Join(dest, envExampleName)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

func writeVersionFile(dest string, meta *models.FrameworkVersionFile) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, versionFileName), data, 0o644)
}

func readVersionFile(dest string) (*models.FrameworkVersionFile, error) {
	data, err := os.ReadFile(filepath.Join(dest, versionFileName))
	if err != nil {
		return nil, err
	}
	var meta models.FrameworkVersionFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// copyTree copies src into dst, skipping excludedNames, preserving
// file modes.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel != "." && excluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode())
		}

		return copyFile(path, target, d)
	})
}

func copyFile(src, dst string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
