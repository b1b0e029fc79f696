// Package framework installs and updates a project's agent framework
// directory: the bundled bin/ executables and supporting files the
// orchestrator's agent-kind invocations run against.
package framework

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// excludedNames are skipped when walking a framework source tree for
// both copying and hashing: version control metadata, caches, and the
// project's own spec directory (owned by the task lifecycle, never
// part of the framework's identity).
var excludedNames = map[string]bool{
	".git":      true,
	"specs":     true,
	".DS_Store": true,
	"cache":     true,
	".cache":    true,
}

func excluded(name string) bool {
	return excludedNames[name]
}

// contentHash computes a hash of dir's contents that is stable
// regardless of filesystem iteration order: files are visited in
// sorted relative-path order, and each entry's path, mode, and content
// are folded into the digest.
func contentHash(dir string) (string, error) {
	var paths []string
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excluded(d.Name()) && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	}); err != nil {
		return "", err
	}

	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return "", err
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}

		io.WriteString(h, filepath.ToSlash(rel))
		io.WriteString(h, info.Mode().String())

		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
