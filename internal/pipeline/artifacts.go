package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const runDirPrefix = "revoice-"

// files allocated for one run, all inside a private directory
type artifacts struct {
	runID  string
	dir    string
	paths  []string
	remove func(string) error
}

func newArtifacts(workDir string) (*artifacts, error) {
	id := uuid.NewString()
	dir := filepath.Join(workDir, runDirPrefix+id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &artifacts{runID: id, dir: dir, remove: os.Remove}, nil
}

// reserves a path in the run directory and records it for cleanup
func (a *artifacts) path(name string) string {
	p := filepath.Join(a.dir, name)
	a.paths = append(a.paths, p)
	return p
}

// copies r into a recorded artifact
func (a *artifacts) materialize(name string, r io.Reader) (string, error) {
	p := a.path(name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("source stream was empty")
	}
	return p, nil
}

// removes every recorded artifact, then anything else stages left in the
// run directory, then the directory; failures are collected, not returned
func (a *artifacts) cleanup() []CleanupWarning {
	var warnings []CleanupWarning

	for _, p := range a.paths {
		if err := a.remove(p); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, CleanupWarning{Path: p, Err: err})
		}
	}

	if entries, err := os.ReadDir(a.dir); err == nil {
		for _, e := range entries {
			p := filepath.Join(a.dir, e.Name())
			if err := os.RemoveAll(p); err != nil {
				warnings = append(warnings, CleanupWarning{Path: p, Err: err})
			}
		}
	}

	if err := a.remove(a.dir); err != nil && !os.IsNotExist(err) {
		warnings = append(warnings, CleanupWarning{Path: a.dir, Err: err})
	}

	return warnings
}
