// Package storage confines file operations to configured directories.
// Logo and guide filenames can derive from remote catalog data, so
// every path is resolved against a sandbox root before touching disk.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox roots all file operations at a base directory and rejects
// paths that would resolve outside it.
type Sandbox struct {
	baseDir string
}

// NewSandbox creates the base directory if needed and returns a
// sandbox rooted there.
func NewSandbox(baseDir string) (*Sandbox, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &Sandbox{baseDir: abs}, nil
}

// BaseDir returns the absolute sandbox root.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// ResolvePath maps a relative path to an absolute one under the root.
// Absolute inputs and paths that climb out via ".." are rejected.
func (s *Sandbox) ResolvePath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path escapes sandbox: %s (absolute paths not allowed)", rel)
	}

	abs, err := filepath.Abs(filepath.Join(s.baseDir, filepath.Clean(rel)))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if abs != s.baseDir && !strings.HasPrefix(abs, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes sandbox: %s", rel)
	}
	return abs, nil
}

// Exists reports whether the path exists inside the sandbox.
func (s *Sandbox) Exists(rel string) (bool, error) {
	path, err := s.ResolvePath(rel)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking path: %w", err)
	}
	return true, nil
}

// MkdirAll creates the directory and any missing parents.
func (s *Sandbox) MkdirAll(rel string) error {
	path, err := s.ResolvePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// WriteFile writes data, creating parent directories as needed.
func (s *Sandbox) WriteFile(rel string, data []byte) error {
	path, err := s.ResolvePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// ReadFile reads a file from inside the sandbox.
func (s *Sandbox) ReadFile(rel string) ([]byte, error) {
	path, err := s.ResolvePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Remove removes a file or empty directory.
func (s *Sandbox) Remove(rel string) error {
	path, err := s.ResolvePath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// AtomicWrite writes through a temp file and renames it into place, so
// readers never observe a partially written file.
func (s *Sandbox) AtomicWrite(rel string, data []byte) error {
	target, err := s.ResolvePath(rel)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(rel), randomHex(8)))
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming to target: %w", err)
	}
	return nil
}

func randomHex(n int) string {
	buf := make([]byte, n/2+1)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(buf)[:n]
}
