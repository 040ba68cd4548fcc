// Package filesystem implements configuration file persistence on the local filesystem.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Store implements the ConfigStore interface. Relative paths resolve against baseDir.
type Store struct {
	baseDir string
}

// NewStore creates a new filesystem store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: expandTilde(baseDir)}
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Resolve returns the absolute location of path.
func (s *Store) Resolve(path string) string {
	path = expandTilde(path)
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// EnsureDir creates the directory and checks that it is writable.
func (s *Store) EnsureDir(ctx context.Context, path string) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "filesystem",
		logging.FieldAction:  "ensure_dir",
		logging.FieldPath:    path,
	})
	log := logging.FromCtx(ctx)

	dir := s.Resolve(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return logging.WrapErr(log, err, "failed to create directory")
	}

	probe, err := os.CreateTemp(dir, ".localroute-write-*")
	if err != nil {
		log.Error().Err(err).Msg("directory not writable")
		return fmt.Errorf("%w: %s: %v", domain.ErrDirNotWritable, path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	log.Debug().Msg("directory ready")
	return nil
}

// WriteFile atomically replaces the file content.
func (s *Store) WriteFile(ctx context.Context, path string, data []byte) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "filesystem",
		logging.FieldAction:  "write_file",
		logging.FieldPath:    path,
	})
	log := logging.FromCtx(ctx)

	target := s.Resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return logging.WrapErr(log, err, "failed to create parent directory")
	}
	if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
		return logging.WrapErr(log, err, "failed to write file")
	}
	if err := os.Chmod(target, 0644); err != nil {
		return logging.WrapErr(log, err, "failed to set file mode")
	}

	log.Debug().Int("bytes", len(data)).Msg("file written")
	return nil
}

// ReadFile returns the file content.
func (s *Store) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.Resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path exists.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.Resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// Remove deletes the file. A missing file is a no-op.
func (s *Store) Remove(ctx context.Context, path string) error {
	log := logging.FromCtx(ctx)

	err := os.Remove(s.Resolve(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	log.Debug().
		Str(logging.FieldLayer, "adapter").
		Str(logging.FieldAdapter, "filesystem").
		Str(logging.FieldPath, path).
		Msg("file removed")
	return nil
}
