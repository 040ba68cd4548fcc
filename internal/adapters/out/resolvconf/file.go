// Package resolvconf manages the host resolver file and its one-time backup.
package resolvconf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/localroute/localroute/internal/adapters/out/command"
	"github.com/localroute/localroute/internal/domain"
	"github.com/localroute/localroute/internal/logging"
)

// Default locations.
const (
	DefaultPath       = "/etc/resolv.conf"
	DefaultBackupPath = "/etc/resolv.conf.backup"
)

// File implements the ResolverStore interface over a resolv.conf style file.
// Writes go through the existing path, so a symlinked resolv.conf keeps its link.
type File struct {
	path       string
	backupPath string
	useSudo    bool
	timeout    time.Duration
	run        command.Runner
}

// Option configures the resolver file adapter.
type Option func(*File)

// WithSudo routes writes through `sudo tee` and `sudo cp`.
func WithSudo(enabled bool) Option {
	return func(f *File) {
		f.useSudo = enabled
	}
}

// WithRunner replaces command execution.
func WithRunner(run command.Runner) Option {
	return func(f *File) {
		f.run = run
	}
}

// New creates a resolver file adapter.
func New(path, backupPath string, opts ...Option) *File {
	if path == "" {
		path = DefaultPath
	}
	if backupPath == "" {
		backupPath = path + ".backup"
	}
	f := &File{
		path:       path,
		backupPath: backupPath,
		timeout:    10 * time.Second,
		run:        command.Exec,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the managed resolver file path.
func (f *File) Path() string {
	return f.path
}

// Read returns the current resolver file content.
func (f *File) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return data, nil
}

// Exists reports whether the resolver file exists.
func (f *File) Exists(_ context.Context) (bool, error) {
	return exists(f.path)
}

// BackupExists reports whether the backup has already been taken.
func (f *File) BackupExists(_ context.Context) (bool, error) {
	return exists(f.backupPath)
}

// Write replaces the resolver file content.
func (f *File) Write(ctx context.Context, data []byte) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "resolvconf",
		logging.FieldAction:  "write",
		logging.FieldPath:    f.path,
	})
	log := logging.FromCtx(ctx)

	if f.useSudo {
		if err := f.sudo(ctx, data, "tee", f.path); err != nil {
			return logging.WrapErr(log, err, "failed to write resolver file")
		}
		return nil
	}

	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return logging.WrapErr(log, err, "failed to write resolver file")
	}
	log.Debug().Msg("resolver file written")
	return nil
}

// Backup copies the resolver file to the backup path.
func (f *File) Backup(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "resolvconf",
		logging.FieldAction:  "backup",
		logging.FieldPath:    f.backupPath,
	})
	log := logging.FromCtx(ctx)

	if err := f.copyFile(ctx, f.path, f.backupPath); err != nil {
		return logging.WrapErr(log, err, "failed to back up resolver file")
	}
	log.Info().Msg("resolver file backed up")
	return nil
}

// Restore copies the backup over the resolver file.
func (f *File) Restore(ctx context.Context) error {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "resolvconf",
		logging.FieldAction:  "restore",
		logging.FieldPath:    f.path,
	})
	log := logging.FromCtx(ctx)

	ok, err := exists(f.backupPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrResolverNoBackup, f.backupPath)
	}

	if err := f.copyFile(ctx, f.backupPath, f.path); err != nil {
		return logging.WrapErr(log, err, "failed to restore resolver file")
	}
	log.Info().Msg("resolver file restored")
	return nil
}

func (f *File) copyFile(ctx context.Context, src, dst string) error {
	if f.useSudo {
		return f.sudo(ctx, nil, "cp", src, dst)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (f *File) sudo(ctx context.Context, stdin []byte, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	bin, argv := command.Sudo(true, name, args...)
	_, err := f.run(ctx, stdin, bin, argv...)
	return err
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
