package out

import "context"

// ConfigStore persists generated configuration files.
type ConfigStore interface {
	// EnsureDir creates the directory if missing and checks it is writable.
	EnsureDir(ctx context.Context, path string) error
	// WriteFile atomically replaces the file content.
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Remove deletes the file. A missing file is a no-op.
	Remove(ctx context.Context, path string) error
}
