package out

import "context"

// ResolverStore reads and writes the host resolver file and its backup.
type ResolverStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Exists(ctx context.Context) (bool, error)
	BackupExists(ctx context.Context) (bool, error)
	// Backup copies the current resolver file to the backup location.
	Backup(ctx context.Context) error
	// Restore copies the backup over the resolver file.
	Restore(ctx context.Context) error
}

// PortReleaser frees the DNS port from host services that hold it.
type PortReleaser interface {
	Release(ctx context.Context) error
}
