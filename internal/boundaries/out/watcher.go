package out

import "context"

// SiteWatcher watches the site list file and publishes sites.changed events.
type SiteWatcher interface {
	// Watch blocks until ctx is cancelled.
	Watch(ctx context.Context, path string) error
}
