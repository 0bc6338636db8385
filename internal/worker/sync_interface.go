package worker

import "context"

// SyncRunner defines the interface for running a sync cycle for one user.
// This avoids import cycles by not importing the coordinator package.
type SyncRunner interface {
	RunSync(ctx context.Context, ownerID string) error
}
