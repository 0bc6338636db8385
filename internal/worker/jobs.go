package worker

import "context"

// SyncUserJob runs one sync cycle for a single user.
type SyncUserJob struct {
	Runner  SyncRunner
	OwnerID string
}

func (j *SyncUserJob) Name() string { return "sync_user" }

func (j *SyncUserJob) Run(ctx context.Context) error {
	return j.Runner.RunSync(ctx, j.OwnerID)
}
