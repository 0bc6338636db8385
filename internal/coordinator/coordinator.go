// Package coordinator schedules sync runs: periodic background cycles,
// foreground refreshes, and manual triggers, with single-flight per user.
package coordinator

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/syncer"
	"github.com/vytor/lexideck/internal/worker"
)

// Engine runs one push/pull cycle. Satisfied by *syncer.Engine.
type Engine interface {
	Sync(ctx context.Context, ownerID string) (*syncer.Result, error)
}

// Notifier receives the outcome of every finished run. Implementations must
// not block; they are called from worker goroutines.
type Notifier interface {
	SyncCompleted(ownerID string, result *syncer.Result)
	SyncFailed(ownerID string, err error)
}

// Trigger identifies what requested a sync run.
type Trigger int

const (
	TriggerPeriodic Trigger = iota
	TriggerForeground
	TriggerManual
)

func (t Trigger) String() string {
	switch t {
	case TriggerPeriodic:
		return "periodic"
	case TriggerForeground:
		return "foreground"
	case TriggerManual:
		return "manual"
	default:
		return "unknown"
	}
}

const maxBackoff = 30 * time.Minute

type userState struct {
	running bool
	// pending records a manual trigger that arrived mid-run; the run is
	// repeated once so the trigger is never silently lost.
	pending bool
	// paused is set on an auth failure and cleared by Resume.
	paused      bool
	lastRunDone time.Time
	backoff     time.Duration
	nextAttempt time.Time
}

// Options configures a Coordinator.
type Options struct {
	Interval           time.Duration // periodic cycle, default 5m
	ForegroundThrottle time.Duration // min gap between foreground runs, default 30s
	Workers            int
	QueueSize          int
}

type Coordinator struct {
	engine   Engine
	notifier Notifier
	pool     *worker.Pool
	opts     Options
	log      *logger.Logger

	mu    sync.Mutex
	users map[string]*userState

	cancel context.CancelFunc
}

func New(engine Engine, notifier Notifier, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.ForegroundThrottle <= 0 {
		opts.ForegroundThrottle = 30 * time.Second
	}
	return &Coordinator{
		engine:   engine,
		notifier: notifier,
		pool:     worker.NewPool(opts.Workers, opts.QueueSize),
		opts:     opts,
		log:      logger.Default().WithPrefix("coordinator"),
		users:    make(map[string]*userState),
	}
}

// Start launches the worker pool and the periodic scheduler. Runs until the
// context is cancelled or Shutdown is called.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.pool.Start(ctx)

	go func() {
		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, ownerID := range c.trackedUsers() {
					c.Trigger(ownerID, TriggerPeriodic)
				}
			}
		}
	}()
}

// Shutdown stops the scheduler and waits for in-flight runs to finish.
func (c *Coordinator) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	c.pool.Stop()
}

// Track registers a user for periodic sync. Idempotent.
func (c *Coordinator) Track(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[ownerID]; !ok {
		c.users[ownerID] = &userState{}
	}
}

// Untrack removes the user from periodic scheduling, e.g. on logout. An
// in-flight run finishes but no further runs start.
func (c *Coordinator) Untrack(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, ownerID)
}

// Running reports whether a sync run is currently in flight for the user.
func (c *Coordinator) Running(ownerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.users[ownerID]
	return ok && st.running
}

// Resume clears the auth pause after the user re-authenticates and kicks off
// an immediate run.
func (c *Coordinator) Resume(ownerID string) {
	c.mu.Lock()
	st, ok := c.users[ownerID]
	if ok {
		st.paused = false
		st.backoff = 0
		st.nextAttempt = time.Time{}
	}
	c.mu.Unlock()
	if ok {
		c.Trigger(ownerID, TriggerManual)
	}
}

// Trigger requests a sync run for the user. Returns true if a run was started
// or coalesced into the in-flight run, false if the trigger was suppressed
// (throttled, paused, backing off, or queue full).
func (c *Coordinator) Trigger(ownerID string, trigger Trigger) bool {
	now := time.Now()

	c.mu.Lock()
	st, ok := c.users[ownerID]
	if !ok {
		st = &userState{}
		c.users[ownerID] = st
	}

	if st.running {
		// Single-flight: a manual trigger queues exactly one follow-up run,
		// anything else rides on the run already in progress.
		if trigger == TriggerManual {
			st.pending = true
		}
		c.mu.Unlock()
		return true
	}

	if trigger != TriggerManual {
		if st.paused {
			c.mu.Unlock()
			c.log.Debug("sync paused for %s, %s trigger suppressed", ownerID, trigger)
			return false
		}
		if !st.nextAttempt.IsZero() && now.Before(st.nextAttempt) {
			c.mu.Unlock()
			return false
		}
	}
	if trigger == TriggerForeground && now.Sub(st.lastRunDone) < c.opts.ForegroundThrottle {
		c.mu.Unlock()
		return false
	}

	st.running = true
	c.mu.Unlock()

	if !c.pool.TrySubmit(&worker.SyncUserJob{Runner: c, OwnerID: ownerID}) {
		c.mu.Lock()
		st.running = false
		c.mu.Unlock()
		return false
	}
	c.log.Debug("%s sync queued for %s", trigger, ownerID)
	return true
}

// RunSync executes sync cycles for the user until no manual trigger is
// pending. Called by the worker pool; implements worker.SyncRunner.
func (c *Coordinator) RunSync(ctx context.Context, ownerID string) error {
	var lastErr error
	for {
		result, err := c.engine.Sync(ctx, ownerID)
		lastErr = err
		c.recordOutcome(ownerID, result, err)

		c.mu.Lock()
		st := c.users[ownerID]
		if st == nil || !st.pending || ctx.Err() != nil {
			if st != nil {
				st.running = false
			}
			c.mu.Unlock()
			return lastErr
		}
		st.pending = false
		c.mu.Unlock()
	}
}

func (c *Coordinator) recordOutcome(ownerID string, result *syncer.Result, err error) {
	c.mu.Lock()
	st := c.users[ownerID]
	if st != nil {
		st.lastRunDone = time.Now()
		switch {
		case apperrors.IsCode(err, apperrors.ErrCodeSyncAuth):
			st.paused = true
		case apperrors.IsCode(err, apperrors.ErrCodeSyncNetwork):
			if st.backoff == 0 {
				st.backoff = c.opts.Interval
			} else {
				st.backoff *= 2
			}
			if st.backoff > maxBackoff {
				st.backoff = maxBackoff
			}
			st.nextAttempt = time.Now().Add(st.backoff)
		case err == nil:
			st.backoff = 0
			st.nextAttempt = time.Time{}
		}
	}
	c.mu.Unlock()

	if c.notifier == nil {
		return
	}
	if err != nil {
		c.notifier.SyncFailed(ownerID, err)
		return
	}
	c.notifier.SyncCompleted(ownerID, result)
}

func (c *Coordinator) trackedUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.users))
	for id := range c.users {
		ids = append(ids, id)
	}
	return ids
}
