// Package coordinator drives the worker loop: pull the next processable
// profile from the check store, execute its pending checks, record the
// outcomes, and keep the local queue fed from the shared queue service
// while the cooldown controller says the upstream is usable.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"
	"github.com/lthibault/jitterbug"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/queueclient"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/store"
)

// Defaults for the run loop cadence.
const (
	DefaultPollInterval  = 5 * time.Second
	DefaultSweepInterval = 5 * time.Minute
	DefaultClaimBatch    = 5
)

// CheckRunner executes a single profile check. EndpointURL reports the
// request URL for a check so errors can be attributed to the right
// endpoint.
type CheckRunner interface {
	EndpointURL(check checks.Check, steamID string) string
	RunCheck(ctx context.Context, check checks.Check, steamID string) (bool, error)
}

// QueueService is the slice of the queue client the coordinator drives
// directly. Completion goes through the store's completer instead.
type QueueService interface {
	ClaimItems(ctx context.Context, count int) []queueclient.QueueItem
	ReleaseItems(ctx context.Context, ids []string) bool
	ReleaseInstance(ctx context.Context) int
}

// Config assembles a Coordinator. Store, Cooldowns, and Runner are
// required; Queue and Probe are optional and leave the worker draining
// only its local queue when absent.
type Config struct {
	Store     *store.Store
	Cooldowns *cooldown.Controller
	Runner    CheckRunner
	Queue     QueueService
	Probe     store.ExistenceProbe
	Logger    *log.Logger

	// Clock overrides the time source used for sweep scheduling.
	Clock clockwork.Clock

	PollInterval  time.Duration
	SweepInterval time.Duration
	ClaimBatch    int

	// LockPath guards the state directory against a second worker.
	// PIDPath, when set, records the running process id.
	LockPath string
	PIDPath  string
}

// Coordinator is the single driver. All store and cooldown mutations
// funnel through it.
type Coordinator struct {
	store     *store.Store
	cooldowns *cooldown.Controller
	runner    CheckRunner
	queue     QueueService
	probe     store.ExistenceProbe
	logger    *log.Logger
	metrics   *coordinatorMetrics
	clock     clockwork.Clock

	pollInterval  time.Duration
	sweepInterval time.Duration
	claimBatch    int
	lockPath      string
	pidPath       string
}

// New validates cfg and builds a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("coordinator needs a store")
	}
	if cfg.Cooldowns == nil {
		return nil, fmt.Errorf("coordinator needs a cooldown controller")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("coordinator needs a check runner")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	metrics, err := newCoordinatorMetrics()
	if err != nil {
		logger.Printf("Warning: metrics disabled: %v", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &Coordinator{
		store:         cfg.Store,
		cooldowns:     cfg.Cooldowns,
		runner:        cfg.Runner,
		queue:         cfg.Queue,
		probe:         cfg.Probe,
		logger:        logger,
		metrics:       metrics,
		clock:         clock,
		pollInterval:  cfg.PollInterval,
		sweepInterval: cfg.SweepInterval,
		claimBatch:    cfg.ClaimBatch,
		lockPath:      cfg.LockPath,
		pidPath:       cfg.PIDPath,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.sweepInterval <= 0 {
		c.sweepInterval = DefaultSweepInterval
	}
	if c.claimBatch <= 0 {
		c.claimBatch = DefaultClaimBatch
	}
	return c, nil
}

// Run executes the worker loop until ctx is canceled. It holds the state
// directory lock for its whole lifetime so two workers never share a
// store.
func (c *Coordinator) Run(ctx context.Context) error {
	release, err := c.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	c.Startup(ctx)

	ticker := jitterbug.New(c.pollInterval, &jitterbug.Norm{Stdev: c.pollInterval / 10})
	defer ticker.Stop()

	c.logger.Printf("Worker running (poll %v, sweep %v)", c.pollInterval, c.sweepInterval)

	nextSweep := c.clock.Now().Add(c.sweepInterval)
	for {
		if !c.clock.Now().Before(nextSweep) {
			c.Sweep()
			nextSweep = c.clock.Now().Add(c.sweepInterval)
		}

		if c.Cycle(ctx) {
			if ctx.Err() != nil {
				c.logger.Println("Context canceled, shutting down")
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Println("Context canceled, shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce takes the lock, releases orphaned claims, and executes a
// single cycle.
func (c *Coordinator) RunOnce(ctx context.Context) error {
	release, err := c.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	c.Startup(ctx)
	if c.Cycle(ctx) {
		c.logger.Println("Cycle completed")
	} else {
		c.logger.Println("Nothing to do")
	}
	return nil
}

// acquireLock takes the state directory lock and writes the PID file.
// The returned func releases both.
func (c *Coordinator) acquireLock() (func(), error) {
	release := func() {}
	if c.lockPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.lockPath), 0755); err != nil {
			return nil, fmt.Errorf("creating lock directory: %w", err)
		}
		fileLock := flock.New(c.lockPath)
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("another worker is already running (lock held on %s)", c.lockPath)
		}
		release = func() { _ = fileLock.Unlock() }
	}

	if c.pidPath != "" {
		if err := os.WriteFile(c.pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			release()
			return nil, fmt.Errorf("writing PID file: %w", err)
		}
		unlock := release
		release = func() {
			_ = os.Remove(c.pidPath)
			unlock()
		}
	}
	return release, nil
}

// Startup releases claims orphaned by a previous run of this instance.
func (c *Coordinator) Startup(ctx context.Context) {
	if c.queue == nil {
		return
	}
	if released := c.queue.ReleaseInstance(ctx); released > 0 {
		c.logger.Printf("Released %d claims orphaned by a previous run", released)
	}
}

// Cycle performs one unit of work and reports whether it made progress.
// No progress means the local queue has nothing runnable and no new work
// was admitted, so the caller should idle.
func (c *Coordinator) Cycle(ctx context.Context) bool {
	c.metrics.recordCycle(ctx)
	defer c.updateGauges()

	profile := c.store.NextProcessable()
	if profile == nil && c.queue != nil {
		if c.claim(ctx) == 0 {
			return false
		}
		profile = c.store.NextProcessable()
	}
	if profile == nil {
		return false
	}
	return c.processProfile(ctx, profile)
}

// claim refills the local queue from the queue service, honoring the
// health gate. Items the store did not accept are released back one by
// one so other instances can pick them up. Returns the number inserted.
func (c *Coordinator) claim(ctx context.Context) int {
	if !c.store.IsHealthy(c.cooldowns) {
		return 0
	}
	items := c.queue.ClaimItems(ctx, c.claimBatch)
	if len(items) == 0 {
		return 0
	}

	added := 0
	for _, item := range items {
		_, outcome, err := c.store.AddProfile(ctx, item.ID, item.Username, c.probe)
		if err != nil {
			c.logger.Printf("Warning: inserting claimed item %s: %v, releasing", item.ID, err)
			c.queue.ReleaseItems(ctx, []string{item.ID})
			continue
		}
		if outcome != store.Added {
			c.logger.Printf("Claimed item %s not inserted (%s), releasing", item.ID, outcome)
			c.queue.ReleaseItems(ctx, []string{item.ID})
			continue
		}
		added++
	}
	c.metrics.recordClaims(ctx, added)
	c.logger.Printf("Claimed %d items, inserted %d", len(items), added)
	return added
}

// processProfile drives every pending check of one profile and removes it
// once every check is terminal. Returns whether any state changed.
func (c *Coordinator) processProfile(ctx context.Context, profile *store.Profile) bool {
	changed := false
	for _, check := range checks.All() {
		if profile.Checks[check] != checks.StatusToCheck {
			continue
		}
		if c.runCheck(ctx, profile.SteamID, check) {
			changed = true
		}
		if ctx.Err() != nil {
			return changed
		}
	}

	completion, ok := c.store.Completion(profile.SteamID)
	if ok && completion.AllComplete {
		if c.store.RemoveProfile(ctx, profile.SteamID) {
			c.metrics.recordCompleted(ctx)
			c.logger.Printf("Profile %s complete (all passed: %v), removed", profile.SteamID, completion.AllPassed)
			changed = true
		}
	}
	return changed
}

// runCheck executes one check and records its outcome. Cooldown-worthy
// errors defer the check; anything else fails it so the profile still
// reaches a terminal state.
func (c *Coordinator) runCheck(ctx context.Context, steamID string, check checks.Check) bool {
	endpoint := cooldown.EndpointForCheck(check)
	if !c.cooldowns.IsEndpointAvailable(endpoint) {
		c.setStatus(ctx, steamID, check, checks.StatusDeferred)
		return true
	}

	passed, err := c.runner.RunCheck(ctx, check, steamID)
	if err != nil {
		outcome := c.cooldowns.HandleRequestError(err, c.runner.EndpointURL(check, steamID))
		if outcome.CooldownApplied {
			c.metrics.recordCooldown(ctx, outcome.Endpoint, outcome.Reason)
			c.setStatus(ctx, steamID, check, checks.StatusDeferred)
		} else {
			c.logger.Printf("Warning: check %s for %s: %v", check, steamID, err)
			c.setStatus(ctx, steamID, check, checks.StatusFailed)
		}
		return true
	}

	c.cooldowns.ResetOnSuccess(endpoint)
	status := checks.StatusFailed
	if passed {
		status = checks.StatusPassed
	}
	c.setStatus(ctx, steamID, check, status)
	return true
}

func (c *Coordinator) setStatus(ctx context.Context, steamID string, check checks.Check, status checks.Status) {
	if !c.store.UpdateCheck(steamID, check, status) {
		c.logger.Printf("Warning: recording %s=%s for %s failed", check, status, steamID)
		return
	}
	c.metrics.recordCheck(ctx, check, status)
}

// Sweep converts deferred checks back to pending so they are retried
// after cooldowns expire.
func (c *Coordinator) Sweep() {
	c.cooldowns.CleanupExpired()
	conversions, profiles := c.store.ConvertDeferredToToCheck()
	if conversions > 0 {
		c.logger.Printf("Sweep converted %d deferred checks across %d profiles", conversions, profiles)
	}
}

func (c *Coordinator) updateGauges() {
	stats := c.store.DeferredStats()
	c.metrics.updateQueueDepth(int64(stats.TotalProfiles), int64(stats.TotalDeferred))
}
