// Package cooldown tracks per-endpoint cooldowns for the upstream Steam
// surfaces: exponential backoff for rate limits, fixed pauses for
// connectivity failures, both persisted so a restart resumes where the
// worker left off.
package cooldown

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"
)

// fallbackCooldownMS is applied when a fixed-duration cooldown is requested
// with a reason the configuration does not cover.
const fallbackCooldownMS = 60_000

// Controller answers "is endpoint E usable now?" and records cooldowns.
//
// It keeps two pieces of state with different lifetimes: cooldown records,
// cleared when their deadline passes, and the backoff level table, which
// survives record expiry and is cleared only by an observed success. The
// separation is what makes consecutive 429s keep escalating even when the
// previous cooldown has already lapsed.
type Controller struct {
	path      string
	durations Durations
	sequence  []int
	logger    *log.Logger
	clock     clockwork.Clock

	mu            sync.Mutex
	records       map[Endpoint]*Record
	backoffLevels map[Endpoint]int
}

// New creates a controller persisting to path. backoffMinutes is the 429
// escalation ladder; an empty or non-positive sequence is replaced with
// DefaultBackoffMinutes. State on disk is loaded immediately, including the
// backoff levels of persisted 429 records.
func New(path string, d Durations, backoffMinutes []int, logger *log.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	c := &Controller{
		path:          path,
		durations:     d,
		sequence:      validSequence(backoffMinutes, logger),
		logger:        logger,
		clock:         clockwork.NewRealClock(),
		records:       make(map[Endpoint]*Record),
		backoffLevels: make(map[Endpoint]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loadState()
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the controller's time source.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func validSequence(minutes []int, logger *log.Logger) []int {
	if len(minutes) == 0 {
		return append([]int(nil), DefaultBackoffMinutes...)
	}
	for _, m := range minutes {
		if m < 1 {
			logger.Printf("Warning: invalid backoff sequence %v, using default", minutes)
			return append([]int(nil), DefaultBackoffMinutes...)
		}
	}
	return append([]int(nil), minutes...)
}

// loadState reads the persisted cooldown document. Expired records are kept
// until CleanupExpired prunes them; their backoff levels must survive the
// downtime either way.
func (c *Controller) loadState() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Printf("Warning: reading cooldown file %s: %v (starting clean)", c.path, err)
		}
		return
	}
	var f cooldownFile
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Printf("Warning: parsing cooldown file %s: %v (starting clean)", c.path, err)
		return
	}
	for endpoint, rec := range f.EndpointCooldowns {
		if rec == nil {
			continue
		}
		c.records[endpoint] = rec
		if rec.Reason == ReasonRateLimited && rec.BackoffLevel != nil {
			c.backoffLevels[endpoint] = clampLevel(*rec.BackoffLevel, len(c.sequence))
		}
	}
}

func clampLevel(level, sequenceLen int) int {
	if level < 0 {
		return 0
	}
	if level > sequenceLen-1 {
		return sequenceLen - 1
	}
	return level
}

// saveState writes the cooldown document. Callers log failures and carry on
// with the in-memory state; a broken disk must not stop cooldown tracking.
func (c *Controller) saveState() error {
	f := cooldownFile{EndpointCooldowns: c.records}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cooldown state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("writing cooldown file: %w", err)
	}
	return nil
}

// IsEndpointAvailable reports whether e has no active cooldown.
func (c *Controller) IsEndpointAvailable(e Endpoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[e]
	return !ok || rec.Expired(c.clock.Now())
}

// AnyAvailable reports whether at least one endpoint is usable. It
// satisfies the store's AvailabilityReporter.
func (c *Controller) AnyAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	for _, endpoint := range AllEndpoints() {
		rec, ok := c.records[endpoint]
		if !ok || rec.Expired(now) {
			return true
		}
	}
	return false
}

// MarkCooldown records a cooldown for e. A 429 escalates the endpoint's
// backoff level (clamped to the top of the sequence) and cools down for
// the level's minute count; any other reason applies its configured fixed
// duration, or fallbackCooldownMS when the reason is unknown.
func (c *Controller) MarkCooldown(e Endpoint, errorType Reason, errorMessage string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if errorType == ReasonRateLimited {
		level := -1
		if cur, ok := c.backoffLevels[e]; ok {
			level = cur
		}
		newLevel := clampLevel(level+1, len(c.sequence))
		minutes := c.sequence[newLevel]
		c.backoffLevels[e] = newLevel
		lvl := newLevel
		c.records[e] = &Record{
			CooldownUntil:   now.UnixMilli() + int64(minutes)*60_000,
			Reason:          ReasonRateLimited,
			BackoffLevel:    &lvl,
			DurationMinutes: minutes,
			AppliedAt:       now.UnixMilli(),
			ErrorMessage:    sanitizeMessage(errorMessage),
		}
		c.logger.Printf("Rate limited on %s: backoff level %d, cooling down %d min", e, newLevel, minutes)
	} else {
		durationMS := c.fixedDuration(errorType)
		c.records[e] = &Record{
			CooldownUntil: now.UnixMilli() + durationMS,
			Reason:        errorType,
			DurationUsed:  durationMS,
			AppliedAt:     now.UnixMilli(),
			ErrorMessage:  sanitizeMessage(errorMessage),
		}
		c.logger.Printf("%s on %s: cooling down %d ms", errorType, e, durationMS)
	}
	if err := c.saveState(); err != nil {
		c.logger.Printf("Warning: %v (cooldown active in memory only)", err)
	}
}

func (c *Controller) fixedDuration(errorType Reason) int64 {
	switch errorType {
	case ReasonConnectionError:
		return c.durations.ConnectionReset
	case ReasonTimeout:
		return c.durations.Timeout
	case ReasonDNSFailure:
		return c.durations.DNSFailure
	}
	return fallbackCooldownMS
}

// ResetOnSuccess clears e's backoff level and, when the active cooldown is
// a 429, the cooldown record itself. Connectivity cooldowns stay until they
// expire; a single good request does not prove the network problem gone.
func (c *Controller) ResetOnSuccess(e Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, hadLevel := c.backoffLevels[e]
	delete(c.backoffLevels, e)

	if rec, ok := c.records[e]; ok && rec.Reason == ReasonRateLimited {
		delete(c.records, e)
		if err := c.saveState(); err != nil {
			c.logger.Printf("Warning: %v", err)
		}
		c.logger.Printf("Success on %s: cleared 429 cooldown and backoff level", e)
		return
	}
	if hadLevel {
		c.logger.Printf("Success on %s: cleared backoff level", e)
	}
}

// HandleRequestError classifies err, marks the appropriate cooldown on the
// endpoint extracted from requestURL, and reports what it did. Errors that
// are not cooldown-worthy are left to the caller.
func (c *Controller) HandleRequestError(err error, requestURL string) Outcome {
	endpoint := EndpointForURL(requestURL)
	reason := Classify(err)
	if reason == "" {
		return Outcome{Endpoint: endpoint}
	}
	c.MarkCooldown(endpoint, reason, err.Error())
	return Outcome{Endpoint: endpoint, Reason: reason, CooldownApplied: true}
}

// CleanupExpired removes every record whose deadline has passed, persisting
// once if anything went. Backoff levels are deliberately left alone: they
// are cleared by success, not by the passage of time.
func (c *Controller) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupExpiredLocked()
}

func (c *Controller) cleanupExpiredLocked() int {
	now := c.clock.Now()
	removed := 0
	for endpoint, rec := range c.records {
		if rec.Expired(now) {
			delete(c.records, endpoint)
			removed++
		}
	}
	if removed > 0 {
		if err := c.saveState(); err != nil {
			c.logger.Printf("Warning: %v", err)
		}
	}
	return removed
}

// ConnectionStatus prunes expired cooldowns and reports the availability of
// every endpoint plus a summary for health gating and display.
func (c *Controller) ConnectionStatus() StatusReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupExpiredLocked()
	now := c.clock.Now().UnixMilli()

	report := StatusReport{
		Connections: make(map[Endpoint]EndpointStatus, len(AllEndpoints())),
	}
	var nextIn int64 = -1
	for _, endpoint := range AllEndpoints() {
		rec, ok := c.records[endpoint]
		if !ok {
			report.Connections[endpoint] = EndpointStatus{Available: true}
			report.Summary.AvailableConnections++
			continue
		}
		remaining := rec.CooldownUntil - now
		report.Connections[endpoint] = EndpointStatus{
			Reason:      rec.Reason,
			RemainingMS: remaining,
			Until:       rec.CooldownUntil,
		}
		if nextIn < 0 || remaining < nextIn {
			nextIn = remaining
		}
	}
	report.Summary.TotalConnections = len(AllEndpoints())
	if report.Summary.AvailableConnections > 0 || nextIn < 0 {
		nextIn = 0
	}
	report.Summary.NextAvailableInMS = nextIn
	return report
}

// BackoffLevel returns the remembered 429 level for e, or -1 when none is
// recorded. Exposed for inspection surfaces.
func (c *Controller) BackoffLevel(e Endpoint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level, ok := c.backoffLevels[e]; ok {
		return level
	}
	return -1
}

// Sequence returns a copy of the active backoff ladder in minutes.
func (c *Controller) Sequence() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.sequence...)
}
