// Package store provides the persistent local queue of profiles under
// check. Profiles are kept in a single JSON array on disk; the store is
// stateless between calls, so every operation reads the document, applies
// its change, and writes the document back before returning. Deleting the
// file resets the local queue.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
)

// ExistenceProbe asks a downstream service whether steamID is already known.
// A non-nil error means the probe could not answer; AddProfile inserts
// anyway in that case.
type ExistenceProbe func(ctx context.Context, steamID string) (exists bool, err error)

// QueueCompleter acknowledges finished items to the shared queue service.
// The store holds it as a one-way dependency so RemoveProfile can complete
// items; failures are logged, never propagated.
type QueueCompleter interface {
	CompleteItems(ctx context.Context, ids []string) bool
}

// AvailabilityReporter answers whether any upstream endpoint is usable.
// The cooldown controller implements it.
type AvailabilityReporter interface {
	AnyAvailable() bool
}

// Store is the local queue. One Store instance must be the only writer of
// its file path.
type Store struct {
	path      string
	logger    *log.Logger
	completer QueueCompleter
	clock     clockwork.Clock
	mu        sync.Mutex
}

// New creates a store over the JSON document at path. completer may be nil
// when no queue service is configured; logger may be nil for stderr.
func New(path string, logger *log.Logger, completer QueueCompleter) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Store{
		path:      path,
		logger:    logger,
		completer: completer,
		clock:     clockwork.NewRealClock(),
	}
}

// load reads the queue document. An absent file is an empty queue; malformed
// content is logged and treated as empty rather than wedging the worker.
func (s *Store) load() []*Profile {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("Warning: reading queue file %s: %v (treating as empty)", s.path, err)
		}
		return nil
	}
	var profiles []*Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		s.logger.Printf("Warning: parsing queue file %s: %v (treating as empty)", s.path, err)
		return nil
	}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			s.logger.Printf("Warning: queue file %s: %v (treating as empty)", s.path, err)
			return nil
		}
	}
	return profiles
}

// save writes the full queue document, pretty-printed, via temp file and
// rename so a crash never leaves a half-written queue behind.
func (s *Store) save(profiles []*Profile) error {
	if profiles == nil {
		profiles = []*Profile{}
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling queue: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing queue file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}

// AddProfile inserts a new profile for steamID with every check set to
// to_check. If the id is already tracked, the existing profile is returned
// with AlreadyPresent. If probe is non-nil and reports the id exists
// downstream, the insert is suppressed; a probe failure is logged and the
// insert proceeds. The returned error is non-nil only when persisting the
// insert failed, so the caller can release the claim.
func (s *Store) AddProfile(ctx context.Context, steamID, username string, probe ExistenceProbe) (*Profile, AddOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.load()
	for _, p := range profiles {
		if p.SteamID == steamID {
			return p, AlreadyPresent, nil
		}
	}

	if probe != nil {
		exists, err := probe(ctx, steamID)
		if err != nil {
			s.logger.Printf("Warning: existence probe for %s failed, adding anyway: %v", steamID, err)
		} else if exists {
			return nil, Suppressed, nil
		}
	}

	if strings.TrimSpace(username) == "" {
		username = DefaultUsername
	}
	p := &Profile{
		SteamID:   steamID,
		Username:  username,
		Timestamp: s.clock.Now().UnixMilli(),
		Checks:    newCheckSet(),
	}
	profiles = append(profiles, p)
	if err := s.save(profiles); err != nil {
		return nil, Added, fmt.Errorf("adding profile %s: %w", steamID, err)
	}
	return p, Added, nil
}

// UpdateCheck writes a new status for one check. Returns false, with a
// logged warning, when the status is unknown, the profile or check is not
// found, or the write fails.
func (s *Store) UpdateCheck(steamID string, check checks.Check, status checks.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !status.Valid() {
		s.logger.Printf("Warning: invalid status %q for %s/%s", status, steamID, check)
		return false
	}
	profiles := s.load()
	p := findProfile(profiles, steamID)
	if p == nil {
		s.logger.Printf("Warning: profile %s not found for check update", steamID)
		return false
	}
	if _, ok := p.Checks[check]; !ok {
		s.logger.Printf("Warning: unknown check %q on profile %s", check, steamID)
		return false
	}
	p.Checks[check] = status
	if err := s.save(profiles); err != nil {
		s.logger.Printf("Warning: persisting %s/%s update: %v", steamID, check, err)
		return false
	}
	return true
}

// RemoveProfile deletes the profile and, when a completer is wired,
// acknowledges the id to the queue service. Queue service failures are
// logged; the removal stands.
func (s *Store) RemoveProfile(ctx context.Context, steamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.load()
	idx := -1
	for i, p := range profiles {
		if p.SteamID == steamID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.logger.Printf("Warning: profile %s not found for removal", steamID)
		return false
	}
	profiles = append(profiles[:idx], profiles[idx+1:]...)
	if err := s.save(profiles); err != nil {
		s.logger.Printf("Warning: persisting removal of %s: %v", steamID, err)
		return false
	}
	if s.completer != nil {
		if !s.completer.CompleteItems(ctx, []string{steamID}) {
			s.logger.Printf("Warning: completing %s on queue service failed", steamID)
		}
	}
	return true
}

// NextProcessable selects the next profile the coordinator should handle,
// in insertion order: first any profile with outstanding to_check work,
// then any fully-terminal profile (so the coordinator can remove it). A
// second pass returns the first profile stuck with deferred checks. Nil
// when the queue is empty or nothing qualifies.
func (s *Store) NextProcessable() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.load()
	for _, p := range profiles {
		if p.HasStatus(checks.StatusToCheck) {
			return p
		}
		if !p.HasStatus(checks.StatusDeferred) {
			// Every check terminal: hand it back for removal.
			return p
		}
	}
	for _, p := range profiles {
		if p.HasStatus(checks.StatusDeferred) {
			return p
		}
	}
	return nil
}

// Profile returns the tracked profile for steamID, or nil.
func (s *Store) Profile(steamID string) *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findProfile(s.load(), steamID)
}

// All returns every tracked profile in insertion order.
func (s *Store) All() []*Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// ConvertDeferredToToCheck rewrites every deferred check back to to_check,
// persisting once. Returns the number of converted checks and of profiles
// touched.
func (s *Store) ConvertDeferredToToCheck() (conversions, profilesAffected int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.load()
	for _, p := range profiles {
		n := 0
		for _, name := range checks.All() {
			if p.Checks[name] == checks.StatusDeferred {
				p.Checks[name] = checks.StatusToCheck
				n++
			}
		}
		if n > 0 {
			conversions += n
			profilesAffected++
		}
	}
	if conversions == 0 {
		return 0, 0
	}
	if err := s.save(profiles); err != nil {
		s.logger.Printf("Warning: persisting deferred sweep: %v", err)
		return 0, 0
	}
	return conversions, profilesAffected
}

// Stats aggregates the queue by username and status. ByStatus always
// carries all four status keys.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.load()
	st := Stats{
		TotalProfiles: len(profiles),
		ByUsername:    make(map[string]int),
		ByStatus:      make(map[checks.Status]int, 4),
	}
	for _, status := range checks.AllStatuses() {
		st.ByStatus[status] = 0
	}
	for _, p := range profiles {
		st.ByUsername[p.Username]++
		for _, name := range checks.All() {
			st.ByStatus[p.Checks[name]]++
		}
	}
	return st
}

// DeferredStats counts deferred checks across the queue.
func (s *Store) DeferredStats() DeferredStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := s.load()
	ds := DeferredStats{TotalProfiles: len(profiles)}
	for _, p := range profiles {
		if n := p.CountStatus(checks.StatusDeferred); n > 0 {
			ds.TotalDeferred += n
			ds.ProfilesWithDeferred++
		}
	}
	return ds
}

// DeferredChecks lists every deferred check, profiles in insertion order,
// checks in display order.
func (s *Store) DeferredChecks() []DeferredCheck {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []DeferredCheck
	for _, p := range s.load() {
		for _, name := range checks.All() {
			if p.Checks[name] == checks.StatusDeferred {
				out = append(out, DeferredCheck{SteamID: p.SteamID, Check: name})
			}
		}
	}
	return out
}

// Completion reports whether every check on the profile is terminal and
// whether all passed. The second return is false when the profile is not
// tracked.
func (s *Store) Completion(steamID string) (Completion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := findProfile(s.load(), steamID)
	if p == nil {
		s.logger.Printf("Warning: profile %s not found for completion check", steamID)
		return Completion{}, false
	}
	return p.completion(), true
}

// IsHealthy gates claiming: the worker may take new items only when no
// tracked profile has deferred work and, when avail is non-nil, at least
// one upstream endpoint is usable. Reads the document directly on the
// calling goroutine.
func (s *Store) IsHealthy(avail AvailabilityReporter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.load() {
		if p.HasStatus(checks.StatusDeferred) {
			return false
		}
	}
	if avail != nil && !avail.AnyAvailable() {
		return false
	}
	return true
}

func findProfile(profiles []*Profile, steamID string) *Profile {
	for _, p := range profiles {
		if p.SteamID == steamID {
			return p
		}
	}
	return nil
}
