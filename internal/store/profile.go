package store

import (
	"fmt"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
)

// DefaultUsername replaces a missing or blank username on insert.
const DefaultUsername = "Professor"

// Profile is the unit of tracked work: one claimed steam id and the status
// of every check against it.
type Profile struct {
	SteamID   string                         `json:"steam_id"`
	Username  string                         `json:"username"`
	Timestamp int64                          `json:"timestamp"` // epoch ms, set at insertion
	Checks    map[checks.Check]checks.Status `json:"checks"`
}

// HasStatus reports whether any check currently carries st.
func (p *Profile) HasStatus(st checks.Status) bool {
	for _, s := range p.Checks {
		if s == st {
			return true
		}
	}
	return false
}

// CountStatus returns how many checks currently carry st.
func (p *Profile) CountStatus(st checks.Status) int {
	n := 0
	for _, s := range p.Checks {
		if s == st {
			n++
		}
	}
	return n
}

// completion computes the terminal summary for the profile.
func (p *Profile) completion() Completion {
	c := Completion{AllComplete: true, AllPassed: true}
	for _, name := range checks.All() {
		st := p.Checks[name]
		if !st.Terminal() {
			c.AllComplete = false
		}
		if st != checks.StatusPassed {
			c.AllPassed = false
		}
	}
	return c
}

// validate enforces the closed-set invariant: exactly the known check names,
// each with a known status. Unknown names and statuses are already rejected
// during unmarshaling; this catches missing and extra keys.
func (p *Profile) validate() error {
	if p.SteamID == "" {
		return fmt.Errorf("profile with empty steam_id")
	}
	if len(p.Checks) != checks.Count() {
		return fmt.Errorf("profile %s has %d checks, want %d", p.SteamID, len(p.Checks), checks.Count())
	}
	for _, name := range checks.All() {
		if _, ok := p.Checks[name]; !ok {
			return fmt.Errorf("profile %s missing check %q", p.SteamID, name)
		}
	}
	return nil
}

// newCheckSet returns the full check set, every entry initialized to
// to_check.
func newCheckSet() map[checks.Check]checks.Status {
	m := make(map[checks.Check]checks.Status, checks.Count())
	for _, name := range checks.All() {
		m[name] = checks.StatusToCheck
	}
	return m
}

// Completion summarizes whether a profile is finished.
type Completion struct {
	AllComplete bool // every check is passed or failed
	AllPassed   bool // every check is passed
}

// Stats is an aggregate view of the local queue.
type Stats struct {
	TotalProfiles int
	ByUsername    map[string]int
	ByStatus      map[checks.Status]int
}

// DeferredStats counts deferred work across the queue.
type DeferredStats struct {
	TotalDeferred        int
	ProfilesWithDeferred int
	TotalProfiles        int
}

// DeferredCheck identifies one deferred check on one profile.
type DeferredCheck struct {
	SteamID string
	Check   checks.Check
}

// AddOutcome reports how AddProfile disposed of an insert.
type AddOutcome int

const (
	// Added means a new profile was inserted and persisted.
	Added AddOutcome = iota
	// AlreadyPresent means the steam id was already tracked; the existing
	// profile is returned unchanged.
	AlreadyPresent
	// Suppressed means the existence probe found the id downstream and the
	// insert was skipped.
	Suppressed
)

func (o AddOutcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	case Suppressed:
		return "suppressed"
	}
	return fmt.Sprintf("AddOutcome(%d)", int(o))
}
