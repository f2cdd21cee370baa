// Package checks defines the closed set of profile checks and their
// statuses. Both sets are fixed: deserialization rejects unknown names so a
// corrupted queue document fails loudly instead of half-loading.
package checks

import "fmt"

// Check names one verification performed against a Steam profile.
type Check string

const (
	AnimatedAvatar        Check = "animated_avatar"
	AvatarFrame           Check = "avatar_frame"
	MiniProfileBackground Check = "mini_profile_background"
	ProfileBackground     Check = "profile_background"
	SteamLevel            Check = "steam_level"
	Friends               Check = "friends"
	CSGOInventory         Check = "csgo_inventory"
)

// allChecks is the display order. Semantically the set is unordered; every
// profile carries exactly these keys.
var allChecks = []Check{
	AnimatedAvatar,
	AvatarFrame,
	MiniProfileBackground,
	ProfileBackground,
	SteamLevel,
	Friends,
	CSGOInventory,
}

// All returns every check in display order. The caller must not mutate the
// returned slice.
func All() []Check {
	return allChecks
}

// Count is the size of the check set.
func Count() int {
	return len(allChecks)
}

// Valid reports whether c is a known check name.
func (c Check) Valid() bool {
	switch c {
	case AnimatedAvatar, AvatarFrame, MiniProfileBackground, ProfileBackground,
		SteamLevel, Friends, CSGOInventory:
		return true
	}
	return false
}

// UnmarshalText validates check names on load, including map keys in a
// profile's checks object.
func (c *Check) UnmarshalText(text []byte) error {
	v := Check(text)
	if !v.Valid() {
		return fmt.Errorf("unknown check name %q", string(text))
	}
	*c = v
	return nil
}

// Status is the state of a single check.
type Status string

const (
	// StatusToCheck marks outstanding work. Every check starts here.
	StatusToCheck Status = "to_check"
	// StatusPassed is terminal success.
	StatusPassed Status = "passed"
	// StatusFailed is terminal failure.
	StatusFailed Status = "failed"
	// StatusDeferred marks work postponed by an endpoint cooldown. It is
	// equivalent to StatusToCheck but flagged so the coordinator can
	// deprioritize it and sweep it back later.
	StatusDeferred Status = "deferred"
)

// AllStatuses returns the four statuses in display order.
func AllStatuses() []Status {
	return []Status{StatusToCheck, StatusPassed, StatusFailed, StatusDeferred}
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusToCheck, StatusPassed, StatusFailed, StatusDeferred:
		return true
	}
	return false
}

// Terminal reports whether s is a final outcome.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// UnmarshalText validates statuses on load.
func (s *Status) UnmarshalText(text []byte) error {
	v := Status(text)
	if !v.Valid() {
		return fmt.Errorf("unknown check status %q", string(text))
	}
	*s = v
	return nil
}
