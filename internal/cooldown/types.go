package cooldown

import (
	"strings"
	"time"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
)

// Endpoint names one rate-limited upstream surface. The named seven map
// one-to-one onto profile checks; "other" catches everything else.
type Endpoint string

const (
	EndpointFriends               Endpoint = "friends"
	EndpointInventory             Endpoint = "inventory"
	EndpointSteamLevel            Endpoint = "steam_level"
	EndpointAnimatedAvatar        Endpoint = "animated_avatar"
	EndpointAvatarFrame           Endpoint = "avatar_frame"
	EndpointMiniProfileBackground Endpoint = "mini_profile_background"
	EndpointProfileBackground     Endpoint = "profile_background"
	EndpointOther                 Endpoint = "other"
)

var allEndpoints = []Endpoint{
	EndpointFriends,
	EndpointInventory,
	EndpointSteamLevel,
	EndpointAnimatedAvatar,
	EndpointAvatarFrame,
	EndpointMiniProfileBackground,
	EndpointProfileBackground,
	EndpointOther,
}

// AllEndpoints returns every endpoint, the named seven first, other last.
// The caller must not mutate the returned slice.
func AllEndpoints() []Endpoint {
	return allEndpoints
}

// EndpointForURL maps an upstream request URL to its endpoint by substring
// probe. The precedence is fixed; first match wins.
func EndpointForURL(url string) Endpoint {
	switch {
	case strings.Contains(url, "GetFriendList"):
		return EndpointFriends
	case strings.Contains(url, "inventory"):
		return EndpointInventory
	case strings.Contains(url, "GetSteamLevel"):
		return EndpointSteamLevel
	case strings.Contains(url, "GetAnimatedAvatar"):
		return EndpointAnimatedAvatar
	case strings.Contains(url, "GetAvatarFrame"):
		return EndpointAvatarFrame
	case strings.Contains(url, "GetMiniProfileBackground"):
		return EndpointMiniProfileBackground
	case strings.Contains(url, "GetProfileBackground"):
		return EndpointProfileBackground
	}
	return EndpointOther
}

// EndpointForCheck maps a profile check to the endpoint its request hits.
func EndpointForCheck(c checks.Check) Endpoint {
	switch c {
	case checks.Friends:
		return EndpointFriends
	case checks.CSGOInventory:
		return EndpointInventory
	case checks.SteamLevel:
		return EndpointSteamLevel
	case checks.AnimatedAvatar:
		return EndpointAnimatedAvatar
	case checks.AvatarFrame:
		return EndpointAvatarFrame
	case checks.MiniProfileBackground:
		return EndpointMiniProfileBackground
	case checks.ProfileBackground:
		return EndpointProfileBackground
	}
	return EndpointOther
}

const (
	defaultRequestTimeout   = 15 * time.Second
	inventoryRequestTimeout = 25 * time.Second
)

// RequestTimeout returns the per-request timeout for an endpoint. The
// community inventory endpoint is slower than the Web API and gets more
// room.
func RequestTimeout(e Endpoint) time.Duration {
	if e == EndpointInventory {
		return inventoryRequestTimeout
	}
	return defaultRequestTimeout
}

// Reason classifies why an endpoint entered cooldown.
type Reason string

const (
	ReasonRateLimited     Reason = "429"
	ReasonConnectionError Reason = "connection_error"
	ReasonTimeout         Reason = "timeout"
	ReasonDNSFailure      Reason = "dns_failure"
)

// Record is one persisted endpoint cooldown. A 429 record carries the
// backoff fields; connectivity records carry the fixed duration that was
// applied.
type Record struct {
	CooldownUntil   int64  `json:"cooldown_until"` // epoch ms deadline
	Reason          Reason `json:"reason"`
	BackoffLevel    *int   `json:"backoff_level,omitempty"`    // 429 only
	DurationMinutes int    `json:"duration_minutes,omitempty"` // 429 only
	DurationUsed    int64  `json:"duration_used,omitempty"`    // fixed cooldowns, ms
	AppliedAt       int64  `json:"applied_at"`                 // epoch ms
	ErrorMessage    string `json:"error_message,omitempty"`
}

// Expired reports whether the cooldown deadline has passed at now.
func (r *Record) Expired(now time.Time) bool {
	return now.UnixMilli() >= r.CooldownUntil
}

// cooldownFile is the on-disk document shape.
type cooldownFile struct {
	EndpointCooldowns map[Endpoint]*Record `json:"endpoint_cooldowns"`
}

// Durations are the fixed cooldown lengths for connectivity failures, in
// milliseconds.
type Durations struct {
	ConnectionReset int64
	Timeout         int64
	DNSFailure      int64
}

// DefaultBackoffMinutes is the 429 escalation ladder used when the
// configured sequence is missing or invalid.
var DefaultBackoffMinutes = []int{1, 2, 4, 8, 16, 32, 60, 120, 240, 480}

// EndpointStatus describes one endpoint in a connection status report.
type EndpointStatus struct {
	Available   bool   `json:"available"`
	Reason      Reason `json:"reason,omitempty"`
	RemainingMS int64  `json:"remaining_ms,omitempty"`
	Until       int64  `json:"until,omitempty"` // epoch ms
}

// Summary totals a connection status report. NextAvailableInMS is zero when
// at least one endpoint is already available.
type Summary struct {
	AvailableConnections int   `json:"available_connections"`
	TotalConnections     int   `json:"total_connections"`
	NextAvailableInMS    int64 `json:"next_available_in_ms"`
}

// StatusReport is the full per-endpoint availability picture.
type StatusReport struct {
	Connections map[Endpoint]EndpointStatus `json:"connections"`
	Summary     Summary                     `json:"summary"`
}

// Outcome reports how HandleRequestError disposed of an error.
type Outcome struct {
	Endpoint        Endpoint
	Reason          Reason // empty when no cooldown applied
	CooldownApplied bool
}
