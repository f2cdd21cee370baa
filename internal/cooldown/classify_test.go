package cooldown

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "operation aborted" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ""},
		{"http 429", &HTTPError{StatusCode: 429, URL: "https://x"}, ReasonRateLimited},
		{"wrapped http 429", fmt.Errorf("running check: %w", &HTTPError{StatusCode: 429, URL: "https://x"}), ReasonRateLimited},
		{"http 500", &HTTPError{StatusCode: 500, URL: "https://x"}, ""},
		{"dns error", &net.DNSError{Err: "no such host", Name: "api.steampowered.com", IsNotFound: true}, ReasonDNSFailure},
		{"net timeout", fakeTimeoutError{}, ReasonTimeout},
		{"wrapped net timeout", fmt.Errorf("doing request: %w", fakeTimeoutError{}), ReasonTimeout},
		{"deadline exceeded", context.DeadlineExceeded, ReasonTimeout},
		{"econnreset", fmt.Errorf("read tcp 10.0.0.1:443: %w", syscall.ECONNRESET), ReasonConnectionError},
		{"econnrefused", fmt.Errorf("dial tcp 10.0.0.1:443: %w", syscall.ECONNREFUSED), ReasonConnectionError},
		{"enotfound text", errors.New("getaddrinfo ENOTFOUND api.steampowered.com"), ReasonDNSFailure},
		{"ehostunreach text", errors.New("connect EHOSTUNREACH 1.2.3.4:443"), ReasonDNSFailure},
		{"timeout text", errors.New("timeout of 15000ms exceeded"), ReasonTimeout},
		{"etimedout text", errors.New("connect ETIMEDOUT 1.2.3.4:443"), ReasonTimeout},
		{"socket hang up", errors.New("socket hang up"), ReasonConnectionError},
		{"socket disconnected", errors.New("Client network socket disconnected before secure TLS connection was established"), ReasonConnectionError},
		{"certificate", errors.New("certificate has expired"), ReasonConnectionError},
		{"unclassified", errors.New("something strange happened"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestEndpointForURL(t *testing.T) {
	cases := []struct {
		url  string
		want Endpoint
	}{
		{"https://api.steampowered.com/ISteamUser/GetFriendList/v1/?steamid=1", EndpointFriends},
		{"https://steamcommunity.com/inventory/76561198000000001/730/2", EndpointInventory},
		{"https://api.steampowered.com/IPlayerService/GetSteamLevel/v1/?steamid=1", EndpointSteamLevel},
		{"https://api.steampowered.com/IPlayerService/GetAnimatedAvatar/v1/?steamid=1", EndpointAnimatedAvatar},
		{"https://api.steampowered.com/IPlayerService/GetAvatarFrame/v1/?steamid=1", EndpointAvatarFrame},
		{"https://api.steampowered.com/IPlayerService/GetMiniProfileBackground/v1/?steamid=1", EndpointMiniProfileBackground},
		{"https://api.steampowered.com/IPlayerService/GetProfileBackground/v1/?steamid=1", EndpointProfileBackground},
		{"https://links.example.com/api/steam-ids/1/exists", EndpointOther},
		{"", EndpointOther},
		// Probe order is fixed; the first match wins.
		{"https://example.com/GetFriendList/inventory", EndpointFriends},
	}
	for _, tc := range cases {
		if got := EndpointForURL(tc.url); got != tc.want {
			t.Errorf("EndpointForURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestEndpointForCheck(t *testing.T) {
	want := map[checks.Check]Endpoint{
		checks.AnimatedAvatar:        EndpointAnimatedAvatar,
		checks.AvatarFrame:           EndpointAvatarFrame,
		checks.MiniProfileBackground: EndpointMiniProfileBackground,
		checks.ProfileBackground:     EndpointProfileBackground,
		checks.SteamLevel:            EndpointSteamLevel,
		checks.Friends:               EndpointFriends,
		checks.CSGOInventory:         EndpointInventory,
	}
	for _, c := range checks.All() {
		if got := EndpointForCheck(c); got != want[c] {
			t.Errorf("EndpointForCheck(%q) = %q, want %q", c, got, want[c])
		}
	}
}

func TestRequestTimeout(t *testing.T) {
	if got := RequestTimeout(EndpointInventory); got != 25*time.Second {
		t.Errorf("inventory timeout = %v, want 25s", got)
	}
	for _, endpoint := range AllEndpoints() {
		if endpoint == EndpointInventory {
			continue
		}
		if got := RequestTimeout(endpoint); got != 15*time.Second {
			t.Errorf("%s timeout = %v, want 15s", endpoint, got)
		}
	}
}

func TestSanitizeMessage(t *testing.T) {
	t.Run("masks credential parameters", func(t *testing.T) {
		cases := []struct{ in, want string }{
			{"status 429 from https://x/?key=ABC123&steamid=1", "status 429 from https://x/?key=REDACTED&steamid=1"},
			{"status 429 from https://x/?api_key=ABC123", "status 429 from https://x/?api_key=REDACTED"},
			{"status 429 from https://x/?token=tok_55", "status 429 from https://x/?token=REDACTED"},
			{"plain message", "plain message"},
		}
		for _, tc := range cases {
			if got := sanitizeMessage(tc.in); got != tc.want {
				t.Errorf("sanitizeMessage(%q) = %q, want %q", tc.in, got, tc.want)
			}
		}
	})

	t.Run("truncates long messages", func(t *testing.T) {
		got := sanitizeMessage(strings.Repeat("x", 500))
		if len(got) != maxErrorMessageLen+3 {
			t.Errorf("len = %d, want %d", len(got), maxErrorMessageLen+3)
		}
		if !strings.HasSuffix(got, "...") {
			t.Error("truncated message has no ellipsis")
		}
	})
}
