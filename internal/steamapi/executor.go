// Package steamapi executes profile checks against the Steam Web API and
// the community inventory endpoint. Private profiles fail their checks
// deterministically; transport and rate-limit problems surface as errors
// for the cooldown controller to classify.
package steamapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
)

// Default upstream bases. Tests point these at local servers.
const (
	DefaultWebAPIBase    = "https://api.steampowered.com"
	DefaultCommunityBase = "https://steamcommunity.com"
)

// csgoAppID/csgoContextID select the CS:GO item inventory on the community
// endpoint.
const (
	csgoAppID     = "730"
	csgoContextID = "2"
)

// errPrivate marks a 401/403 upstream response: the profile hides the
// requested data, which is a check failure rather than an error.
var errPrivate = errors.New("profile data is private")

// Criteria holds the pass thresholds for the quantitative checks.
type Criteria struct {
	MinSteamLevel int
	MinFriends    int
}

// Executor runs profile checks. It implements the coordinator's
// CheckRunner.
type Executor struct {
	apiKey        string
	criteria      Criteria
	webAPIBase    string
	communityBase string
	httpClient    *http.Client
}

// NewExecutor creates an executor authenticating Web API calls with
// apiKey. The inventory endpoint needs no key.
func NewExecutor(apiKey string, criteria Criteria, opts ...Option) *Executor {
	e := &Executor{
		apiKey:        apiKey,
		criteria:      criteria,
		webAPIBase:    DefaultWebAPIBase,
		communityBase: DefaultCommunityBase,
		httpClient:    &http.Client{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures an Executor.
type Option func(*Executor)

// WithWebAPIBase overrides the Steam Web API base URL.
func WithWebAPIBase(base string) Option {
	return func(e *Executor) {
		e.webAPIBase = trimSlash(base)
	}
}

// WithCommunityBase overrides the community base URL.
func WithCommunityBase(base string) Option {
	return func(e *Executor) {
		e.communityBase = trimSlash(base)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Executor) {
		if hc != nil {
			e.httpClient = hc
		}
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// EndpointURL returns the request URL for a check without the API key, for
// endpoint mapping and logging.
func (e *Executor) EndpointURL(check checks.Check, steamID string) string {
	switch check {
	case checks.AnimatedAvatar:
		return fmt.Sprintf("%s/IPlayerService/GetAnimatedAvatar/v1/?steamid=%s", e.webAPIBase, steamID)
	case checks.AvatarFrame:
		return fmt.Sprintf("%s/IPlayerService/GetAvatarFrame/v1/?steamid=%s", e.webAPIBase, steamID)
	case checks.MiniProfileBackground:
		return fmt.Sprintf("%s/IPlayerService/GetMiniProfileBackground/v1/?steamid=%s", e.webAPIBase, steamID)
	case checks.ProfileBackground:
		return fmt.Sprintf("%s/IPlayerService/GetProfileBackground/v1/?steamid=%s", e.webAPIBase, steamID)
	case checks.SteamLevel:
		return fmt.Sprintf("%s/IPlayerService/GetSteamLevel/v1/?steamid=%s", e.webAPIBase, steamID)
	case checks.Friends:
		return fmt.Sprintf("%s/ISteamUser/GetFriendList/v1/?steamid=%s&relationship=friend", e.webAPIBase, steamID)
	case checks.CSGOInventory:
		return fmt.Sprintf("%s/inventory/%s/%s/%s?l=english&count=75", e.communityBase, steamID, csgoAppID, csgoContextID)
	}
	return ""
}

// RunCheck executes one check for steamID and reports whether it passed.
// The per-endpoint request timeout is applied here; a nil error means the
// check reached a verdict.
func (e *Executor) RunCheck(ctx context.Context, check checks.Check, steamID string) (bool, error) {
	endpoint := cooldown.EndpointForCheck(check)
	ctx, cancel := context.WithTimeout(ctx, cooldown.RequestTimeout(endpoint))
	defer cancel()

	switch check {
	case checks.SteamLevel:
		return e.checkSteamLevel(ctx, steamID)
	case checks.Friends:
		return e.checkFriends(ctx, steamID)
	case checks.CSGOInventory:
		return e.checkInventory(ctx, steamID)
	case checks.AnimatedAvatar, checks.AvatarFrame, checks.MiniProfileBackground, checks.ProfileBackground:
		return e.checkDecoration(ctx, check, steamID)
	}
	return false, fmt.Errorf("unknown check %q", check)
}

func (e *Executor) checkDecoration(ctx context.Context, check checks.Check, steamID string) (bool, error) {
	data, err := e.fetch(ctx, e.requestURL(check, steamID))
	if errors.Is(err, errPrivate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var result struct {
		Response map[string]json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, fmt.Errorf("decoding %s response: %w", check, err)
	}
	for _, raw := range result.Response {
		if jsonValuePresent(raw) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Executor) checkSteamLevel(ctx context.Context, steamID string) (bool, error) {
	data, err := e.fetch(ctx, e.requestURL(checks.SteamLevel, steamID))
	if errors.Is(err, errPrivate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var result struct {
		Response struct {
			PlayerLevel int `json:"player_level"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, fmt.Errorf("decoding level response: %w", err)
	}
	return result.Response.PlayerLevel >= e.criteria.MinSteamLevel, nil
}

func (e *Executor) checkFriends(ctx context.Context, steamID string) (bool, error) {
	data, err := e.fetch(ctx, e.requestURL(checks.Friends, steamID))
	if errors.Is(err, errPrivate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var result struct {
		FriendsList struct {
			Friends []struct {
				SteamID string `json:"steamid"`
			} `json:"friends"`
		} `json:"friendslist"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, fmt.Errorf("decoding friends response: %w", err)
	}
	return len(result.FriendsList.Friends) >= e.criteria.MinFriends, nil
}

func (e *Executor) checkInventory(ctx context.Context, steamID string) (bool, error) {
	data, err := e.fetch(ctx, e.requestURL(checks.CSGOInventory, steamID))
	if errors.Is(err, errPrivate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// The community endpoint answers "null" for some hidden inventories.
	if !jsonValuePresent(data) {
		return false, nil
	}
	var result struct {
		Assets              []json.RawMessage `json:"assets"`
		TotalInventoryCount int               `json:"total_inventory_count"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, fmt.Errorf("decoding inventory response: %w", err)
	}
	return result.TotalInventoryCount > 0 || len(result.Assets) > 0, nil
}

// requestURL is EndpointURL plus the API key for Web API checks.
func (e *Executor) requestURL(check checks.Check, steamID string) string {
	u := e.EndpointURL(check, steamID)
	if check != checks.CSGOInventory && e.apiKey != "" {
		u += "&key=" + neturl.QueryEscape(e.apiKey)
	}
	return u
}

// fetch performs one GET. 401/403 come back as errPrivate; other non-200
// statuses as *cooldown.HTTPError carrying the redacted URL. Transport
// errors are rewrapped so the key never appears in their text while the
// typed cause stays classifiable.
func (e *Executor) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		var uerr *neturl.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("requesting %s: %w", redactURL(u), uerr.Err)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return data, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errPrivate
	}
	return nil, &cooldown.HTTPError{StatusCode: resp.StatusCode, URL: redactURL(u)}
}

// jsonValuePresent reports whether raw holds a value with content. Empty
// objects, empty arrays, empty strings, and null all mean "nothing there";
// the Web API uses each of them depending on the endpoint.
func jsonValuePresent(raw []byte) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "{}", "[]", "null", `""`:
		return false
	}
	return true
}

func redactURL(u string) string {
	parsed, err := neturl.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}
