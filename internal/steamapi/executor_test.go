package steamapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
)

const testSteamID = "76561198000000001"

func testExecutor(t *testing.T, handler http.HandlerFunc) *Executor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewExecutor("test-key", Criteria{MinSteamLevel: 10, MinFriends: 5},
		WithWebAPIBase(server.URL),
		WithCommunityBase(server.URL))
}

func TestRunCheckDecorations(t *testing.T) {
	t.Run("item present passes", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Path, "GetAnimatedAvatar") {
				t.Errorf("path = %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("key"); got != "test-key" {
				t.Errorf("key = %q, want test-key", got)
			}
			if got := r.URL.Query().Get("steamid"); got != testSteamID {
				t.Errorf("steamid = %q", got)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"response": map[string]interface{}{
					"avatar": map[string]interface{}{"appid": 730, "image_small": "x.png"},
				},
			})
		})
		passed, err := e.RunCheck(context.Background(), checks.AnimatedAvatar, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if !passed {
			t.Error("passed = false, want true")
		}
	})

	t.Run("empty object fails", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"response":{"avatar_frame":{}}}`)
		})
		passed, err := e.RunCheck(context.Background(), checks.AvatarFrame, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})

	t.Run("empty array fails", func(t *testing.T) {
		// Some endpoints answer [] instead of {} when nothing is equipped.
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"response":{"profile_background":[]}}`)
		})
		passed, err := e.RunCheck(context.Background(), checks.ProfileBackground, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})

	t.Run("private profile fails without error", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		})
		passed, err := e.RunCheck(context.Background(), checks.MiniProfileBackground, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})
}

func TestRunCheckSteamLevel(t *testing.T) {
	levelHandler := func(level int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Path, "GetSteamLevel") {
				t.Errorf("path = %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"response": map[string]interface{}{"player_level": level},
			})
		}
	}

	cases := []struct {
		name  string
		level int
		want  bool
	}{
		{"above minimum", 12, true},
		{"at minimum", 10, true},
		{"below minimum", 9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := testExecutor(t, levelHandler(tc.level))
			passed, err := e.RunCheck(context.Background(), checks.SteamLevel, testSteamID)
			if err != nil {
				t.Fatalf("RunCheck failed: %v", err)
			}
			if passed != tc.want {
				t.Errorf("passed = %v, want %v", passed, tc.want)
			}
		})
	}

	t.Run("hidden level fails", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"response":{}}`)
		})
		passed, err := e.RunCheck(context.Background(), checks.SteamLevel, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})
}

func TestRunCheckFriends(t *testing.T) {
	friendsHandler := func(count int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Path, "GetFriendList") {
				t.Errorf("path = %s", r.URL.Path)
			}
			friends := make([]map[string]string, count)
			for i := range friends {
				friends[i] = map[string]string{"steamid": "765611980000001"}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"friendslist": map[string]interface{}{"friends": friends},
			})
		}
	}

	t.Run("enough friends passes", func(t *testing.T) {
		e := testExecutor(t, friendsHandler(6))
		passed, err := e.RunCheck(context.Background(), checks.Friends, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if !passed {
			t.Error("passed = false, want true")
		}
	})

	t.Run("too few friends fails", func(t *testing.T) {
		e := testExecutor(t, friendsHandler(2))
		passed, err := e.RunCheck(context.Background(), checks.Friends, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})

	t.Run("private friend list fails without error", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
		passed, err := e.RunCheck(context.Background(), checks.Friends, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})
}

func TestRunCheckInventory(t *testing.T) {
	t.Run("items present passes", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			wantPath := "/inventory/" + testSteamID + "/730/2"
			if r.URL.Path != wantPath {
				t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
			}
			if r.URL.Query().Has("key") {
				t.Error("inventory request carries an API key")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"assets":                []map[string]interface{}{{"assetid": "1"}},
				"total_inventory_count": 3,
				"success":               1,
			})
		})
		passed, err := e.RunCheck(context.Background(), checks.CSGOInventory, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if !passed {
			t.Error("passed = false, want true")
		}
	})

	t.Run("empty inventory fails", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"assets":[],"total_inventory_count":0,"success":1}`)
		})
		passed, err := e.RunCheck(context.Background(), checks.CSGOInventory, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})

	t.Run("null body fails", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "null")
		})
		passed, err := e.RunCheck(context.Background(), checks.CSGOInventory, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})

	t.Run("private inventory fails without error", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		})
		passed, err := e.RunCheck(context.Background(), checks.CSGOInventory, testSteamID)
		if err != nil {
			t.Fatalf("RunCheck failed: %v", err)
		}
		if passed {
			t.Error("passed = true, want false")
		}
	})
}

func TestRunCheckErrors(t *testing.T) {
	t.Run("rate limit surfaces as HTTPError", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		})
		_, err := e.RunCheck(context.Background(), checks.SteamLevel, testSteamID)
		if err == nil {
			t.Fatal("expected error")
		}
		var httpErr *cooldown.HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("error type = %T, want *cooldown.HTTPError", err)
		}
		if httpErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", httpErr.StatusCode)
		}
		if got := cooldown.Classify(err); got != cooldown.ReasonRateLimited {
			t.Errorf("Classify = %q, want 429", got)
		}
	})

	t.Run("key is redacted in error URLs", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := e.RunCheck(context.Background(), checks.Friends, testSteamID)
		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "test-key") {
			t.Errorf("error leaks API key: %v", err)
		}
		if !strings.Contains(err.Error(), "key=REDACTED") {
			t.Errorf("error URL not redacted: %v", err)
		}
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		e := NewExecutor("test-key", Criteria{},
			WithWebAPIBase("http://localhost:1"),
			WithCommunityBase("http://localhost:1"))
		_, err := e.RunCheck(context.Background(), checks.SteamLevel, testSteamID)
		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "test-key") {
			t.Errorf("error leaks API key: %v", err)
		}
	})
}

func TestEndpointURL(t *testing.T) {
	e := NewExecutor("test-key", Criteria{})
	wantEndpoint := map[checks.Check]cooldown.Endpoint{
		checks.AnimatedAvatar:        cooldown.EndpointAnimatedAvatar,
		checks.AvatarFrame:           cooldown.EndpointAvatarFrame,
		checks.MiniProfileBackground: cooldown.EndpointMiniProfileBackground,
		checks.ProfileBackground:     cooldown.EndpointProfileBackground,
		checks.SteamLevel:            cooldown.EndpointSteamLevel,
		checks.Friends:               cooldown.EndpointFriends,
		checks.CSGOInventory:         cooldown.EndpointInventory,
	}
	for _, c := range checks.All() {
		u := e.EndpointURL(c, testSteamID)
		if u == "" {
			t.Fatalf("EndpointURL(%q) empty", c)
		}
		if strings.Contains(u, "key=") {
			t.Errorf("EndpointURL(%q) carries the key: %s", c, u)
		}
		if got := cooldown.EndpointForURL(u); got != wantEndpoint[c] {
			t.Errorf("EndpointForURL(%s) = %q, want %q", u, got, wantEndpoint[c])
		}
	}
}
