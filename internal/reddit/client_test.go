package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/modwatch/modwatch/internal/config"
)

func testRedditConfig() config.RedditConfig {
	return config.RedditConfig{
		ClientID:      "cid",
		ClientSecret:  "secret",
		Username:      "modbot",
		Password:      "hunter2",
		UserAgent:     "modwatch/1.0",
		Subreddit:     "testsub",
		FirstRunLimit: 100,
		Timeout:       5 * time.Second,
	}
}

// newTestClient wires the client against fake token and API servers.
func newTestClient(t *testing.T, api http.HandlerFunc) (*Client, *int) {
	t.Helper()

	tokenCalls := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing token form: %v", err)
		}
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "modbot" {
			t.Errorf("unexpected token form: %v", r.Form)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok123", "expires_in": 3600})
	}))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	c := NewClient(testRedditConfig(), clockwork.NewFakeClock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.tokenURL = tokenServer.URL
	c.apiURL = apiServer.URL
	return c, &tokenCalls
}

func listingJSON(entries ...[3]any) string {
	children := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		children = append(children, map[string]any{"data": map[string]any{
			"id":          e[0],
			"author":      "someone",
			"body":        e[1],
			"created_utc": e[2],
			"permalink":   fmt.Sprintf("/r/testsub/comments/1/t/%s/", e[0]),
		}})
	}
	raw, _ := json.Marshal(map[string]any{"data": map[string]any{"children": children}})
	return string(raw)
}

func TestListCommentsSinceFiltersAndOrders(t *testing.T) {
	c, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("User-Agent") != "modwatch/1.0" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if !strings.HasPrefix(r.URL.Path, "/r/testsub/comments") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Newest first, as Reddit returns them.
		io.WriteString(w, listingJSON(
			[3]any{"c3", "newest", 3000},
			[3]any{"c2", "middle", 2000},
			[3]any{"c1", "oldest", 1000},
		))
	})

	since := time.Unix(1500, 0)
	comments, err := c.ListCommentsSince(context.Background(), since)
	if err != nil {
		t.Fatalf("ListCommentsSince returned error: %v", err)
	}

	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].ID != "c2" || comments[1].ID != "c3" {
		t.Errorf("order = %s, %s; want c2, c3 (oldest first)", comments[0].ID, comments[1].ID)
	}
	if comments[0].Permalink != "/r/testsub/comments/1/t/c2/" {
		t.Errorf("Permalink = %q", comments[0].Permalink)
	}
	if *tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", *tokenCalls)
	}
}

func TestListCommentsSinceZeroReturnsAll(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingJSON(
			[3]any{"c2", "b", 2000},
			[3]any{"c1", "a", 1000},
		))
	})

	comments, err := c.ListCommentsSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("ListCommentsSince returned error: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	c, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingJSON())
	})

	for i := 0; i < 3; i++ {
		if _, err := c.ListCommentsSince(context.Background(), time.Time{}); err != nil {
			t.Fatalf("call %d returned error: %v", i, err)
		}
	}
	if *tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", *tokenCalls)
	}
}

func TestRemoveCommentSendsModAction(t *testing.T) {
	var gotForm string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/remove" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotForm = string(body)
		io.WriteString(w, "{}")
	})

	if err := c.RemoveComment(context.Background(), "abc123"); err != nil {
		t.Fatalf("RemoveComment returned error: %v", err)
	}
	if !strings.Contains(gotForm, "id=t1_abc123") || !strings.Contains(gotForm, "spam=false") {
		t.Errorf("form = %q", gotForm)
	}
}

func TestPublishPage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/testsub/api/wiki/edit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if r.Form.Get("page") != "removed_comments" {
			t.Errorf("page = %q", r.Form.Get("page"))
		}
		if r.Form.Get("content") == "" {
			t.Error("empty content")
		}
		io.WriteString(w, "{}")
	})

	err := c.PublishPage(context.Background(), "removed_comments", "# Removed Comments", "update")
	if err != nil {
		t.Fatalf("PublishPage returned error: %v", err)
	}
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "you are doing that too much", http.StatusTooManyRequests)
	})

	_, err := c.ListCommentsSince(context.Background(), time.Time{})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not an APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error message %q does not contain the status code", err.Error())
	}
}

func TestMe(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"name": "modbot"}`)
	})

	name, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me returned error: %v", err)
	}
	if name != "modbot" {
		t.Errorf("Me = %q, want modbot", name)
	}
}
