// Package reddit is a minimal Reddit API client covering what moderation
// needs: OAuth2 password-grant authentication, comment listings, comment
// removal, and wiki page edits.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jonboulle/clockwork"

	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/models"
)

const (
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL   = "https://oauth.reddit.com"
)

// APIError is a non-2xx Reddit API response. The status code is embedded in
// the message so downstream error classification sees it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Reddit API on behalf of one bot account. Safe for
// concurrent use.
type Client struct {
	cfg    config.RedditConfig
	client *retryablehttp.Client
	clock  clockwork.Clock
	logger *slog.Logger

	tokenURL string
	apiURL   string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient returns an unauthenticated client; the first API call fetches a
// token.
func NewClient(cfg config.RedditConfig, clock clockwork.Clock, logger *slog.Logger) *Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = 2
	client.Logger = nil

	return &Client{
		cfg:      cfg,
		client:   client,
		clock:    clock,
		logger:   logger,
		tokenURL: defaultTokenURL,
		apiURL:   defaultAPIURL,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// token returns a valid access token, refreshing via the password grant
// when the cached one is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.clock.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.apiError(resp)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return "", fmt.Errorf("authentication failed: %s", tok.Error)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = c.clock.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Debug("reddit access token refreshed", "expires_in", tok.ExpiresIn)
	return c.accessToken, nil
}

// do issues an authenticated API request and decodes a 2xx JSON response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body url.Values, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(body.Encode())
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling reddit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Me verifies credentials by fetching the authenticated account's identity.
func (c *Client) Me(ctx context.Context) (string, error) {
	var me struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return "", err
	}
	return me.Name, nil
}

// ListCommentsSince fetches the newest comments in the monitored subreddit
// and returns those created strictly after since, oldest first. A zero
// since returns up to the configured first-run limit.
func (c *Client) ListCommentsSince(ctx context.Context, since time.Time) ([]models.Comment, error) {
	limit := c.cfg.FirstRunLimit
	path := fmt.Sprintf("/r/%s/comments?limit=%d&raw_json=1", c.cfg.Subreddit, limit)

	var listing commentListing
	if err := c.do(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}

	comments := listing.comments()
	filtered := comments[:0]
	for _, comment := range comments {
		if since.IsZero() || comment.CreatedAt.After(since) {
			filtered = append(filtered, comment)
		}
	}

	// The listing is newest first; callers process in arrival order.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	return filtered, nil
}

// RemoveComment removes a comment as a moderator action (not as spam).
func (c *Client) RemoveComment(ctx context.Context, commentID string) error {
	form := url.Values{
		"id":   {"t1_" + commentID},
		"spam": {"false"},
	}
	if err := c.do(ctx, http.MethodPost, "/api/remove", form, nil); err != nil {
		return fmt.Errorf("removing comment %s: %w", commentID, err)
	}
	return nil
}

// PublishPage writes content to a subreddit wiki page.
func (c *Client) PublishPage(ctx context.Context, page, content, reason string) error {
	form := url.Values{
		"page":    {page},
		"content": {content},
		"reason":  {reason},
	}
	path := fmt.Sprintf("/r/%s/api/wiki/edit", c.cfg.Subreddit)
	if err := c.do(ctx, http.MethodPost, path, form, nil); err != nil {
		return fmt.Errorf("editing wiki page %s: %w", page, err)
	}
	return nil
}
