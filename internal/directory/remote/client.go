// Package remote implements the session collaborators over the PTS HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pts.app/internal/directory"
	"pts.app/internal/session"
)

const refreshTokenKey = "pts.refresh_token"

// TokenStore persists the refresh token between client restarts.
type TokenStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Client talks to the PTS API and satisfies both session.Identity and
// session.Resolver.
type Client struct {
	baseURL string
	http    *http.Client

	tokens TokenStore

	mu        sync.Mutex
	access    string
	refresh   string
	userID    string
	expiresAt time.Time
}

var (
	_ session.Identity = (*Client)(nil)
	_ session.Resolver = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenStore persists the refresh token so a restarted client can restore
// its session without credentials.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.tokens = store }
}

// New constructs a Client for the given API base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tokenPayload struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           string    `json:"user_id"`
	PersonID         string    `json:"person_id"`
}

// SignIn exchanges credentials for tokens. The returned auth reference is the
// account id the directory resolves to a person.
func (c *Client) SignIn(ctx context.Context, email, password string) (session.AuthState, error) {
	var payload tokenPayload
	err := c.postJSON(ctx, "/v1/auth/token", map[string]string{
		"email":    email,
		"password": password,
	}, "", &payload)
	if err != nil {
		return session.AuthState{}, err
	}
	c.storeTokens(payload)
	return session.AuthState{AuthRef: payload.UserID}, nil
}

// CurrentState restores a previous session from the persisted refresh token.
func (c *Client) CurrentState(ctx context.Context) (session.AuthState, bool, error) {
	c.mu.Lock()
	userID := c.userID
	refresh := c.refresh
	c.mu.Unlock()

	if userID != "" {
		return session.AuthState{AuthRef: userID}, true, nil
	}
	if refresh == "" && c.tokens != nil {
		if stored, ok := c.tokens.Get(refreshTokenKey); ok {
			refresh = stored
		}
	}
	if refresh == "" {
		return session.AuthState{}, false, nil
	}

	var payload tokenPayload
	err := c.postJSON(ctx, "/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "", &payload)
	if err != nil {
		// A dead refresh token is "no session", not a failure.
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
			c.clearTokens()
			return session.AuthState{}, false, nil
		}
		return session.AuthState{}, false, err
	}
	c.storeTokens(payload)
	return session.AuthState{AuthRef: payload.UserID}, true, nil
}

// SignOut revokes the remote session and drops local tokens. Local state is
// cleared even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	access, err := c.accessToken(ctx)
	c.clearTokens()
	if err != nil {
		return err
	}
	return c.postJSON(ctx, "/v1/auth/signout", nil, access, nil)
}

// FindPersonByAuthRef resolves the account reference to a directory person.
func (c *Client) FindPersonByAuthRef(ctx context.Context, ref string) (*directory.Person, error) {
	access, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var person directory.Person
	q := url.Values{"auth_ref": []string{ref}}
	if err := c.getJSON(ctx, "/v1/people?"+q.Encode(), access, &person); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	return &person, nil
}

// ListActiveAssignments loads the person's active assignments with joined
// project, company and department records.
func (c *Client) ListActiveAssignments(ctx context.Context, personID string) ([]directory.Assignment, error) {
	access, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Items []directory.Assignment `json:"items"`
	}
	path := "/v1/people/" + url.PathEscape(personID) + "/assignments"
	if err := c.getJSON(ctx, path, access, &payload); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	return payload.Items, nil
}

// --- token management ---

func (c *Client) storeTokens(payload tokenPayload) {
	c.mu.Lock()
	c.access = payload.AccessToken
	c.refresh = payload.RefreshToken
	c.userID = payload.UserID
	c.expiresAt = payload.AccessExpiresAt
	c.mu.Unlock()
	if c.tokens != nil && payload.RefreshToken != "" {
		_ = c.tokens.Set(refreshTokenKey, payload.RefreshToken)
	}
}

func (c *Client) clearTokens() {
	c.mu.Lock()
	c.access = ""
	c.refresh = ""
	c.userID = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	if c.tokens != nil {
		_ = c.tokens.Remove(refreshTokenKey)
	}
}

// accessToken returns a live access token, refreshing when close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	access := c.access
	refresh := c.refresh
	expires := c.expiresAt
	c.mu.Unlock()

	if access != "" && time.Until(expires) > 30*time.Second {
		return access, nil
	}
	if refresh == "" {
		if access != "" {
			return access, nil
		}
		return "", session.ErrNotAuthenticated
	}

	var payload tokenPayload
	if err := c.postJSON(ctx, "/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "", &payload); err != nil {
		return "", err
	}
	c.storeTokens(payload)
	return payload.AccessToken, nil
}

// --- transport ---

// APIError carries the server's status code and error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, token string, dst any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, dst)
}

func (c *Client) getJSON(ctx context.Context, path, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
