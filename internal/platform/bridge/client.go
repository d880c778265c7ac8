// ABOUTME: HTTP JSON client for the platform bridge sidecar that speaks the private API
// ABOUTME: Session-first login: the stored session is offered before the password
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/platform"
)

// SessionStore persists the opaque session blob between runs
type SessionStore interface {
	LoadSession(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, session string) error
}

// Config holds bridge connection settings
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to the bridge over HTTP
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	sessions SessionStore
	logger   *zap.Logger

	mu       sync.Mutex
	loggedIn bool
}

var _ platform.Client = (*Client)(nil)

// NewClient creates a bridge client; sessions may be nil
func NewClient(cfg Config, sessions SessionStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		logger:   logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Session  string `json:"session,omitempty"`
}

type loginResponse struct {
	Session string `json:"session"`
	UserID  string `json:"user_id"`
}

// Login restores the stored session, or logs in with the password when
// the bridge rejects it. A refreshed session is saved back.
func (c *Client) Login(ctx context.Context) error {
	var stored string
	if c.sessions != nil {
		s, err := c.sessions.LoadSession(ctx)
		if err != nil {
			c.logger.Warn("could not load stored session", zap.Error(err))
		}
		stored = s
	}

	if stored != "" {
		resp, err := c.login(ctx, loginRequest{Username: c.username, Session: stored})
		if err == nil {
			c.logger.Info("restored platform session", zap.String("user_id", resp.UserID))
			c.saveSession(ctx, resp.Session)
			c.setLoggedIn(true)
			return nil
		}
		c.logger.Warn("stored session rejected, falling back to password", zap.Error(err))
	}

	resp, err := c.login(ctx, loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		c.setLoggedIn(false)
		return err
	}
	c.logger.Info("logged in with password", zap.String("user_id", resp.UserID))
	c.saveSession(ctx, resp.Session)
	c.setLoggedIn(true)
	return nil
}

func (c *Client) login(ctx context.Context, req loginRequest) (*loginResponse, error) {
	var resp loginResponse
	if err := c.do(ctx, "login", "", http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) saveSession(ctx context.Context, session string) {
	if c.sessions == nil || session == "" {
		return
	}
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		c.logger.Warn("could not persist platform session", zap.Error(err))
	}
}

func (c *Client) setLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

// LoggedIn reports whether the last Login succeeded
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// SendMessage delivers a direct message
func (c *Client) SendMessage(ctx context.Context, handle, text string) error {
	if !c.LoggedIn() {
		return &platform.PlatformError{Op: "send message", Handle: handle, Err: platform.ErrNotLoggedIn}
	}
	body := struct {
		Handle string `json:"username"`
		Text   string `json:"text"`
	}{handle, text}
	return c.do(ctx, "send message", handle, http.MethodPost, "/messages", body, nil)
}

// FetchUnread returns the latest inbound message of each thread awaiting a reply
func (c *Client) FetchUnread(ctx context.Context) ([]platform.InboundMessage, error) {
	var resp struct {
		Messages []platform.InboundMessage `json:"messages"`
	}
	if err := c.do(ctx, "fetch unread", "", http.MethodGet, "/inbox/unread", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// FetchProfile returns nil, nil for unknown accounts
func (c *Client) FetchProfile(ctx context.Context, handle string) (*platform.Profile, error) {
	var p platform.Profile
	err := c.do(ctx, "fetch profile", handle, http.MethodGet, "/users/"+url.PathEscape(handle), nil, &p)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) FetchFollowers(ctx context.Context, handle string, amount int) ([]string, error) {
	return c.handles(ctx, "fetch followers", handle, "followers", amount)
}

func (c *Client) FetchLikers(ctx context.Context, handle string, amount int) ([]string, error) {
	return c.handles(ctx, "fetch likers", handle, "likers", amount)
}

func (c *Client) FetchSuggestions(ctx context.Context, handle string, amount int) ([]string, error) {
	return c.handles(ctx, "fetch suggestions", handle, "suggestions", amount)
}

func (c *Client) handles(ctx context.Context, op, handle, edge string, amount int) ([]string, error) {
	var resp struct {
		Handles []string `json:"usernames"`
	}
	path := fmt.Sprintf("/users/%s/%s?amount=%s", url.PathEscape(handle), edge, strconv.Itoa(amount))
	if err := c.do(ctx, op, handle, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Handles, nil
}

var errNotFound = errors.New("not found")

type errorResponse struct {
	Error string `json:"error"`
}

// do performs one JSON round trip; every failure is a *platform.PlatformError
func (c *Client) do(ctx context.Context, op, handle, method, path string, in, out any) error {
	fail := func(err error) error {
		return &platform.PlatformError{Op: op, Handle: handle, Err: err}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fail(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fail(errNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		// The bridge has dropped the session; the next pass logs in again.
		c.setLoggedIn(false)
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return fail(fmt.Errorf("bridge returned %d %s: %w", resp.StatusCode, e.Error, platform.ErrNotLoggedIn))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error != "" {
			return fail(fmt.Errorf("bridge returned %d: %s", resp.StatusCode, e.Error))
		}
		return fail(fmt.Errorf("bridge returned %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
