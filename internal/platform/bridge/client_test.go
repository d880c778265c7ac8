// ABOUTME: Tests for the bridge HTTP client against an httptest server
// ABOUTME: Covers session-first login, not-found profiles and error mapping
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/dmagent/internal/platform"
)

type memSessions struct {
	session string
	saves   int
}

func (m *memSessions) LoadSession(context.Context) (string, error) { return m.session, nil }

func (m *memSessions) SaveSession(_ context.Context, s string) error {
	m.session = s
	m.saves++
	return nil
}

func newBridge(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogin_StoredSessionFirst(t *testing.T) {
	var attempts []loginRequest
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		attempts = append(attempts, req)
		_ = json.NewEncoder(w).Encode(loginResponse{Session: "refreshed", UserID: "42"})
	})

	sessions := &memSessions{session: "stored"}
	c := NewClient(Config{BaseURL: srv.URL, Username: "bot", Password: "secret"}, sessions, nil)

	require.NoError(t, c.Login(context.Background()))
	require.Len(t, attempts, 1)
	assert.Equal(t, "stored", attempts[0].Session)
	assert.Empty(t, attempts[0].Password, "password must not be sent when the session works")
	assert.Equal(t, "refreshed", sessions.session)
	assert.True(t, c.LoggedIn())
}

func TestLogin_FallsBackToPassword(t *testing.T) {
	var attempts []loginRequest
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		attempts = append(attempts, req)
		if req.Session != "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "login_required"})
			return
		}
		_ = json.NewEncoder(w).Encode(loginResponse{Session: "fresh"})
	})

	sessions := &memSessions{session: "expired"}
	c := NewClient(Config{BaseURL: srv.URL, Username: "bot", Password: "secret"}, sessions, nil)

	require.NoError(t, c.Login(context.Background()))
	require.Len(t, attempts, 2)
	assert.Equal(t, "secret", attempts[1].Password)
	assert.Equal(t, "fresh", sessions.session)
}

func TestLogin_FailureIsPlatformError(t *testing.T) {
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "challenge_required"})
	})

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	err := c.Login(context.Background())
	require.Error(t, err)
	assert.True(t, platform.IsPlatformError(err))
	assert.Contains(t, err.Error(), "challenge_required")
	assert.False(t, c.LoggedIn())
}

func TestSendMessage_RequiresLogin(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	err := c.SendMessage(context.Background(), "shop", "Salom")
	assert.ErrorIs(t, err, platform.ErrNotLoggedIn)
}

func TestAuthErrorDropsSession(t *testing.T) {
	expired := false
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/login":
			expired = false
			_ = json.NewEncoder(w).Encode(loginResponse{Session: "s"})
		case expired:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "login_required"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx))
	require.NoError(t, c.SendMessage(ctx, "shop", "Salom!"))

	expired = true
	err := c.SendMessage(ctx, "shop", "Yana salom")
	assert.True(t, platform.IsPlatformError(err))
	assert.ErrorIs(t, err, platform.ErrNotLoggedIn)
	assert.Contains(t, err.Error(), "login_required")
	assert.False(t, c.LoggedIn())

	require.NoError(t, c.Login(ctx))
	assert.True(t, c.LoggedIn())
	require.NoError(t, c.SendMessage(ctx, "shop", "Yana salom"))
}

func TestSendAndInbox(t *testing.T) {
	var sent map[string]string
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/login":
			_ = json.NewEncoder(w).Encode(loginResponse{Session: "s"})
		case r.Method == http.MethodPost && r.URL.Path == "/messages":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/inbox/unread":
			_, _ = w.Write([]byte(`{"messages":[{"thread_id":"t1","username":"shop","message":"Narxi qancha?","timestamp":"2026-03-01T10:00:00Z"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	require.NoError(t, c.SendMessage(ctx, "shop", "Salom!"))
	assert.Equal(t, map[string]string{"username": "shop", "text": "Salom!"}, sent)

	msgs, err := c.FetchUnread(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "shop", msgs[0].Handle)
	assert.Equal(t, "Narxi qancha?", msgs[0].Text)
	assert.False(t, msgs[0].At.IsZero())
}

func TestFetchProfileAndGraph(t *testing.T) {
	srv := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/shop":
			_, _ = w.Write([]byte(`{"username":"shop","bio":"Kofe do'koni","is_business":true,"latest_caption":"Yangi menyu"}`))
		case "/users/shop/followers":
			assert.Equal(t, "25", r.URL.Query().Get("amount"))
			_, _ = w.Write([]byte(`{"usernames":["a","b"]}`))
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	ctx := context.Background()

	p, err := c.FetchProfile(ctx, "shop")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsBusiness)
	assert.Equal(t, "Yangi menyu", p.LatestCaption)

	missing, err := c.FetchProfile(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	followers, err := c.FetchFollowers(ctx, "shop", 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, followers)

	_, err = c.FetchLikers(ctx, "shop", 5)
	assert.True(t, platform.IsPlatformError(err), "404 on a list endpoint is a platform error")
}
