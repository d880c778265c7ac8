// ABOUTME: Interactive session capture: the operator logs in through a real browser
// ABOUTME: Cookies are polled until a session cookie appears, then returned as JSON
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// LoginURL is where the operator signs in
const LoginURL = "https://www.instagram.com/accounts/login/"

// ErrNoSession is returned when cookies carry no session id
var ErrNoSession = errors.New("no sessionid cookie")

// Session is the captured authentication state handed to the bridge
type Session struct {
	SessionID string            `json:"sessionid"`
	CSRFToken string            `json:"csrftoken,omitempty"`
	UserID    string            `json:"ds_user_id,omitempty"`
	Cookies   map[string]string `json:"cookies"`
}

// Encode serializes the session for storage
func (s *Session) Encode() (string, error) {
	buf, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// SessionFromCookies builds a Session from browser cookies
func SessionFromCookies(cookies []*proto.NetworkCookie) (*Session, error) {
	s := &Session{Cookies: make(map[string]string, len(cookies))}
	for _, c := range cookies {
		s.Cookies[c.Name] = c.Value
	}
	raw := s.Cookies["sessionid"]
	if raw == "" {
		return nil, ErrNoSession
	}
	if id, err := url.QueryUnescape(raw); err == nil {
		raw = id
	}
	s.SessionID = raw
	s.CSRFToken = s.Cookies["csrftoken"]
	s.UserID = s.Cookies["ds_user_id"]
	return s, nil
}

// Options configure Capture
type Options struct {
	// Bin is an explicit browser binary; empty lets the launcher find or download one
	Bin          string
	PollInterval time.Duration
}

// Capture opens a visible browser on LoginURL and waits until the operator
// has logged in or ctx is done
func Capture(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	l := launcher.New().Headless(false).Set("disable-blink-features", "AutomationControlled")
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	defer l.Cleanup()

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	defer func() { _ = b.Close() }()

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	if err := page.Navigate(LoginURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", LoginURL, err)
	}
	logger.Info("waiting for login in the browser window", zap.String("url", LoginURL))

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		res, err := proto.NetworkGetCookies{}.Call(page)
		if err != nil {
			return nil, fmt.Errorf("browser: get cookies: %w", err)
		}
		s, err := SessionFromCookies(res.Cookies)
		if errors.Is(err, ErrNoSession) {
			continue
		}
		if err != nil {
			return nil, err
		}
		logger.Info("session captured", zap.String("user_id", s.UserID), zap.Int("cookies", len(s.Cookies)))
		return s, nil
	}
}
