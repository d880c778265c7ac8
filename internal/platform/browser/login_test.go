// ABOUTME: Tests for turning browser cookies into a stored session
// ABOUTME: Capture itself needs a real browser and is not exercised here
package browser

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestSessionFromCookies(t *testing.T) {
	cookies := []*proto.NetworkCookie{
		{Name: "sessionid", Value: "123%3Aabc%3A9"},
		{Name: "csrftoken", Value: "tok"},
		{Name: "ds_user_id", Value: "123"},
		{Name: "mid", Value: "m"},
	}

	s, err := SessionFromCookies(cookies)
	if err != nil {
		t.Fatalf("SessionFromCookies() error = %v", err)
	}
	if s.SessionID != "123:abc:9" {
		t.Errorf("SessionID = %q, want unescaped value", s.SessionID)
	}
	if s.CSRFToken != "tok" || s.UserID != "123" {
		t.Errorf("session = %+v", s)
	}
	if len(s.Cookies) != 4 {
		t.Errorf("Cookies has %d entries, want 4", len(s.Cookies))
	}

	encoded, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var back Session
	if err := json.Unmarshal([]byte(encoded), &back); err != nil {
		t.Fatalf("encoded session is not JSON: %v", err)
	}
	if back.SessionID != s.SessionID {
		t.Errorf("decoded SessionID = %q", back.SessionID)
	}
}

func TestSessionFromCookies_NotLoggedIn(t *testing.T) {
	_, err := SessionFromCookies([]*proto.NetworkCookie{{Name: "csrftoken", Value: "tok"}})
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("error = %v, want ErrNoSession", err)
	}
}
