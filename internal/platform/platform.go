// ABOUTME: Social-platform collaborator contract and PlatformError
// ABOUTME: Split into Messenger (DMs) and Directory (profiles, graph) for narrow consumers
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PlatformError reports a failed remote call. Callers skip the current
// lead or message and continue.
type PlatformError struct {
	Op     string
	Handle string
	Err    error
}

func (e *PlatformError) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("platform: %s @%s: %v", e.Op, e.Handle, e.Err)
	}
	return fmt.Sprintf("platform: %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// IsPlatformError reports whether err wraps a PlatformError
func IsPlatformError(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe)
}

// ErrNotLoggedIn is returned by calls made before a successful Login
var ErrNotLoggedIn = errors.New("not logged in")

// Profile is the public information of an account
type Profile struct {
	Handle        string `json:"username"`
	FullName      string `json:"full_name"`
	Bio           string `json:"bio"`
	Followers     int    `json:"followers"`
	Following     int    `json:"following"`
	Posts         int    `json:"posts_count"`
	IsBusiness    bool   `json:"is_business"`
	Category      string `json:"category,omitempty"`
	LatestCaption string `json:"latest_caption,omitempty"`
}

// InboundMessage is the latest message of a thread whose last sender is not us
type InboundMessage struct {
	ThreadID string    `json:"thread_id"`
	Handle   string    `json:"username"`
	Text     string    `json:"message"`
	At       time.Time `json:"timestamp"`
}

// Messenger sends and receives direct messages
type Messenger interface {
	SendMessage(ctx context.Context, handle, text string) error
	FetchUnread(ctx context.Context) ([]InboundMessage, error)
}

// Directory reads profiles and the follow graph
type Directory interface {
	// FetchProfile returns nil, nil when the account does not exist
	FetchProfile(ctx context.Context, handle string) (*Profile, error)
	FetchFollowers(ctx context.Context, handle string, amount int) ([]string, error)
	FetchLikers(ctx context.Context, handle string, amount int) ([]string, error)
	FetchSuggestions(ctx context.Context, handle string, amount int) ([]string, error)
}

// Client is the full platform collaborator
type Client interface {
	Login(ctx context.Context) error
	Messenger
	Directory
}
