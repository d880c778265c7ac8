// ABOUTME: Emails the operator when the kill-switch trips
// ABOUTME: Other event types are ignored; SMTP delivery goes through gomail
package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// sender is satisfied by *gomail.Dialer
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Emailer sends kill-switch alerts over SMTP
type Emailer struct {
	from   string
	to     string
	dialer sender
}

// NewEmailer builds an emailer that authenticates as user and sends to to
func NewEmailer(host string, port int, user, password, to string) *Emailer {
	return &Emailer{
		from:   user,
		to:     to,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

// Notify sends mail for kill-switch events only
func (e *Emailer) Notify(_ context.Context, ev Event) error {
	if ev.Type != KillSwitchTripped {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", "dmagent paused: kill-switch tripped")
	m.SetBody("text/plain", killSwitchBody(ev))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

func killSwitchBody(ev Event) string {
	var b strings.Builder
	b.WriteString("Outreach has been paused after repeated rejections.\n\n")
	if ev.Handle != "" {
		fmt.Fprintf(&b, "Last rejecting lead: @%s\n", ev.Handle)
	}
	if ev.PausedUntil != nil {
		fmt.Fprintf(&b, "Paused until: %s\n", ev.PausedUntil.Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\nRun `dmagent resume` to lift the pause early.\n")
	return b.String()
}
