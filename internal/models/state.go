// ABOUTME: Closed enums for lead status, conversation state and message role
// ABOUTME: Each enum parses from and persists as its lowercase wire name
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LeadStatus is the funnel position of a lead
type LeadStatus uint8

const (
	LeadNew LeadStatus = iota + 1
	LeadContacted
	LeadRejected
	LeadExited
	LeadConverted
)

var leadStatusNames = map[LeadStatus]string{
	LeadNew:       "new",
	LeadContacted: "contacted",
	LeadRejected:  "rejected",
	LeadExited:    "exited",
	LeadConverted: "converted",
}

// LeadStatuses lists every status in funnel order
func LeadStatuses() []LeadStatus {
	return []LeadStatus{LeadNew, LeadContacted, LeadRejected, LeadExited, LeadConverted}
}

func (s LeadStatus) String() string {
	if name, ok := leadStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LeadStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses
func (s LeadStatus) Valid() bool {
	_, ok := leadStatusNames[s]
	return ok
}

// ParseLeadStatus converts a wire name back into a LeadStatus
func ParseLeadStatus(name string) (LeadStatus, error) {
	for s, n := range leadStatusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown lead status %q", name)
}

// Value implements driver.Valuer
func (s LeadStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid lead status %d", uint8(s))
	}
	return s.String(), nil
}

// Scan implements sql.Scanner
func (s *LeadStatus) Scan(src any) error {
	name, err := scanName(src)
	if err != nil {
		return err
	}
	parsed, err := ParseLeadStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s LeadStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *LeadStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseLeadStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ConversationState is the position of a conversation in the outreach script
type ConversationState uint8

const (
	StateNew ConversationState = iota + 1
	StateFirstSent
	StateQualifying
	StateSoftTransition
	StateRejected
	StateConverted
	StateExited
)

var conversationStateNames = map[ConversationState]string{
	StateNew:            "new",
	StateFirstSent:      "first_sent",
	StateQualifying:     "qualifying",
	StateSoftTransition: "soft_transition",
	StateRejected:       "rejected",
	StateConverted:      "converted",
	StateExited:         "exited",
}

func (s ConversationState) String() string {
	if name, ok := conversationStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConversationState(%d)", uint8(s))
}

// Valid reports whether s is one of the declared states
func (s ConversationState) Valid() bool {
	_, ok := conversationStateNames[s]
	return ok
}

// Terminal reports whether s is absorbing
func (s ConversationState) Terminal() bool {
	return s == StateRejected || s == StateConverted || s == StateExited
}

// ParseConversationState converts a wire name back into a ConversationState
func ParseConversationState(name string) (ConversationState, error) {
	for s, n := range conversationStateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown conversation state %q", name)
}

// Value implements driver.Valuer
func (s ConversationState) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid conversation state %d", uint8(s))
	}
	return s.String(), nil
}

// Scan implements sql.Scanner
func (s *ConversationState) Scan(src any) error {
	name, err := scanName(src)
	if err != nil {
		return err
	}
	parsed, err := ParseConversationState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ConversationState) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Role identifies the author of a message
type Role uint8

const (
	RoleBot Role = iota + 1
	RoleUser
)

// Valid reports whether r names a known author
func (r Role) Valid() bool { return r == RoleBot || r == RoleUser }

func (r Role) String() string {
	switch r {
	case RoleBot:
		return "bot"
	case RoleUser:
		return "user"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole converts a wire name back into a Role
func ParseRole(name string) (Role, error) {
	switch name {
	case "bot":
		return RoleBot, nil
	case "user":
		return RoleUser, nil
	}
	return 0, fmt.Errorf("unknown message role %q", name)
}

// Value implements driver.Valuer
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid message role %d", uint8(r))
	}
	return r.String(), nil
}

// Scan implements sql.Scanner
func (r *Role) Scan(src any) error {
	name, err := scanName(src)
	if err != nil {
		return err
	}
	parsed, err := ParseRole(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

func scanName(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("unexpected NULL enum value")
	}
	return "", fmt.Errorf("cannot scan %T into enum", src)
}
