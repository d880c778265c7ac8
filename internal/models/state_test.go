// ABOUTME: Tests for the lead status, conversation state and role enums
// ABOUTME: Covers wire names, SQL scanning and JSON round trips

package models

import (
	"encoding/json"
	"testing"
)

func TestLeadStatusNames(t *testing.T) {
	for _, s := range LeadStatuses() {
		parsed, err := ParseLeadStatus(s.String())
		if err != nil {
			t.Fatalf("ParseLeadStatus(%q) error = %v", s, err)
		}
		if parsed != s {
			t.Errorf("ParseLeadStatus(%q) = %v, want %v", s, parsed, s)
		}
	}

	if _, err := ParseLeadStatus("pending"); err == nil {
		t.Error("unknown status should not parse")
	}
	if LeadStatus(0).Valid() {
		t.Error("zero status should be invalid")
	}
	if _, err := LeadStatus(0).Value(); err == nil {
		t.Error("zero status should not be stored")
	}
}

func TestLeadStatusJSON(t *testing.T) {
	data, err := json.Marshal(LeadContacted)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"contacted"` {
		t.Errorf("Marshal = %s, want \"contacted\"", data)
	}

	var s LeadStatus
	if err := json.Unmarshal([]byte(`"converted"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != LeadConverted {
		t.Errorf("Unmarshal = %v, want converted", s)
	}
	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("unknown status should fail to unmarshal")
	}
}

func TestConversationStateTerminal(t *testing.T) {
	tests := []struct {
		state    ConversationState
		name     string
		terminal bool
	}{
		{StateNew, "new", false},
		{StateFirstSent, "first_sent", false},
		{StateQualifying, "qualifying", false},
		{StateSoftTransition, "soft_transition", false},
		{StateRejected, "rejected", true},
		{StateConverted, "converted", true},
		{StateExited, "exited", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			parsed, err := ParseConversationState(tt.name)
			if err != nil || parsed != tt.state {
				t.Errorf("ParseConversationState(%q) = %v, %v", tt.name, parsed, err)
			}
		})
	}
}

func TestScan(t *testing.T) {
	var s ConversationState
	if err := s.Scan([]byte("qualifying")); err != nil {
		t.Fatal(err)
	}
	if s != StateQualifying {
		t.Errorf("Scan = %v, want qualifying", s)
	}

	var r Role
	if err := r.Scan("user"); err != nil {
		t.Fatal(err)
	}
	if r != RoleUser {
		t.Errorf("Scan = %v, want user", r)
	}

	if err := r.Scan(nil); err == nil {
		t.Error("NULL role should not scan")
	}
	if err := r.Scan(42); err == nil {
		t.Error("integer role should not scan")
	}
	if err := r.Scan("admin"); err == nil {
		t.Error("unknown role should not scan")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleBot, RoleUser} {
		if !r.Valid() {
			t.Errorf("%v should be valid", r)
		}
	}
	for _, r := range []Role{0, 3, 255} {
		if r.Valid() {
			t.Errorf("Role(%d) should not be valid", uint8(r))
		}
	}
}

func TestRoleValue(t *testing.T) {
	v, err := RoleBot.Value()
	if err != nil || v != "bot" {
		t.Errorf("RoleBot.Value() = %v, %v", v, err)
	}
	if _, err := Role(9).Value(); err == nil {
		t.Error("unknown role should not be stored")
	}
}
