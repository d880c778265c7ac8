// ABOUTME: Tests for the operator MCP tool handlers over in-memory SQLite
// ABOUTME: Decodes each tool's JSON text result
package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/dmagent/internal/conversation"
	"github.com/harper/dmagent/internal/leads"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/ratelimit"
	"github.com/harper/dmagent/internal/storage/sqlite"
	"github.com/harper/dmagent/internal/storage/sqlstore"
)

type fakeIntake struct{ got []string }

func (f *fakeIntake) AddHandles(_ context.Context, handles []string) (leads.Result, error) {
	f.got = handles
	return leads.Result{Added: handles}, nil
}

func newHandlers(t *testing.T, intake LeadAdder) (*Handlers, *sqlstore.Store) {
	t.Helper()
	store, err := sqlite.OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	limiter := ratelimit.New(store, ratelimit.DefaultConfig())
	mgr := conversation.NewManager(store, nil, limiter, conversation.DefaultConfig())
	return NewHandlers(store, limiter, mgr, intake, nil), store
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error: %v", res.Content)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
}

func TestBotStatus(t *testing.T) {
	h, store := newHandlers(t, nil)
	ctx := context.Background()
	if _, err := store.UpsertLead(ctx, models.NewLead{Handle: "shop"}); err != nil {
		t.Fatal(err)
	}

	res, _ := h.BotStatus(ctx, call(nil))
	var body struct {
		Budget ratelimit.Status `json:"budget"`
		Leads  map[string]int   `json:"leads"`
	}
	decode(t, res, &body)
	if body.Leads["new"] != 1 || body.Leads["converted"] != 0 {
		t.Errorf("leads = %v", body.Leads)
	}
	if body.Budget.Limit != 8 {
		t.Errorf("limit = %d, want 8 for an unset account date", body.Budget.Limit)
	}
}

func TestListLeads(t *testing.T) {
	h, store := newHandlers(t, nil)
	ctx := context.Background()
	for _, handle := range []string{"a", "b", "c"} {
		if _, err := store.UpsertLead(ctx, models.NewLead{Handle: handle}); err != nil {
			t.Fatal(err)
		}
	}

	res, _ := h.ListLeads(ctx, call(map[string]interface{}{"status": "new", "limit": float64(2)}))
	var body struct {
		Count int           `json:"count"`
		Leads []models.Lead `json:"leads"`
	}
	decode(t, res, &body)
	if body.Count != 2 || body.Leads[0].Handle != "a" {
		t.Errorf("list = %+v", body)
	}

	res, _ = h.ListLeads(ctx, call(map[string]interface{}{"status": "bogus"}))
	if !res.IsError {
		t.Error("unknown status should be an error result")
	}
}

func TestAddLeads(t *testing.T) {
	intake := &fakeIntake{}
	h, _ := newHandlers(t, intake)

	res, _ := h.AddLeads(context.Background(), call(map[string]interface{}{"handles": []interface{}{"@shop", "cafe"}}))
	var body leads.Result
	decode(t, res, &body)
	if len(intake.got) != 2 || len(body.Added) != 2 {
		t.Errorf("intake got %v, result %+v", intake.got, body)
	}

	res, _ = h.AddLeads(context.Background(), call(map[string]interface{}{}))
	if !res.IsError {
		t.Error("missing handles should be an error result")
	}

	noIntake, _ := newHandlers(t, nil)
	res, _ = noIntake.AddLeads(context.Background(), call(map[string]interface{}{"handles": []interface{}{"shop"}}))
	if !res.IsError {
		t.Error("add_leads without intake should be an error result")
	}
}

func TestSetAccountDate(t *testing.T) {
	h, store := newHandlers(t, nil)
	ctx := context.Background()

	res, _ := h.SetAccountDate(ctx, call(map[string]interface{}{"date": "2026-01-15"}))
	var body map[string]interface{}
	decode(t, res, &body)

	st, err := store.BotState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.AccountCreatedDate != "2026-01-15" {
		t.Errorf("AccountCreatedDate = %q", st.AccountCreatedDate)
	}

	res, _ = h.SetAccountDate(ctx, call(map[string]interface{}{"date": "15/01/2026"}))
	if !res.IsError {
		t.Error("malformed date should be an error result")
	}
}

func TestConvertLeadAndHistory(t *testing.T) {
	h, store := newHandlers(t, nil)
	ctx := context.Background()
	id, err := store.UpsertLead(ctx, models.NewLead{Handle: "buyer"})
	if err != nil {
		t.Fatal(err)
	}
	conv, err := store.GetConversation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AppendMessage(ctx, conv.ID, models.RoleBot, "Salom!"); err != nil {
		t.Fatal(err)
	}

	res, _ := h.ConvertLead(ctx, call(map[string]interface{}{"handle": "@Buyer"}))
	var converted map[string]interface{}
	decode(t, res, &converted)
	if converted["status"] != "converted" {
		t.Errorf("convert result = %v", converted)
	}

	res, _ = h.ConversationHistory(ctx, call(map[string]interface{}{"handle": "buyer"}))
	var history struct {
		Conversation struct {
			State string `json:"state"`
		} `json:"conversation"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, res, &history)
	if history.Conversation.State != "converted" {
		t.Errorf("state = %s, want converted", history.Conversation.State)
	}
	if len(history.Messages) != 1 || history.Messages[0].Role != "bot" {
		t.Errorf("messages = %+v", history.Messages)
	}

	res, _ = h.ConvertLead(ctx, call(map[string]interface{}{"handle": "nobody"}))
	if !res.IsError {
		t.Error("converting an unknown lead should be an error result")
	}
}
