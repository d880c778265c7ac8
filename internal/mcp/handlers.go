// ABOUTME: MCP tool handler implementations for the operator server
// ABOUTME: Tool failures are returned as error results, never as protocol errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/conversation"
	"github.com/harper/dmagent/internal/leads"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/ratelimit"
	"github.com/harper/dmagent/internal/storage"
)

// Limiter reads the send budget
type Limiter interface {
	Status(ctx context.Context) (ratelimit.Status, error)
}

// Converter applies the external conversion
type Converter interface {
	MarkConverted(ctx context.Context, handle string) error
}

// LeadAdder scrapes and stores handles
type LeadAdder interface {
	AddHandles(ctx context.Context, handles []string) (leads.Result, error)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	store   storage.Store
	limiter Limiter
	convs   Converter
	intake  LeadAdder
	logger  *zap.Logger
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// BotStatus handles the bot_status tool
func (h *Handlers) BotStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.limiter.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read bot state: %v", err)), nil
	}
	counts, err := h.store.CountLeadsByStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count leads: %v", err)), nil
	}

	byName := make(map[string]int, len(counts))
	for _, s := range models.LeadStatuses() {
		byName[s.String()] = counts[s]
	}
	return jsonResult(map[string]interface{}{
		"budget": status,
		"leads":  byName,
	})
}

// ListLeads handles the list_leads tool
func (h *Handlers) ListLeads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := storage.LeadFilter{Limit: request.GetInt("limit", 50)}
	if name := request.GetString("status", ""); name != "" {
		status, err := models.ParseLeadStatus(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Status = status
	}

	list, err := h.store.ListLeads(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list leads: %v", err)), nil
	}
	if list == nil {
		list = []models.Lead{}
	}
	return jsonResult(map[string]interface{}{
		"count": len(list),
		"leads": list,
	})
}

// AddLeads handles the add_leads tool
func (h *Handlers) AddLeads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handles, err := request.RequireStringSlice("handles")
	if err != nil || len(handles) == 0 {
		return mcp.NewToolResultError("handles argument is required and must be a non-empty array of strings"), nil
	}
	if h.intake == nil {
		return mcp.NewToolResultError("lead intake is unavailable: platform credentials are not configured"), nil
	}

	res, err := h.intake.AddHandles(ctx, handles)
	if err != nil {
		h.logger.Error("add_leads failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed after %s: %v", res, err)), nil
	}
	return jsonResult(res)
}

// SetAccountDate handles the set_account_date tool
func (h *Handlers) SetAccountDate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := request.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date argument is required and must be a string"), nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("date must be YYYY-MM-DD: %v", err)), nil
	}
	if err := h.store.SetAccountCreatedDate(ctx, date); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save date: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"success": true, "account_created_date": date})
}

// ConvertLead handles the convert_lead tool
func (h *Handlers) ConvertLead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := request.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError("handle argument is required and must be a string"), nil
	}
	handle = models.NormalizeHandle(handle)
	if err := h.convs.MarkConverted(ctx, handle); err != nil {
		if errors.Is(err, conversation.ErrUnknownLead) {
			return mcp.NewToolResultError(fmt.Sprintf("no lead @%s", handle)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to convert lead: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"success": true, "handle": handle, "status": models.LeadConverted})
}

// ConversationHistory handles the conversation_history tool
func (h *Handlers) ConversationHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := request.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError("handle argument is required and must be a string"), nil
	}

	lead, err := h.store.GetLeadByHandle(ctx, handle)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load lead: %v", err)), nil
	}
	if lead == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no lead @%s", models.NormalizeHandle(handle))), nil
	}
	conv, err := h.store.GetConversation(ctx, lead.ID)
	if err != nil || conv == nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load conversation: %v", err)), nil
	}
	history, err := h.store.History(ctx, conv.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load messages: %v", err)), nil
	}
	if history == nil {
		history = []models.Message{}
	}

	return jsonResult(map[string]interface{}{
		"lead":         lead,
		"conversation": conv,
		"messages":     history,
	})
}
