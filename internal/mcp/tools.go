// ABOUTME: MCP tool definitions and registration for the operator server
// ABOUTME: Defines JSON schemas for the six lead and bot-state tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/storage"
)

// NewServer builds an MCP server with every tool registered
func NewServer(version string, h *Handlers) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("dmagent", version)
	RegisterTools(server, h)
	return server
}

// NewHandlers wires the tool handlers. intake may be nil when platform
// credentials are not configured; add_leads then reports an error.
func NewHandlers(store storage.Store, limiter Limiter, convs Converter, intake LeadAdder, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, limiter: limiter, convs: convs, intake: intake, logger: logger}
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	// 1. bot_status - send budget, pause and funnel counts
	server.AddTool(mcp.Tool{
		Name:        "bot_status",
		Description: "Show today's sent count and limit, account age, kill-switch pause and lead counts per status.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.BotStatus)

	// 2. list_leads - leads with optional status filter
	server.AddTool(mcp.Tool{
		Name:        "list_leads",
		Description: "List leads, optionally filtered by status (new, contacted, rejected, exited, converted).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Only leads with this status",
					"enum":        []string{"new", "contacted", "rejected", "exited", "converted"},
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of leads to return (default: 50)",
					"default":     50,
				},
			},
		},
	}, h.ListLeads)

	// 3. add_leads - scrape and add handles
	server.AddTool(mcp.Tool{
		Name:        "add_leads",
		Description: "Scrape each profile, detect its niche and add it as a new lead. Known handles are skipped.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"handles": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Account handles, with or without @",
				},
			},
			Required: []string{"handles"},
		},
	}, h.AddLeads)

	// 4. set_account_date - warmup banding start
	server.AddTool(mcp.Tool{
		Name:        "set_account_date",
		Description: "Set the bot account's creation date (YYYY-MM-DD) used for warmup daily limits.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"date": map[string]interface{}{
					"type":        "string",
					"description": "Creation date as YYYY-MM-DD",
				},
			},
			Required: []string{"date"},
		},
	}, h.SetAccountDate)

	// 5. convert_lead - external conversion
	server.AddTool(mcp.Tool{
		Name:        "convert_lead",
		Description: "Mark a lead as converted. The conversation stops receiving automated replies.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"handle": map[string]interface{}{
					"type":        "string",
					"description": "Lead handle",
				},
			},
			Required: []string{"handle"},
		},
	}, h.ConvertLead)

	// 6. conversation_history - ordered messages for one lead
	server.AddTool(mcp.Tool{
		Name:        "conversation_history",
		Description: "Get the conversation state and every message exchanged with a lead, oldest first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"handle": map[string]interface{}{
					"type":        "string",
					"description": "Lead handle",
				},
			},
			Required: []string{"handle"},
		},
	}, h.ConversationHistory)
}
