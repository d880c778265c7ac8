// ABOUTME: MCP command starts the operator Model Context Protocol server
// ABOUTME: Lets an LLM agent inspect leads and bot state over stdio
package commands

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for operator agents",
		Long: `Start MCP server for operator agents

Runs dmagent as an MCP (Model Context Protocol) server on stdio. Tools
cover bot status, lead listing, conversation history, conversions and
the account date. add_leads is available when generator and platform
credentials are configured.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
		Example: `  # Start MCP server (typically launched by an MCP client)
  dmagent mcp

  # Client configuration:
  # {
  #   "mcpServers": {
  #     "dmagent": {
  #       "command": "dmagent",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	n := needs(0)
	if cfg.RequireRun() == nil {
		n = needGenerator | needPlatform
	}
	a, err := buildApp(ctx, cfg, n)
	if err != nil {
		return err
	}
	defer a.Close()

	var intake mcp.LeadAdder
	if n != 0 {
		if err := a.login(ctx); err != nil {
			logger.Warn("add_leads disabled", zap.Error(err))
		} else {
			intake = a.intake()
		}
	}

	handlers := mcp.NewHandlers(a.store, a.limiter, a.convs, intake, logger.Named("mcp"))
	server := mcp.NewServer(build.Version, handlers)

	logger.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
