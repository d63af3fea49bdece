package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/companion/internal/cli"
	mcpadapter "github.com/aretw0/companion/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the companion to MCP clients: tools to ask, browse the history,
toggle favorites and change settings, plus the state as a resource.

Supported transports:
- stdio (default): standard input and output, for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Logs go to stderr, so stdout stays clean for JSON-RPC.
		logger, err := cli.NewLogger(cfg.Log.Level, transport == "stdio")
		if err != nil {
			return err
		}
		rt, err := cli.BuildApp(sc, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.App.Close(context.Background()); err != nil {
				logger.Error("Failed to close companion", "err", err)
			}
		}()

		srv := mcpadapter.NewServer(rt.App, mcpadapter.WithLogger(logger.With("component", "mcp")))
		switch transport {
		case "sse":
			logger.Info("Starting Companion MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(sc, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mcp server failed: %w", err)
			}
			logger.Info("MCP server stopped", "signal", sc.Signal())
			return nil
		default:
			return srv.ServeStdio()
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: stdio or sse")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (sse only)")
}
