package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingsdigitallab/refida/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search the
indexes.

By default, the server communicates over stdio using JSON-RPC. Use --port
to serve over streamable HTTP instead.

Examples:
  # Stdio mode (default)
  refida mcp serve

  # HTTP mode
  refida mcp serve --port 8080

Tools: search, explain, index_info. Resource: refida://indexes.`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	if err := ensureServices(cmd, Options{}); err != nil {
		return err
	}
	if searchService == nil {
		return errors.New("search service not configured")
	}

	search := currentSearchSettings()
	ports := &mcp.Ports{Search: searchService}
	opts := mcp.Options{
		DefaultLimit: search.Limit,
		MinScore:     search.MinScore,
		MaxSnippets:  search.MaxSnippets,
	}

	server, err := mcp.NewServer(ports, opts)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
