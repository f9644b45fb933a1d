package cmd

import (
	"github.com/spf13/cobra"

	"github.com/complyflow/complyflow/internal/mcp"
	"github.com/complyflow/complyflow/internal/models"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client scan pages and query stored scans. Configure
it with:

  {
    "mcpServers": {
      "complyflow": { "command": "complyflow", "args": ["mcp"] }
    }
  }

Available tools: a11y_scan_url, a11y_get_scan, a11y_latest_scan,
a11y_list_scans, a11y_statistics, and a11y_explain_scan when an
Anthropic API key is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		sc, err := newScanner(s, models.ScanTypeAccessibility, nil)
		if err != nil {
			return err
		}

		var explainer mcp.Explainer
		if c := newLLMClient(); c != nil {
			explainer = c
		}
		return mcp.NewServer(sc, s, explainer).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
