package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mergington/mhs/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets AI assistants query the activity registry, check
availability, sign students up, and work with the issue tracker.
Configure in Claude Code with:

  {
    "mcpServers": {
      "mhs": { "command": "mhs", "args": ["mcp"] }
    }
  }

Available tools: get_activities, get_activity_details,
check_availability, signup_student, list_issues, create_issue.
Resources: activities://catalog, activities://stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(s, viper.GetString("school.domain"))
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
