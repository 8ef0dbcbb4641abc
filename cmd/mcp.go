package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/osbuddy/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio that lets AI agents
list, read, start and delete OS Buddy chats and ask the tutor questions. If
notes have been ingested, search_notes is offered as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := newServiceClient(cfg, localIdentity(cfg).UserID)

		var notes mcpserver.Notes
		if store, ok, err := openKnowledge(cfg); ok {
			notes = store
		} else if verbose {
			fmt.Fprintf(os.Stderr, "search_notes disabled: %v\n", err)
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "osbuddy MCP server started on stdio (service=%s)\n", cfg.ServiceURL)
		return mcpserver.NewServer(client, notes).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
