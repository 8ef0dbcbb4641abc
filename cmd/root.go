package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "osbuddy",
	Short: "An operating-systems tutor you can chat with",
	Long: `OS Buddy is a chat tutor for operating systems. The server command runs
the session service and the tutor behind it; the chat command serves the
browser chat client, which renders Markdown answers with Mermaid diagrams.
Agents can reach the same chats over MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".osbuddy.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
