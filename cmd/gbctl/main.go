// gbctl is the operator CLI for the global block service. It speaks the
// service's HTTP API; it never touches the database directly.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"globalblock/internal/support"
)

var (
	serverURL string
	apiToken  string
)

var rootCmd = &cobra.Command{
	Use:           "gbctl",
	Short:         "Manage federation-wide blocks",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env")
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", support.GetEnv("GB_API_URL", "http://localhost:8082"), "Base URL of the block service")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", support.GetEnv("GB_API_TOKEN", ""), "Bearer token for the command API")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(localDisableCmd)
	rootCmd.AddCommand(localEnableCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(listCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
