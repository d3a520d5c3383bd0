package main

import (
	"os"

	"github.com/alfredjeanlab/cfgregistry/internal/client"
	"github.com/alfredjeanlab/cfgregistry/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool

	registryClient client.RegistryClient
)

func defaultServer() string {
	if s := os.Getenv("CFGREG_SERVER"); s != "" {
		return s
	}
	if u := activeProfile().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("CFGREG_TOKEN"); s != "" {
		return s
	}
	return activeProfile().Token
}

var rootCmd = &cobra.Command{
	Use:          "cfgreg <command>",
	Short:        "Configuration registry for MTA deployments",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		registryClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if registryClient != nil {
			registryClient.Close()
		}
	},
}

// noClient skips the HTTP client setup for commands that do not talk to a server.
func noClient(cmd *cobra.Command, args []string) error { return nil }

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "registry HTTP URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "registry", Title: "Registry:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	ui.Init()
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Registry
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(subscriptionsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
