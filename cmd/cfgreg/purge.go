package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <space-id>",
	Short: "Delete entries and subscriptions no live application accounts for",
	Long: `Purge compares the registry contents of a space with the applications
running in it and deletes stale MTA entries and subscriptions.

The inventory file is a YAML (or JSON) list of applications:

  - name: web
    mta: {id: shop, version: 1.2.0}
    provided_dependency_names: [db-config]
  - name: legacy-app

An empty or missing inventory removes every MTA entry and subscription of the space.`,
	GroupID: "registry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("apps-file")
		apps, err := readInventory(path)
		if err != nil {
			return err
		}
		report, err := registryClient.Purge(context.Background(), args[0], apps)
		if err != nil {
			return fmt.Errorf("purging space %s: %w", args[0], err)
		}
		return printPurgeReport(report)
	},
}

// readInventory decodes a list of live applications. "-" reads stdin.
func readInventory(path string) ([]model.LiveApplication, error) {
	if path == "" {
		return nil, nil
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var apps []model.LiveApplication
	if err := yaml.NewDecoder(r).Decode(&apps); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}
	return apps, nil
}

func init() {
	purgeCmd.Flags().String("apps-file", "", "YAML or JSON list of live applications (- for stdin)")
}
