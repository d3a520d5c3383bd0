package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alfredjeanlab/cfgregistry/internal/client"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/spf13/cobra"
)

var entriesCmd = &cobra.Command{
	Use:     "entries",
	Aliases: []string{"entry"},
	Short:   "Publish, query and remove configuration entries",
	GroupID: "registry",
}

var entriesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Publish a configuration entry",
	Example: `  cfgreg entries add --mta shop --dependency db --version 1.2.0 \
      --target org-1/space-a --content-file db.yaml
  cfgreg entries add --provider-id shop:db --target org-1 --owner-only`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		nid, _ := f.GetString("nid")
		providerID, _ := f.GetString("provider-id")
		mtaID, _ := f.GetString("mta")
		dep, _ := f.GetString("dependency")
		version, _ := f.GetString("version")
		namespace, _ := f.GetString("namespace")
		targetStr, _ := f.GetString("target")
		spaceID, _ := f.GetString("space-id")
		contentID, _ := f.GetString("content-id")
		contentFile, _ := f.GetString("content-file")

		if providerID == "" && mtaID != "" && dep != "" {
			providerID = model.ComputeProviderID(mtaID, dep)
		}
		target, err := model.ParseTarget(targetStr)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		visibility, err := visibilityFlag(cmd)
		if err != nil {
			return err
		}
		content, err := readContent(contentFile)
		if err != nil {
			return err
		}

		e, err := registryClient.AddEntry(context.Background(), model.ConfigurationEntry{
			ProviderNID:       nid,
			ProviderID:        providerID,
			ProviderVersion:   version,
			ProviderNamespace: namespace,
			Target:            target,
			Content:           content,
			Visibility:        visibility,
			SpaceID:           spaceID,
			ContentID:         contentID,
		})
		if err != nil {
			return fmt.Errorf("adding entry: %w", err)
		}
		return printEntry(e)
	},
}

var entriesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a configuration entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		e, err := registryClient.GetEntry(context.Background(), id)
		if err != nil {
			return fmt.Errorf("getting entry %d: %w", id, err)
		}
		return printEntry(e)
	},
}

var entriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries matching the given criteria",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		req := &client.ListEntriesRequest{}
		req.ProviderNID, _ = f.GetString("nid")
		req.ProviderID, _ = f.GetString("provider-id")
		req.MTAID, _ = f.GetString("mta")
		req.Namespace, _ = f.GetString("namespace")
		req.Version, _ = f.GetString("version")
		req.Target, _ = f.GetString("target")
		req.SpaceID, _ = f.GetString("space-id")
		req.VisibleTo, _ = f.GetStringArray("visible-to")

		entries, err := registryClient.ListEntries(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		return printEntries(entries)
	},
}

var entriesResolveCmd = &cobra.Command{
	Use:     "resolve",
	Short:   "Resolve entries for a consumer, falling back to the global configuration space",
	Example: `  cfgreg entries resolve --mta shop --version ">=1.0.0" --target org-1/space-a --requester org-1/space-b`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFromFlags(cmd, "")
		if err != nil {
			return err
		}
		visibleTo, err := targetsFlag(cmd, "visible-to")
		if err != nil {
			return err
		}
		entries, err := registryClient.ResolveEntries(context.Background(), filter, visibleTo)
		if err != nil {
			return fmt.Errorf("resolving entries: %w", err)
		}
		return printEntries(entries)
	},
}

var entriesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the given fields of an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		f := cmd.Flags()
		var d model.EntryDelta
		setString := func(name string, dst *model.Optional[string]) {
			if f.Changed(name) {
				v, _ := f.GetString(name)
				*dst = model.Some(v)
			}
		}
		setString("nid", &d.ProviderNID)
		setString("provider-id", &d.ProviderID)
		setString("version", &d.ProviderVersion)
		setString("namespace", &d.ProviderNamespace)
		setString("space-id", &d.SpaceID)
		setString("content-id", &d.ContentID)
		if f.Changed("target") {
			s, _ := f.GetString("target")
			t, err := model.ParseTarget(s)
			if err != nil {
				return fmt.Errorf("--target: %w", err)
			}
			d.Target = model.Some(t)
		}
		if f.Changed("visible-to") || f.Changed("owner-only") {
			vis, err := visibilityFlag(cmd)
			if err != nil {
				return err
			}
			d.Visibility = model.Some(vis)
		}
		if f.Changed("content-file") {
			path, _ := f.GetString("content-file")
			c, err := readContent(path)
			if err != nil {
				return err
			}
			d.Content = model.Some(c)
		}
		if d.IsEmpty() {
			return fmt.Errorf("nothing to update")
		}

		e, err := registryClient.UpdateEntry(context.Background(), id, d)
		if err != nil {
			return fmt.Errorf("updating entry %d: %w", id, err)
		}
		return printEntry(e)
	},
}

var entriesRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a configuration entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := registryClient.RemoveEntry(context.Background(), id); err != nil {
			return fmt.Errorf("removing entry %d: %w", id, err)
		}
		fmt.Fprintf(stdout, "removed entry %d\n", id)
		return nil
	},
}

var entriesRemoveSpaceCmd = &cobra.Command{
	Use:   "remove-space <space-id>",
	Short: "Remove every entry published from a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := registryClient.RemoveSpaceEntries(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("removing entries of space %s: %w", args[0], err)
		}
		fmt.Fprintf(stdout, "removed %d entries\n", n)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func targetsFlag(cmd *cobra.Command, name string) ([]model.Target, error) {
	raw, _ := cmd.Flags().GetStringArray(name)
	var out []model.Target
	for _, s := range raw {
		t, err := model.ParseTarget(s)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// visibilityFlag returns nil when neither --visible-to nor --owner-only was
// given, so the server applies the default visibility.
func visibilityFlag(cmd *cobra.Command) ([]model.Target, error) {
	if ownerOnly, _ := cmd.Flags().GetBool("owner-only"); ownerOnly {
		return []model.Target{}, nil
	}
	return targetsFlag(cmd, "visible-to")
}

// readContent decodes a YAML or JSON content document. "-" reads stdin.
func readContent(path string) (model.Content, error) {
	if path == "" {
		return model.Content{}, nil
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return model.Content{}, err
		}
		defer f.Close()
		r = f
	}
	c, err := model.ParseContentYAML(r)
	if err != nil {
		return model.Content{}, fmt.Errorf("reading content %s: %w", path, err)
	}
	return c, nil
}

func addEntryFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("nid", model.ProviderNIDMTA, "provider namespace id")
	cmd.Flags().String("provider-id", "", "provider id")
	cmd.Flags().String("version", "", "provider version")
	cmd.Flags().String("namespace", "", "provider namespace")
	cmd.Flags().String("target", "", "target as org/space")
	cmd.Flags().StringArray("visible-to", nil, "org/space or org allowed to read the entry (repeatable)")
	cmd.Flags().Bool("owner-only", false, "restrict visibility to the owning org")
	cmd.Flags().String("space-id", "", "GUID of the publishing space")
	cmd.Flags().String("content-id", "", "id of the content document")
	cmd.Flags().String("content-file", "", "YAML or JSON content document (- for stdin)")
}

func init() {
	addEntryFieldFlags(entriesAddCmd)
	entriesAddCmd.Flags().String("mta", "", "MTA id, combined with --dependency into the provider id")
	entriesAddCmd.Flags().String("dependency", "", "provided dependency name")
	_ = entriesAddCmd.MarkFlagRequired("target")

	addEntryFieldFlags(entriesUpdateCmd)

	entriesListCmd.Flags().String("nid", "", "provider namespace id")
	entriesListCmd.Flags().String("provider-id", "", "provider id")
	entriesListCmd.Flags().String("mta", "", "MTA id (matches provider ids <mta>:*)")
	entriesListCmd.Flags().String("namespace", "", "provider namespace")
	entriesListCmd.Flags().String("version", "", "version requirement, e.g. >=1.0.0")
	entriesListCmd.Flags().String("target", "", "org/space or org")
	entriesListCmd.Flags().String("space-id", "", "GUID of the publishing space")
	entriesListCmd.Flags().StringArray("visible-to", nil, "only entries visible to org/space (repeatable)")

	addFilterFlags(entriesResolveCmd, "")
	entriesResolveCmd.Flags().StringArray("visible-to", nil, "only entries visible to org/space (repeatable)")

	entriesCmd.AddCommand(entriesAddCmd)
	entriesCmd.AddCommand(entriesGetCmd)
	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesResolveCmd)
	entriesCmd.AddCommand(entriesUpdateCmd)
	entriesCmd.AddCommand(entriesRemoveCmd)
	entriesCmd.AddCommand(entriesRemoveSpaceCmd)
}
