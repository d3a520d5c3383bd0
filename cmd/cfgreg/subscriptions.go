package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/cfgregistry/internal/client"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
	"github.com/spf13/cobra"
)

const filterPrefix = "filter-"

var subscriptionsCmd = &cobra.Command{
	Use:     "subscriptions",
	Aliases: []string{"subs"},
	Short:   "Manage consumer subscriptions",
	GroupID: "registry",
}

var subscriptionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var s model.ConfigurationSubscription
		s.MTAID, _ = f.GetString("mta-id")
		s.SpaceID, _ = f.GetString("space-id")
		s.AppName, _ = f.GetString("app")
		s.ResourceName, _ = f.GetString("resource")
		s.ModuleID, _ = f.GetString("module-id")
		s.ResourceID, _ = f.GetString("resource-id")

		filter, err := filterFromFlags(cmd, filterPrefix)
		if err != nil {
			return err
		}
		s.Filter = filter

		out, err := registryClient.AddSubscription(context.Background(), s)
		if err != nil {
			return fmt.Errorf("adding subscription: %w", err)
		}
		return printSubscription(out)
	},
}

var subscriptionsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := registryClient.GetSubscription(context.Background(), id)
		if err != nil {
			return fmt.Errorf("getting subscription %d: %w", id, err)
		}
		return printSubscription(s)
	},
}

var subscriptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var c registry.SubscriptionCriteria
		c.MTAID, _ = f.GetString("mta-id")
		c.SpaceID, _ = f.GetString("space-id")
		c.AppName, _ = f.GetString("app")
		c.ResourceName, _ = f.GetString("resource")

		subs, err := registryClient.ListSubscriptions(context.Background(), c)
		if err != nil {
			return fmt.Errorf("listing subscriptions: %w", err)
		}
		return printSubscriptions(subs)
	},
}

var subscriptionsMatchCmd = &cobra.Command{
	Use:   "match <entry-id>...",
	Short: "List subscriptions whose filter matches any of the given entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.MatchRequest{}
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			req.EntryIDs = append(req.EntryIDs, id)
		}
		subs, err := registryClient.MatchSubscriptions(context.Background(), req)
		if err != nil {
			return fmt.Errorf("matching subscriptions: %w", err)
		}
		return printSubscriptions(subs)
	},
}

var subscriptionsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the given fields of a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		f := cmd.Flags()
		var d model.SubscriptionDelta
		for _, p := range []struct {
			name string
			dst  *model.Optional[string]
		}{
			{"mta-id", &d.MTAID},
			{"space-id", &d.SpaceID},
			{"app", &d.AppName},
			{"resource", &d.ResourceName},
			{"module-id", &d.ModuleID},
			{"resource-id", &d.ResourceID},
		} {
			if f.Changed(p.name) {
				v, _ := f.GetString(p.name)
				*p.dst = model.Some(v)
			}
		}
		if filterChanged(cmd) {
			filter, err := filterFromFlags(cmd, filterPrefix)
			if err != nil {
				return err
			}
			d.Filter = model.Some(filter)
		}
		if d.IsEmpty() {
			return fmt.Errorf("nothing to update")
		}

		s, err := registryClient.UpdateSubscription(context.Background(), id, d)
		if err != nil {
			return fmt.Errorf("updating subscription %d: %w", id, err)
		}
		return printSubscription(s)
	},
}

var subscriptionsRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a subscription",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := registryClient.RemoveSubscription(context.Background(), id); err != nil {
			return fmt.Errorf("removing subscription %d: %w", id, err)
		}
		fmt.Fprintf(stdout, "removed subscription %d\n", id)
		return nil
	},
}

var subscriptionsRemoveSpaceCmd = &cobra.Command{
	Use:   "remove-space <space-id>",
	Short: "Remove every subscription of a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := registryClient.RemoveSpaceSubscriptions(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("removing subscriptions of space %s: %w", args[0], err)
		}
		fmt.Fprintf(stdout, "removed %d subscriptions\n", n)
		return nil
	},
}

// filterChanged reports whether any filter flag was given. The filter is
// replaced as a whole, so unchanged filter fields are cleared.
func filterChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"nid", "provider-id", "mta", "version", "namespace", "target", "strict", "requester", "required-content-file"} {
		if cmd.Flags().Changed(filterPrefix + name) {
			return true
		}
	}
	return false
}

func addSubscriptionFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("mta-id", "", "id of the subscribing MTA")
	cmd.Flags().String("space-id", "", "GUID of the subscribing space")
	cmd.Flags().String("app", "", "application name")
	cmd.Flags().String("resource", "", "resource name")
}

func init() {
	addSubscriptionFieldFlags(subscriptionsAddCmd)
	subscriptionsAddCmd.Flags().String("module-id", "", "module id")
	subscriptionsAddCmd.Flags().String("resource-id", "", "resource id")
	addFilterFlags(subscriptionsAddCmd, filterPrefix)

	addSubscriptionFieldFlags(subscriptionsUpdateCmd)
	subscriptionsUpdateCmd.Flags().String("module-id", "", "module id")
	subscriptionsUpdateCmd.Flags().String("resource-id", "", "resource id")
	addFilterFlags(subscriptionsUpdateCmd, filterPrefix)

	addSubscriptionFieldFlags(subscriptionsListCmd)

	subscriptionsCmd.AddCommand(subscriptionsAddCmd)
	subscriptionsCmd.AddCommand(subscriptionsGetCmd)
	subscriptionsCmd.AddCommand(subscriptionsListCmd)
	subscriptionsCmd.AddCommand(subscriptionsMatchCmd)
	subscriptionsCmd.AddCommand(subscriptionsUpdateCmd)
	subscriptionsCmd.AddCommand(subscriptionsRemoveCmd)
	subscriptionsCmd.AddCommand(subscriptionsRemoveSpaceCmd)
}
