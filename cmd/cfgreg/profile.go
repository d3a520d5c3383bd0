package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:               "profile",
	Short:             "Manage connection profiles for registry deployments",
	GroupID:           "system",
	PersistentPreRunE: noClient,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or replace a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("profile name cannot be empty")
		}
		p := Profile{URL: strings.TrimRight(args[1], "/")}
		p.Token, _ = cmd.Flags().GetString("token")
		p.NATSURL, _ = cmd.Flags().GetString("nats")
		p.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		if err := p.validate(); err != nil {
			return err
		}

		pf, err := loadProfiles()
		if err != nil {
			return err
		}
		pf.Profiles[name] = p
		if len(pf.Profiles) == 1 {
			pf.Active = name
		}
		if err := saveProfiles(pf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (%s)\n", name, p.URL)
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := loadProfiles()
		if err != nil {
			return err
		}
		name, _, err := pf.lookup(args[0])
		if err != nil {
			return err
		}
		delete(pf.Profiles, name)
		if pf.Active == name {
			pf.Active = ""
		}
		if err := saveProfiles(pf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %s\n", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := loadProfiles()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(profileSummaries(pf))
		}
		if len(pf.Profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No profiles. Add one with 'cfgreg profile add <name> <url>'.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tNATS\tTOKEN")
		for _, name := range slices.Sorted(maps.Keys(pf.Profiles)) {
			p := pf.Profiles[name]
			marker := "  "
			if name == pf.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, p.URL, orDash(p.NATSURL), orDash(maskToken(p.Token)))
		}
		return w.Flush()
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the default for later commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := loadProfiles()
		if err != nil {
			return err
		}
		name, _, err := pf.lookup(args[0])
		if err != nil {
			return err
		}
		pf.Active = name
		if err := saveProfiles(pf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Using profile %s\n", name)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a profile (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := loadProfiles()
		if err != nil {
			return err
		}
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		name, p, err := pf.lookup(name)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		active := ""
		if name == pf.Active {
			active = " (active)"
		}
		fmt.Fprintf(w, "Name:\t%s%s\n", name, active)
		fmt.Fprintf(w, "URL:\t%s\n", p.URL)
		fmt.Fprintf(w, "gRPC:\t%s\n", orDash(p.GRPCAddr))
		fmt.Fprintf(w, "NATS:\t%s\n", orDash(p.NATSURL))
		fmt.Fprintf(w, "Token:\t%s\n", orDash(maskToken(p.Token)))
		return w.Flush()
	},
}

// profileSummary is the JSON form of a listed profile. Tokens are masked.
type profileSummary struct {
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	URL      string `json:"url"`
	NATSURL  string `json:"nats_url,omitempty"`
	GRPCAddr string `json:"grpc_addr,omitempty"`
	Token    string `json:"token,omitempty"`
}

func profileSummaries(pf profileFile) []profileSummary {
	out := make([]profileSummary, 0, len(pf.Profiles))
	for _, name := range slices.Sorted(maps.Keys(pf.Profiles)) {
		p := pf.Profiles[name]
		out = append(out, profileSummary{
			Name:     name,
			Active:   name == pf.Active,
			URL:      p.URL,
			NATSURL:  p.NATSURL,
			GRPCAddr: p.GRPCAddr,
			Token:    maskToken(p.Token),
		})
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	profileAddCmd.Flags().String("token", "", "bearer token for the registry API")
	profileAddCmd.Flags().String("nats", "", "NATS URL used by 'cfgreg watch'")
	profileAddCmd.Flags().String("grpc", "", "gRPC address used by 'cfgreg health --grpc'")

	profileCmd.AddCommand(profileAddCmd, profileRemoveCmd, profileListCmd, profileUseCmd, profileShowCmd)
}
