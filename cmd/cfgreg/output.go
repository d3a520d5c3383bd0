package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/registry"
	"github.com/alfredjeanlab/cfgregistry/internal/ui"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func renderTarget(t model.Target) string {
	return ui.RenderTarget(t.Org, t.Space)
}

func renderTargets(ts []model.Target) string {
	if len(ts) == 0 {
		return ui.RenderMuted("(owner only)")
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = renderTarget(t)
	}
	return strings.Join(parts, ", ")
}

func printEntry(e *model.ConfigurationEntry) error {
	if jsonOutput {
		return printJSON(e)
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", e.ID)
	fmt.Fprintf(w, "Provider:\t%s/%s\n", e.ProviderNID, e.ProviderID)
	if e.ProviderVersion != "" {
		fmt.Fprintf(w, "Version:\t%s\n", e.ProviderVersion)
	}
	if e.ProviderNamespace != "" {
		fmt.Fprintf(w, "Namespace:\t%s\n", e.ProviderNamespace)
	}
	fmt.Fprintf(w, "Target:\t%s\n", renderTarget(e.Target))
	fmt.Fprintf(w, "Visibility:\t%s\n", renderTargets(e.Visibility))
	if e.SpaceID != "" {
		fmt.Fprintf(w, "Space ID:\t%s\n", e.SpaceID)
	}
	if e.ContentID != "" {
		fmt.Fprintf(w, "Content ID:\t%s\n", e.ContentID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if e.Content.Len() > 0 {
		content, err := json.MarshalIndent(e.Content, "  ", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n  %s\n", ui.RenderAccent("Content:"), content)
	}
	return nil
}

func printEntries(entries []*model.ConfigurationEntry) error {
	if jsonOutput {
		return printJSON(entries)
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNID\tPROVIDER\tVERSION\tNAMESPACE\tTARGET\tSPACE ID")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.ProviderNID, e.ProviderID, e.ProviderVersion, e.ProviderNamespace,
			renderTarget(e.Target), e.SpaceID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n%d entries\n", len(entries))
	return nil
}

func printSubscription(s *model.ConfigurationSubscription) error {
	if jsonOutput {
		return printJSON(s)
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", s.ID)
	fmt.Fprintf(w, "MTA:\t%s\n", s.MTAID)
	fmt.Fprintf(w, "Space ID:\t%s\n", s.SpaceID)
	fmt.Fprintf(w, "App:\t%s\n", s.AppName)
	fmt.Fprintf(w, "Resource:\t%s\n", s.ResourceName)
	if s.ModuleID != "" {
		fmt.Fprintf(w, "Module ID:\t%s\n", s.ModuleID)
	}
	if s.ResourceID != "" {
		fmt.Fprintf(w, "Resource ID:\t%s\n", s.ResourceID)
	}
	fmt.Fprintf(w, "Filter:\t%s\n", describeFilter(s.Filter))
	return w.Flush()
}

func printSubscriptions(subs []*model.ConfigurationSubscription) error {
	if jsonOutput {
		return printJSON(subs)
	}
	// On a terminal the filter column gets at most half the width.
	filterWidth := ui.Width() / 2
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMTA\tAPP\tRESOURCE\tSPACE ID\tFILTER")
	for _, s := range subs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.MTAID, s.AppName, s.ResourceName, s.SpaceID, ui.Truncate(describeFilter(s.Filter), filterWidth))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n%d subscriptions\n", len(subs))
	return nil
}

// describeFilter renders the constraining fields of a filter on one line.
func describeFilter(f model.ConfigurationFilter) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("nid", f.ProviderNID)
	add("id", f.ProviderID)
	add("mta", f.MTAID)
	add("version", f.ProviderVersion)
	add("namespace", f.ProviderNamespace)
	if f.TargetSpace != nil {
		add("target", f.TargetSpace.String())
	}
	if f.RequiredContent.Len() > 0 {
		add("content", strings.Join(f.RequiredContent.Keys(), ","))
	}
	if f.StrictTargetSpace {
		parts = append(parts, "strict")
	}
	if len(parts) == 0 {
		return ui.RenderMuted("(any)")
	}
	return strings.Join(parts, " ")
}

func printPurgeReport(r *registry.PurgeReport) error {
	if jsonOutput {
		return printJSON(r)
	}
	fmt.Fprintf(stdout, "Purged space %s: %d entries, %d subscriptions deleted",
		r.SpaceID, len(r.DeletedEntries), len(r.DeletedSubscriptions))
	if r.Failures > 0 {
		fmt.Fprintf(stdout, " (%d failed)", r.Failures)
	}
	fmt.Fprintln(stdout)
	return nil
}
