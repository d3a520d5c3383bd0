package main

import (
	"fmt"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/spf13/cobra"
)

// addFilterFlags registers the ConfigurationFilter flags, each name
// prefixed with prefix.
func addFilterFlags(cmd *cobra.Command, prefix string) {
	f := cmd.Flags()
	f.String(prefix+"nid", "", "provider namespace id")
	f.String(prefix+"provider-id", "", "provider id")
	f.String(prefix+"mta", "", "MTA id (matches provider ids <mta>:*)")
	f.String(prefix+"version", "", "version requirement, e.g. >=1.0.0")
	f.String(prefix+"namespace", "", "provider namespace")
	f.String(prefix+"target", "", "org/space or org")
	f.Bool(prefix+"strict", false, "do not fall back to the global configuration space")
	f.String(prefix+"requester", "", "org/space the matching entries must be visible to")
	f.String(prefix+"required-content-file", "", "YAML or JSON document the entry content must contain")
}

func filterFromFlags(cmd *cobra.Command, prefix string) (model.ConfigurationFilter, error) {
	f := cmd.Flags()
	var filter model.ConfigurationFilter
	filter.ProviderNID, _ = f.GetString(prefix + "nid")
	filter.ProviderID, _ = f.GetString(prefix + "provider-id")
	filter.MTAID, _ = f.GetString(prefix + "mta")
	filter.ProviderVersion, _ = f.GetString(prefix + "version")
	filter.ProviderNamespace, _ = f.GetString(prefix + "namespace")
	filter.StrictTargetSpace, _ = f.GetBool(prefix + "strict")

	for _, p := range []struct {
		name string
		dst  **model.Target
	}{
		{prefix + "target", &filter.TargetSpace},
		{prefix + "requester", &filter.Requester},
	} {
		s, _ := f.GetString(p.name)
		if s == "" {
			continue
		}
		t, err := model.ParseTarget(s)
		if err != nil {
			return filter, fmt.Errorf("--%s: %w", p.name, err)
		}
		*p.dst = &t
	}

	path, _ := f.GetString(prefix + "required-content-file")
	content, err := readContent(path)
	if err != nil {
		return filter, err
	}
	filter.RequiredContent = content
	return filter, nil
}
