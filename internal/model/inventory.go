package model

// MTAMetadata identifies the MTA a running application was deployed from.
type MTAMetadata struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
}

// LiveApplication is one application currently running in a space.
// Applications deployed outside of an MTA carry no metadata.
type LiveApplication struct {
	Name                    string       `json:"name" yaml:"name"`
	MTA                     *MTAMetadata `json:"mta,omitempty" yaml:"mta,omitempty"`
	ProvidedDependencyNames []string     `json:"provided_dependency_names,omitempty" yaml:"provided_dependency_names,omitempty"`
}
