package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// profileFile is the on-disk set of connection profiles.
type profileFile struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile holds the endpoints and credentials for one registry deployment.
type Profile struct {
	URL      string `toml:"url"`
	Token    string `toml:"token,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty"`
	GRPCAddr string `toml:"grpc_addr,omitempty"`
}

// validate checks that the profile can be used to reach a server.
func (p Profile) validate() error {
	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q: scheme must be http or https", p.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q: missing host", p.URL)
	}
	if p.NATSURL != "" && !strings.Contains(p.NATSURL, "://") {
		return fmt.Errorf("nats url %q: missing scheme", p.NATSURL)
	}
	return nil
}

// profilesPath is $XDG_STATE_HOME/cfgregistry/profiles.toml, falling back
// to ~/.local/state when XDG_STATE_HOME is unset.
func profilesPath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "cfgregistry")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

func loadProfiles() (profileFile, error) {
	path, err := profilesPath()
	if err != nil {
		return profileFile{}, err
	}
	var pf profileFile
	if _, err := toml.DecodeFile(path, &pf); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return profileFile{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]Profile{}
	}
	return pf, nil
}

// saveProfiles writes the file through a temp file so readers never see a
// partial write.
func saveProfiles(pf profileFile) error {
	path, err := profilesPath()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".profiles-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := toml.NewEncoder(tmp).Encode(pf); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// lookup returns the named profile, or the active one when name is empty.
func (pf profileFile) lookup(name string) (string, Profile, error) {
	if name == "" {
		name = pf.Active
	}
	if name == "" {
		return "", Profile{}, errors.New("no active profile; specify a name or run 'cfgreg profile use <name>'")
	}
	p, ok := pf.Profiles[name]
	if !ok {
		return "", Profile{}, fmt.Errorf("profile %q not found", name)
	}
	return name, p, nil
}

// activeProfile is loaded once per process; flag defaults read it.
var activeProfile = sync.OnceValue(func() Profile {
	pf, err := loadProfiles()
	if err != nil {
		return Profile{}
	}
	_, p, err := pf.lookup("")
	if err != nil {
		return Profile{}
	}
	return p
})

// maskToken shows the first four characters of a token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-4)
}
