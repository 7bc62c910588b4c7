package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Dir is the per-user configuration directory under $HOME
const Dir = ".swarm-sim"

const profilesFile = "profiles.yaml"

// Profile is a saved, named way to launch a run
type Profile struct {
	Name      string                 `yaml:"name"`
	Preset    string                 `yaml:"preset,omitempty"`
	Strategy  string                 `yaml:"strategy,omitempty"`
	Seed      *int64                 `yaml:"seed,omitempty"`
	Config    string                 `yaml:"config,omitempty"` // Scenario config file
	Overrides map[string]interface{} `yaml:"overrides,omitempty"`
}

// Profiles holds every saved profile
type Profiles struct {
	Profiles []Profile `yaml:"profiles"`
	Selected string    `yaml:"selected,omitempty"`
}

// DefaultPath returns ~/.swarm-sim/profiles.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, Dir, profilesFile), nil
}

// LoadProfiles loads profiles from the default location
func LoadProfiles() (*Profiles, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromFile(path)
}

// LoadProfilesFromFile loads profiles from a specific file. A missing file
// yields an empty set.
func LoadProfilesFromFile(path string) (*Profiles, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Profiles{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	return &profiles, nil
}

// SaveProfiles saves profiles to the default location
func SaveProfiles(p *Profiles) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveProfilesToFile(p, path)
}

// SaveProfilesToFile writes profiles, creating the directory if needed
func SaveProfilesToFile(p *Profiles, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}

	return nil
}

// Get returns the named profile
func (p *Profiles) Get(name string) (Profile, bool) {
	for _, profile := range p.Profiles {
		if profile.Name == name {
			return profile, true
		}
	}
	return Profile{}, false
}

// Put adds or replaces a profile, keeping the list sorted by name
func (p *Profiles) Put(profile Profile) {
	for i := range p.Profiles {
		if p.Profiles[i].Name == profile.Name {
			p.Profiles[i] = profile
			return
		}
	}
	p.Profiles = append(p.Profiles, profile)
	sort.Slice(p.Profiles, func(i, j int) bool { return p.Profiles[i].Name < p.Profiles[j].Name })
}

// Remove deletes a profile and reports whether it existed. Removing the
// selected profile clears the selection.
func (p *Profiles) Remove(name string) bool {
	for i, profile := range p.Profiles {
		if profile.Name == name {
			p.Profiles = append(p.Profiles[:i], p.Profiles[i+1:]...)
			if p.Selected == name {
				p.Selected = ""
			}
			return true
		}
	}
	return false
}

// Names returns the profile names in order
func (p *Profiles) Names() []string {
	names := make([]string, len(p.Profiles))
	for i, profile := range p.Profiles {
		names[i] = profile.Name
	}
	return names
}
