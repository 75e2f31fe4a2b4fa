package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/koinonia/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// DefaultProfile is the profile used when none is named.
	DefaultProfile = "default"
)

// Manager manages reading and writing credentials.toml in the .koinonia/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .koinonia/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:  currentVersion,
				Profiles: make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Profiles == nil {
		creds.Profiles = make(map[string]Profile)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetProfile stores the token and user id for the named profile.
func (m *Manager) SetProfile(name string, p Profile) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Profiles[profileName(name)] = p

	return m.Save(creds)
}

// GetProfile returns the stored profile.
// Returns a zero Profile if nothing is stored under that name.
func (m *Manager) GetProfile(name string) (Profile, error) {
	creds, err := m.Load()
	if err != nil {
		return Profile{}, err
	}

	return creds.Profiles[profileName(name)], nil
}

// RemoveProfile deletes the stored profile.
func (m *Manager) RemoveProfile(name string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Profiles, profileName(name))

	return m.Save(creds)
}

// ListProfiles returns the names of stored profiles, sorted.
func (m *Manager) ListProfiles() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Profiles))
	for name := range creds.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

func profileName(name string) string {
	if name == "" {
		return DefaultProfile
	}
	return name
}
