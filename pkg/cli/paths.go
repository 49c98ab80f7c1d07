package cli

import (
	"os"
	"path/filepath"
)

const (
	// DefaultBaseDir is created under the user's home directory.
	DefaultBaseDir = ".cocktail"
	// DefaultConfigFile is the pipeline configuration file name.
	DefaultConfigFile = "config.yaml"
)

// Paths locates the cocktail files of one user.
type Paths struct {
	HomeDir string
}

// NewPaths resolves the current user's home directory.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.cocktail.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns ~/.cocktail/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// StoreDir returns ~/.cocktail/profiles, the default profile database.
func (p *Paths) StoreDir() string {
	return filepath.Join(p.BaseDir(), "profiles")
}

// EnsureStoreDir creates the profile database directory.
func (p *Paths) EnsureStoreDir() error {
	return os.MkdirAll(p.StoreDir(), 0o755)
}

// ConfigIfExists returns ConfigFile if the file exists, or "".
func (p *Paths) ConfigIfExists() string {
	path := p.ConfigFile()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
