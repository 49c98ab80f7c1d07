package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths()
	if err != nil {
		t.Fatalf("NewPaths error: %v", err)
	}
	if paths.HomeDir == "" {
		t.Error("HomeDir should not be empty")
	}
}

func TestPathsLayout(t *testing.T) {
	home := t.TempDir()
	p := &Paths{HomeDir: home}
	if got, want := p.ConfigFile(), filepath.Join(home, ".cocktail", "config.yaml"); got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
	if got, want := p.StoreDir(), filepath.Join(home, ".cocktail", "profiles"); got != want {
		t.Errorf("StoreDir() = %q, want %q", got, want)
	}
}

func TestEnsureStoreDir(t *testing.T) {
	p := &Paths{HomeDir: t.TempDir()}
	if err := p.EnsureStoreDir(); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(p.StoreDir()); err != nil || !info.IsDir() {
		t.Errorf("StoreDir not created: %v", err)
	}
}

func TestConfigIfExists(t *testing.T) {
	p := &Paths{HomeDir: t.TempDir()}
	if got := p.ConfigIfExists(); got != "" {
		t.Errorf("ConfigIfExists() = %q before creation", got)
	}
	os.MkdirAll(p.BaseDir(), 0o755)
	os.WriteFile(p.ConfigFile(), []byte("sample_rate: 16000\n"), 0o644)
	if got := p.ConfigIfExists(); got != p.ConfigFile() {
		t.Errorf("ConfigIfExists() = %q, want %q", got, p.ConfigFile())
	}
}
