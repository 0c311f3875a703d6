package config

import (
	"path/filepath"
	"testing"
)

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.App.GatewayAddr = "0.0.0.0:9090"
	cfg.App.ChainId = "cfund-test"
	cfg.LogLevel = "debug"

	if err := WriteConfigFile(ConfigFile(home), cfg); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, err := LoadConfig(home)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.App.GatewayAddr != "0.0.0.0:9090" || loaded.App.ChainId != "cfund-test" {
		t.Fatalf("unexpected app config %+v", loaded.App)
	}
	if loaded.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", loaded.LogLevel)
	}
	if loaded.App.Home != home || loaded.RootDir != home {
		t.Fatalf("expected home %q, got %q / %q", home, loaded.App.Home, loaded.RootDir)
	}
	if got := loaded.App.CustodyPath(); got != filepath.Join(home, DefaultCustodyDir) {
		t.Fatalf("unexpected custody path %q", got)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected missing config file to fail")
	}
}

func TestAbsolutePaths(t *testing.T) {
	c := DefaultAppConfig("/srv/cfund")
	c.KeyFile = "/etc/cfund/key.json"
	if c.KeyPath() != "/etc/cfund/key.json" {
		t.Fatalf("absolute key path rewritten to %q", c.KeyPath())
	}
	if c.StatePath() != "/srv/cfund/data" {
		t.Fatalf("unexpected state path %q", c.StatePath())
	}
}
