package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTemplateLoadsAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, "gnb", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "gnb", false); err == nil {
		t.Fatalf("expected existing config to be kept")
	}

	cfg, err := LoadGnbConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Name != "UERANSIM-gnb-1-1-1" || len(cfg.Amfs) != 1 || cfg.Amfs[0].Addr() != "127.0.0.1:38412" {
		t.Fatalf("unexpected template config %+v", cfg)
	}
	if cfg.PauseTimeout().Milliseconds() != 3000 || cfg.PausePoll().Milliseconds() != 10 {
		t.Fatalf("unexpected pause timings %v/%v", cfg.PauseTimeout(), cfg.PausePoll())
	}
}

func TestLoadGnbConfigKeepsDefaultSlices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
name = "gnb-a"

[[amfs]]
address = "10.0.0.1"
port = 38412
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadGnbConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Slices) != 1 || cfg.Slices[0].Sst != 1 {
		t.Fatalf("unexpected slices %+v", cfg.Slices)
	}
}

func TestValidateGnbConfig(t *testing.T) {
	cases := map[string]func(*GnbConfig){
		"missing name":   func(c *GnbConfig) { c.Name = " " },
		"short id":       func(c *GnbConfig) { c.IDLength = 21 },
		"wide nci":       func(c *GnbConfig) { c.Nci = 1 << 36 },
		"long mnc":       func(c *GnbConfig) { c.Mnc = 100 },
		"wide tac":       func(c *GnbConfig) { c.Tac = 1 << 24 },
		"no amfs":        func(c *GnbConfig) { c.Amfs = nil },
		"bad amf port":   func(c *GnbConfig) { c.Amfs = []AmfConfig{{Address: "x", Port: 0}} },
		"wide sd":        func(c *GnbConfig) { c.Slices = []SliceConfig{{Sst: 1, Sd: 1 << 24}} },
		"zero pause":     func(c *GnbConfig) { c.PauseMS = 0 },
		"zero in stream": func(c *GnbConfig) { c.InStreams = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultGnbConfig()
		mutate(&cfg)
		if err := ValidateGnbConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := DefaultGnbConfig()
	cfg.LongMnc = true
	cfg.Mnc = 100
	if err := ValidateGnbConfig(cfg); err != nil {
		t.Fatalf("three digit mnc rejected: %v", err)
	}
	if got := cfg.GnbID(); got != 0x1 {
		t.Fatalf("unexpected gnb id %#x", got)
	}
}
