package registrar

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("registrar", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-node-url", "http://node:9545"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.NodeURL != "http://node:9545" {
		t.Fatalf("node url = %q, want %q", cfg.NodeURL, "http://node:9545")
	}
}

func TestParseConfig_Default(t *testing.T) {
	fs := flag.NewFlagSet("registrar", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.NodeURL != "http://localhost:8545" {
		t.Fatalf("node url = %q", cfg.NodeURL)
	}
}
