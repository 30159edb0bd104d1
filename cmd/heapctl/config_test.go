package main

import (
	"log/slog"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Size != 65536 || c.Seed != 1 || !c.Checked || c.Format != "text" {
		t.Errorf("unexpected defaults: %+v", c)
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("HEAPCTL_SIZE", "4096")
	t.Setenv("HEAPCTL_SEED", "99")
	t.Setenv("HEAPCTL_LOG_LEVEL", "debug")
	t.Setenv("HEAPCTL_FORMAT", "json")

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Size != 4096 || c.Seed != 99 || c.Format != "json" {
		t.Errorf("environment not applied: %+v", c)
	}
	level, err := c.Level()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("Level() = %v, %v; want debug", level, err)
	}
}

func TestLoadConfig_OnlyPrefixedKeys(t *testing.T) {
	t.Setenv("SIZE", "123")
	t.Setenv("HEAPCTL_HEAPCTL_SIZE", "77")
	t.Setenv("HEAPCTL_LOG_DIR", "/tmp/heapctl-logs")

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Size != 65536 {
		t.Errorf("Size = %d; only HEAPCTL_SIZE should set it", c.Size)
	}
	if c.LogDir != "/tmp/heapctl-logs" {
		t.Errorf("LogDir = %q; want HEAPCTL_LOG_DIR applied", c.LogDir)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"negative size", "HEAPCTL_SIZE", "-1"},
		{"not a number", "HEAPCTL_SIZE", "lots"},
		{"bad level", "HEAPCTL_LOG_LEVEL", "chatty"},
		{"bad format", "HEAPCTL_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%s succeeded", tt.key, tt.val)
			}
		})
	}
}
