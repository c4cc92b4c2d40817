package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewEngineConfig(t *testing.T) {
	cfg := NewEngineConfig()

	if cfg.Paging.PageSize != 1000 {
		t.Errorf("Expected PageSize=1000, got %d", cfg.Paging.PageSize)
	}
	if cfg.Paging.BufferRadius != 3 {
		t.Errorf("Expected BufferRadius=3, got %d", cfg.Paging.BufferRadius)
	}
	if cfg.Layout.FullLayoutMaxItems != 50000 {
		t.Errorf("Expected FullLayoutMaxItems=50000, got %d", cfg.Layout.FullLayoutMaxItems)
	}
	if cfg.Layout.FullLayoutMinCoverage != 0.95 {
		t.Errorf("Expected FullLayoutMinCoverage=0.95, got %v", cfg.Layout.FullLayoutMinCoverage)
	}
	if cfg.Recalc.DelayMin != 500*time.Millisecond {
		t.Errorf("Expected DelayMin=500ms, got %v", cfg.Recalc.DelayMin)
	}
	if cfg.Recalc.DelayMax != 2*time.Second {
		t.Errorf("Expected DelayMax=2s, got %v", cfg.Recalc.DelayMax)
	}
	if cfg.Drag.ReleaseLock != 6*time.Second {
		t.Errorf("Expected ReleaseLock=6s, got %v", cfg.Drag.ReleaseLock)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestEngineConfigLoadSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "engine.conf")

	cfg := NewEngineConfig()
	cfg.Paging.PageSize = 250
	cfg.Paging.BufferRadius = 2
	cfg.Paging.LoadWorkers = 3
	cfg.Paging.LoadTimeout = 3 * time.Second
	cfg.Layout.ColumnWidth = 160
	cfg.Layout.Spacing = 4
	cfg.Layout.FullLayoutMinCoverage = 0.8
	cfg.Layout.StrictWindowing = true
	cfg.Recalc.DelayMin = 250 * time.Millisecond
	cfg.Drag.ReleaseLock = 5 * time.Second
	cfg.Cache.Dir = "/tmp/tagview-cache"
	cfg.Remote.BaseURL = "http://media.local/api/sets/7"
	cfg.Remote.ProxyMode = "manual"
	cfg.Remote.ProxyURL = "http://proxy.corp:8080"
	cfg.Remote.NoProxy = "localhost,10.0.0.0/8"
	cfg.Remote.ProxyUser = "svc-media"
	cfg.Remote.ProxyPassword = "s3cret"
	cfg.Remote.RatePerSec = 5
	cfg.Logging.Level = "debug"

	if err := SaveEngineConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveEngineConfig failed: %v", err)
	}

	loaded, err := LoadEngineConfig(configPath)
	if err != nil {
		t.Fatalf("LoadEngineConfig failed: %v", err)
	}

	if loaded.Paging.PageSize != 250 {
		t.Errorf("PageSize mismatch: got %d", loaded.Paging.PageSize)
	}
	if loaded.Paging.BufferRadius != 2 {
		t.Errorf("BufferRadius mismatch: got %d", loaded.Paging.BufferRadius)
	}
	if loaded.Paging.LoadWorkers != 3 {
		t.Errorf("LoadWorkers mismatch: got %d", loaded.Paging.LoadWorkers)
	}
	if loaded.Paging.LoadTimeout != 3*time.Second {
		t.Errorf("LoadTimeout mismatch: got %v", loaded.Paging.LoadTimeout)
	}
	if loaded.Layout.ColumnWidth != 160 || loaded.Layout.Spacing != 4 {
		t.Errorf("Geometry mismatch: got %d/%d", loaded.Layout.ColumnWidth, loaded.Layout.Spacing)
	}
	if loaded.Layout.FullLayoutMinCoverage != 0.8 {
		t.Errorf("FullLayoutMinCoverage mismatch: got %v", loaded.Layout.FullLayoutMinCoverage)
	}
	if !loaded.Layout.StrictWindowing {
		t.Error("StrictWindowing should be true")
	}
	if loaded.Recalc.DelayMin != 250*time.Millisecond {
		t.Errorf("DelayMin mismatch: got %v", loaded.Recalc.DelayMin)
	}
	if loaded.Drag.ReleaseLock != 5*time.Second {
		t.Errorf("ReleaseLock mismatch: got %v", loaded.Drag.ReleaseLock)
	}
	if loaded.Cache.Dir != "/tmp/tagview-cache" {
		t.Errorf("Cache.Dir mismatch: got %q", loaded.Cache.Dir)
	}
	if loaded.Remote.BaseURL != "http://media.local/api/sets/7" || loaded.Remote.ProxyMode != "manual" {
		t.Errorf("Remote mismatch: got %+v", loaded.Remote)
	}
	if loaded.Remote.ProxyURL != "http://proxy.corp:8080" || loaded.Remote.NoProxy != "localhost,10.0.0.0/8" {
		t.Errorf("Proxy mismatch: got %+v", loaded.Remote)
	}
	if loaded.Remote.ProxyUser != "svc-media" || loaded.Remote.ProxyPassword != "s3cret" {
		t.Errorf("Proxy credentials mismatch: got %q/%q", loaded.Remote.ProxyUser, loaded.Remote.ProxyPassword)
	}
	if loaded.Remote.RatePerSec != 5 {
		t.Errorf("RatePerSec mismatch: got %v", loaded.Remote.RatePerSec)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("Logging.Level mismatch: got %q", loaded.Logging.Level)
	}
}

func TestLoadEngineConfig_Missing(t *testing.T) {
	cfg, err := LoadEngineConfig(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if cfg.Paging.PageSize != 1000 {
		t.Errorf("Expected defaults, got PageSize=%d", cfg.Paging.PageSize)
	}
}

func TestLoadEngineConfig_Normalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.conf")
	content := "[paging]\nbuffer_radius_pages = 12\n\n[drag]\ndrag_release_lock = 1s\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig failed: %v", err)
	}
	if cfg.Paging.BufferRadius != 6 {
		t.Errorf("Expected BufferRadius clamped to 6, got %d", cfg.Paging.BufferRadius)
	}
	if cfg.Drag.ReleaseLock != 4*time.Second {
		t.Errorf("Expected ReleaseLock clamped to 4s, got %v", cfg.Drag.ReleaseLock)
	}
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*EngineConfig)
		wantErr error
	}{
		{"defaults", func(c *EngineConfig) {}, nil},
		{"zero page size", func(c *EngineConfig) { c.Paging.PageSize = 0 }, ErrInvalidPageSize},
		{"zero column width", func(c *EngineConfig) { c.Layout.ColumnWidth = 0 }, ErrInvalidColumnWidth},
		{"negative spacing", func(c *EngineConfig) { c.Layout.Spacing = -1 }, ErrInvalidSpacing},
		{"coverage above one", func(c *EngineConfig) { c.Layout.FullLayoutMinCoverage = 1.5 }, ErrInvalidCoverage},
		{"min above max", func(c *EngineConfig) { c.Recalc.DelayMin = 3 * time.Second }, ErrInvalidRecalcDelays},
		{"zero watchdog", func(c *EngineConfig) { c.Recalc.Watchdog = 0 }, ErrInvalidWatchdog},
		{"zero retries", func(c *EngineConfig) { c.Paging.LoadMaxRetries = 0 }, ErrInvalidLoadRetries},
		{"bad level", func(c *EngineConfig) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad proxy mode", func(c *EngineConfig) { c.Remote.ProxyMode = "socks" }, ErrInvalidProxyMode},
		{"manual without url", func(c *EngineConfig) { c.Remote.ProxyMode = "manual" }, ErrMissingProxyURL},
		{"basic without url", func(c *EngineConfig) { c.Remote.ProxyMode = "basic" }, ErrMissingProxyURL},
		{"ntlm without user", func(c *EngineConfig) {
			c.Remote.ProxyMode = "ntlm"
			c.Remote.ProxyURL = "http://proxy.corp:8080"
		}, ErrMissingProxyUser},
		{"ntlm complete", func(c *EngineConfig) {
			c.Remote.ProxyMode = "ntlm"
			c.Remote.ProxyURL = "http://proxy.corp:8080"
			c.Remote.ProxyUser = `CORP\svc-media`
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewEngineConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
