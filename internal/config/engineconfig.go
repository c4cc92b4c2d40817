// Package config provides configuration management for tagview.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"github.com/tagview/tagview/internal/constants"
)

// EngineConfig represents the engine.conf INI file.
// It contains every tunable of the layout and paging engine.
type EngineConfig struct {
	Paging  PagingConfig  `ini:"paging"`
	Layout  LayoutConfig  `ini:"layout"`
	Recalc  RecalcConfig  `ini:"recalc"`
	Drag    DragConfig    `ini:"drag"`
	Cache   CacheConfig   `ini:"cache"`
	Remote  RemoteConfig  `ini:"remote"`
	Logging LoggingConfig `ini:"logging"`
}

// PagingConfig controls page size, window radius and the load pool.
type PagingConfig struct {
	// PageSize is the number of items per page.
	// Minimum: 1, Default: 1000
	PageSize int `ini:"page_size"`

	// BufferRadius is the number of pages loaded on each side of the current page.
	// Clamped to 1..6, Default: 3
	BufferRadius int `ini:"buffer_radius_pages"`

	// LoadWorkers bounds concurrent page loads (0 = auto from CPU and memory).
	LoadWorkers int `ini:"load_workers"`

	// LoadTimeout is the per-attempt page load timeout.
	LoadTimeout time.Duration `ini:"load_timeout"`

	// LoadMaxRetries is the number of attempts before a page returns to Unloaded.
	LoadMaxRetries int `ini:"load_max_retries"`

	// MaxResidentPages caps loaded pages (0 = auto from available memory).
	MaxResidentPages int `ini:"max_resident_pages"`
}

// LayoutConfig controls masonry geometry and the full-layout policy.
type LayoutConfig struct {
	ColumnWidth int `ini:"column_width"`
	Spacing     int `ini:"spacing"`

	// FullLayoutMaxItems disables full layout for datasets larger than this.
	FullLayoutMaxItems int `ini:"full_layout_max_items"`

	// FullLayoutMinCoverage is the measured aspect ratio fraction required for full layout.
	FullLayoutMinCoverage float64 `ini:"full_layout_min_coverage"`

	// StrictWindowing always lays out the buffered window only.
	StrictWindowing bool `ini:"strict_windowing"`
}

// RecalcConfig controls recalculation debounce and the watchdog.
type RecalcConfig struct {
	DelayMin time.Duration `ini:"recalc_delay_min"`
	DelayMax time.Duration `ini:"recalc_delay_max"`
	Watchdog time.Duration `ini:"watchdog"`
}

// DragConfig controls scrollbar drag behavior.
type DragConfig struct {
	// ReleaseLock is how long the released page owns the viewport.
	// Clamped to 4s..8s, Default: 6s
	ReleaseLock time.Duration `ini:"drag_release_lock"`

	// PreviewThreshold enables the uniform grid preview while dragging
	// for datasets at least this large (0 = never).
	PreviewThreshold int `ini:"preview_threshold"`
}

// CacheConfig controls the layout result cache.
type CacheConfig struct {
	// Dir is the on-disk layout cache root (empty = in-memory only).
	Dir string `ini:"cache_dir"`

	MemoryEntries int `ini:"memory_cache_entries"`
}

// RemoteConfig controls the HTTP page source.
type RemoteConfig struct {
	// BaseURL is the page API root, e.g. https://media.example.com/api/datasets/42
	BaseURL string `ini:"base_url"`

	// ProxyMode is one of no-proxy, system, manual, basic, ntlm.
	ProxyMode string `ini:"proxy_mode"`

	// ProxyURL is required in manual, basic and ntlm modes, e.g. http://proxy.corp:8080
	ProxyURL string `ini:"proxy_url"`

	// ProxyUser and ProxyPassword authenticate in basic and ntlm modes.
	ProxyUser     string `ini:"proxy_user"`
	ProxyPassword string `ini:"proxy_password"`

	// NoProxy is a comma-separated bypass list of hosts, domains and CIDRs.
	NoProxy string `ini:"no_proxy"`

	// RatePerSec caps page requests per second (0 = unlimited).
	RatePerSec float64 `ini:"rate_per_sec"`

	// Burst is the request burst allowed above the rate.
	Burst float64 `ini:"burst"`

	// DisableHTTP2 forces HTTP/1.1.
	DisableHTTP2 bool `ini:"disable_http2"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// File enables rotating file logging when non-empty.
	File string `ini:"log_file"`

	// Level is one of debug, info, warn, error.
	Level string `ini:"level"`
}

// EngineConfig validation errors
var (
	ErrInvalidPageSize       = errors.New("page_size must be at least 1")
	ErrInvalidColumnWidth    = errors.New("column_width must be at least 1")
	ErrInvalidSpacing        = errors.New("spacing must not be negative")
	ErrInvalidCoverage       = errors.New("full_layout_min_coverage must be between 0 and 1")
	ErrInvalidRecalcDelays   = errors.New("recalc_delay_min must be positive and not exceed recalc_delay_max")
	ErrInvalidWatchdog       = errors.New("watchdog must be positive")
	ErrInvalidLoadRetries    = errors.New("load_max_retries must be at least 1")
	ErrInvalidFullLayoutSize = errors.New("full_layout_max_items must not be negative")
	ErrInvalidLogLevel       = errors.New("level must be one of debug, info, warn, error")
	ErrInvalidProxyMode      = errors.New("proxy_mode must be one of no-proxy, system, manual, basic, ntlm")
	ErrMissingProxyURL       = errors.New("proxy_url is required in manual, basic and ntlm proxy modes")
	ErrMissingProxyUser      = errors.New("proxy_user is required in ntlm proxy mode")
)

// DefaultEngineConfigPath returns the default path for the engine.conf file.
//   - Windows: %APPDATA%\Tagview\engine.conf
//   - Unix: ~/.config/tagview/engine.conf
func DefaultEngineConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "Tagview")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "tagview")
	}

	return filepath.Join(configDir, "engine.conf"), nil
}

// NewEngineConfig creates a new EngineConfig with default values.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		Paging: PagingConfig{
			PageSize:       constants.DefaultPageSize,
			BufferRadius:   constants.DefaultBufferRadius,
			LoadWorkers:    0,
			LoadTimeout:    constants.DefaultLoadTimeout,
			LoadMaxRetries: constants.DefaultLoadMaxRetries,
		},
		Layout: LayoutConfig{
			ColumnWidth:           constants.DefaultColumnWidth,
			Spacing:               constants.DefaultSpacing,
			FullLayoutMaxItems:    constants.DefaultFullLayoutMaxItems,
			FullLayoutMinCoverage: constants.DefaultFullLayoutMinCoverage,
		},
		Recalc: RecalcConfig{
			DelayMin: constants.DefaultRecalcDelayMin,
			DelayMax: constants.DefaultRecalcDelayMax,
			Watchdog: constants.DefaultRecalcWatchdog,
		},
		Drag: DragConfig{
			ReleaseLock:      constants.DefaultReleaseLock,
			PreviewThreshold: constants.DefaultPreviewThreshold,
		},
		Cache: CacheConfig{
			MemoryEntries: constants.DefaultMemoryCacheEntries,
		},
		Remote: RemoteConfig{
			ProxyMode:  "system",
			RatePerSec: constants.RemoteRatePerSec,
			Burst:      constants.RemoteBurst,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadEngineConfig loads configuration from the engine.conf file.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// The result is normalized but not validated.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := NewEngineConfig()

	if path == "" {
		var err error
		path, err = DefaultEngineConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load engine.conf: %w", err)
	}

	d := NewEngineConfig()

	paging := iniFile.Section("paging")
	cfg.Paging.PageSize = paging.Key("page_size").MustInt(d.Paging.PageSize)
	cfg.Paging.BufferRadius = paging.Key("buffer_radius_pages").MustInt(d.Paging.BufferRadius)
	cfg.Paging.LoadWorkers = paging.Key("load_workers").MustInt(d.Paging.LoadWorkers)
	cfg.Paging.LoadTimeout = paging.Key("load_timeout").MustDuration(d.Paging.LoadTimeout)
	cfg.Paging.LoadMaxRetries = paging.Key("load_max_retries").MustInt(d.Paging.LoadMaxRetries)
	cfg.Paging.MaxResidentPages = paging.Key("max_resident_pages").MustInt(d.Paging.MaxResidentPages)

	layout := iniFile.Section("layout")
	cfg.Layout.ColumnWidth = layout.Key("column_width").MustInt(d.Layout.ColumnWidth)
	cfg.Layout.Spacing = layout.Key("spacing").MustInt(d.Layout.Spacing)
	cfg.Layout.FullLayoutMaxItems = layout.Key("full_layout_max_items").MustInt(d.Layout.FullLayoutMaxItems)
	cfg.Layout.FullLayoutMinCoverage = layout.Key("full_layout_min_coverage").MustFloat64(d.Layout.FullLayoutMinCoverage)
	cfg.Layout.StrictWindowing = layout.Key("strict_windowing").MustBool(false)

	recalc := iniFile.Section("recalc")
	cfg.Recalc.DelayMin = recalc.Key("recalc_delay_min").MustDuration(d.Recalc.DelayMin)
	cfg.Recalc.DelayMax = recalc.Key("recalc_delay_max").MustDuration(d.Recalc.DelayMax)
	cfg.Recalc.Watchdog = recalc.Key("watchdog").MustDuration(d.Recalc.Watchdog)

	drag := iniFile.Section("drag")
	cfg.Drag.ReleaseLock = drag.Key("drag_release_lock").MustDuration(d.Drag.ReleaseLock)
	cfg.Drag.PreviewThreshold = drag.Key("preview_threshold").MustInt(d.Drag.PreviewThreshold)

	cache := iniFile.Section("cache")
	cfg.Cache.Dir = cache.Key("cache_dir").String()
	cfg.Cache.MemoryEntries = cache.Key("memory_cache_entries").MustInt(d.Cache.MemoryEntries)

	remote := iniFile.Section("remote")
	cfg.Remote.BaseURL = remote.Key("base_url").String()
	cfg.Remote.ProxyMode = remote.Key("proxy_mode").MustString(d.Remote.ProxyMode)
	cfg.Remote.ProxyURL = remote.Key("proxy_url").String()
	cfg.Remote.NoProxy = remote.Key("no_proxy").String()
	cfg.Remote.ProxyUser = remote.Key("proxy_user").String()
	cfg.Remote.ProxyPassword = remote.Key("proxy_password").String()
	cfg.Remote.RatePerSec = remote.Key("rate_per_sec").MustFloat64(d.Remote.RatePerSec)
	cfg.Remote.Burst = remote.Key("burst").MustFloat64(d.Remote.Burst)
	cfg.Remote.DisableHTTP2 = remote.Key("disable_http2").MustBool(false)

	logging := iniFile.Section("logging")
	cfg.Logging.File = logging.Key("log_file").String()
	cfg.Logging.Level = logging.Key("level").MustString(d.Logging.Level)

	cfg.Normalize()
	return cfg, nil
}

// SaveEngineConfig saves configuration to the engine.conf file.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveEngineConfig(cfg *EngineConfig, path string) error {
	if path == "" {
		var err error
		path, err = DefaultEngineConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	paging, err := iniFile.NewSection("paging")
	if err != nil {
		return fmt.Errorf("failed to create paging section: %w", err)
	}
	paging.Key("page_size").SetValue(strconv.Itoa(cfg.Paging.PageSize))
	paging.Key("buffer_radius_pages").SetValue(strconv.Itoa(cfg.Paging.BufferRadius))
	paging.Key("load_workers").SetValue(strconv.Itoa(cfg.Paging.LoadWorkers))
	paging.Key("load_timeout").SetValue(cfg.Paging.LoadTimeout.String())
	paging.Key("load_max_retries").SetValue(strconv.Itoa(cfg.Paging.LoadMaxRetries))
	paging.Key("max_resident_pages").SetValue(strconv.Itoa(cfg.Paging.MaxResidentPages))

	layout, err := iniFile.NewSection("layout")
	if err != nil {
		return fmt.Errorf("failed to create layout section: %w", err)
	}
	layout.Key("column_width").SetValue(strconv.Itoa(cfg.Layout.ColumnWidth))
	layout.Key("spacing").SetValue(strconv.Itoa(cfg.Layout.Spacing))
	layout.Key("full_layout_max_items").SetValue(strconv.Itoa(cfg.Layout.FullLayoutMaxItems))
	layout.Key("full_layout_min_coverage").SetValue(strconv.FormatFloat(cfg.Layout.FullLayoutMinCoverage, 'f', -1, 64))
	layout.Key("strict_windowing").SetValue(strconv.FormatBool(cfg.Layout.StrictWindowing))

	recalc, err := iniFile.NewSection("recalc")
	if err != nil {
		return fmt.Errorf("failed to create recalc section: %w", err)
	}
	recalc.Key("recalc_delay_min").SetValue(cfg.Recalc.DelayMin.String())
	recalc.Key("recalc_delay_max").SetValue(cfg.Recalc.DelayMax.String())
	recalc.Key("watchdog").SetValue(cfg.Recalc.Watchdog.String())

	drag, err := iniFile.NewSection("drag")
	if err != nil {
		return fmt.Errorf("failed to create drag section: %w", err)
	}
	drag.Key("drag_release_lock").SetValue(cfg.Drag.ReleaseLock.String())
	drag.Key("preview_threshold").SetValue(strconv.Itoa(cfg.Drag.PreviewThreshold))

	cache, err := iniFile.NewSection("cache")
	if err != nil {
		return fmt.Errorf("failed to create cache section: %w", err)
	}
	cache.Key("cache_dir").SetValue(cfg.Cache.Dir)
	cache.Key("memory_cache_entries").SetValue(strconv.Itoa(cfg.Cache.MemoryEntries))

	remote, err := iniFile.NewSection("remote")
	if err != nil {
		return fmt.Errorf("failed to create remote section: %w", err)
	}
	remote.Key("base_url").SetValue(cfg.Remote.BaseURL)
	remote.Key("proxy_mode").SetValue(cfg.Remote.ProxyMode)
	remote.Key("proxy_url").SetValue(cfg.Remote.ProxyURL)
	remote.Key("no_proxy").SetValue(cfg.Remote.NoProxy)
	remote.Key("proxy_user").SetValue(cfg.Remote.ProxyUser)
	remote.Key("proxy_password").SetValue(cfg.Remote.ProxyPassword)
	remote.Key("rate_per_sec").SetValue(strconv.FormatFloat(cfg.Remote.RatePerSec, 'f', -1, 64))
	remote.Key("burst").SetValue(strconv.FormatFloat(cfg.Remote.Burst, 'f', -1, 64))
	remote.Key("disable_http2").SetValue(strconv.FormatBool(cfg.Remote.DisableHTTP2))

	logging, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("log_file").SetValue(cfg.Logging.File)
	logging.Key("level").SetValue(cfg.Logging.Level)

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Normalize clamps values that have a documented allowed range.
func (cfg *EngineConfig) Normalize() {
	if cfg.Paging.BufferRadius < constants.MinBufferRadius {
		cfg.Paging.BufferRadius = constants.MinBufferRadius
	}
	if cfg.Paging.BufferRadius > constants.MaxBufferRadius {
		cfg.Paging.BufferRadius = constants.MaxBufferRadius
	}
	if cfg.Drag.ReleaseLock < constants.MinReleaseLock {
		cfg.Drag.ReleaseLock = constants.MinReleaseLock
	}
	if cfg.Drag.ReleaseLock > constants.MaxReleaseLock {
		cfg.Drag.ReleaseLock = constants.MaxReleaseLock
	}
	if cfg.Paging.LoadWorkers < 0 {
		cfg.Paging.LoadWorkers = 0
	}
	if cfg.Paging.LoadWorkers > constants.MaxLoadWorkers {
		cfg.Paging.LoadWorkers = constants.MaxLoadWorkers
	}
	if cfg.Paging.MaxResidentPages < 0 {
		cfg.Paging.MaxResidentPages = 0
	}
	if cfg.Cache.MemoryEntries < 1 {
		cfg.Cache.MemoryEntries = 1
	}
	if cfg.Remote.RatePerSec < 0 {
		cfg.Remote.RatePerSec = 0
	}
	if cfg.Remote.ProxyMode == "" {
		cfg.Remote.ProxyMode = "no-proxy"
	}
}

// Validate checks if the engine configuration is valid.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *EngineConfig) Validate() error {
	if cfg.Paging.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if cfg.Paging.LoadMaxRetries < 1 {
		return ErrInvalidLoadRetries
	}
	if cfg.Layout.ColumnWidth < 1 {
		return ErrInvalidColumnWidth
	}
	if cfg.Layout.Spacing < 0 {
		return ErrInvalidSpacing
	}
	if cfg.Layout.FullLayoutMaxItems < 0 {
		return ErrInvalidFullLayoutSize
	}
	if cfg.Layout.FullLayoutMinCoverage < 0 || cfg.Layout.FullLayoutMinCoverage > 1 {
		return ErrInvalidCoverage
	}
	if cfg.Recalc.DelayMin <= 0 || cfg.Recalc.DelayMin > cfg.Recalc.DelayMax {
		return ErrInvalidRecalcDelays
	}
	if cfg.Recalc.Watchdog <= 0 {
		return ErrInvalidWatchdog
	}
	switch cfg.Remote.ProxyMode {
	case "no-proxy", "system":
	case "manual", "basic", "ntlm":
		if cfg.Remote.ProxyURL == "" {
			return ErrMissingProxyURL
		}
		if cfg.Remote.ProxyMode == "ntlm" && cfg.Remote.ProxyUser == "" {
			return ErrMissingProxyUser
		}
	default:
		return ErrInvalidProxyMode
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}
