package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tagview/tagview/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage engine.conf",
		Long: `Configuration management commands for tagview.

Commands:
  init  - Write a default engine.conf
  show  - Display the effective configuration
  path  - Show the configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())
	return configCmd
}

// configPath returns --config or the default path.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultEngineConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write engine.conf with default values.

Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view it.")
					return nil
				}
			}

			if err := config.SaveEngineConfig(config.NewEngineConfig(), path); err != nil {
				return err
			}
			GetLogger().Info().Str("path", path).Msg("configuration written")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetEngineConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Section", "Key", "Value"}, configRows(cfg)))
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			return nil
		},
	}
}

func configRows(cfg *config.EngineConfig) [][]string {
	workers := strconv.Itoa(cfg.Paging.LoadWorkers)
	if cfg.Paging.LoadWorkers == 0 {
		workers = "auto"
	}
	resident := strconv.Itoa(cfg.Paging.MaxResidentPages)
	if cfg.Paging.MaxResidentPages == 0 {
		resident = "auto"
	}
	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = "(memory only)"
	}
	ratePerSec := strconv.FormatFloat(cfg.Remote.RatePerSec, 'f', -1, 64)
	if cfg.Remote.RatePerSec == 0 {
		ratePerSec = "unlimited"
	}

	return [][]string{
		{"paging", "page_size", strconv.Itoa(cfg.Paging.PageSize)},
		{"paging", "buffer_radius_pages", strconv.Itoa(cfg.Paging.BufferRadius)},
		{"paging", "load_workers", workers},
		{"paging", "load_timeout", cfg.Paging.LoadTimeout.String()},
		{"paging", "load_max_retries", strconv.Itoa(cfg.Paging.LoadMaxRetries)},
		{"paging", "max_resident_pages", resident},
		{"layout", "column_width", strconv.Itoa(cfg.Layout.ColumnWidth)},
		{"layout", "spacing", strconv.Itoa(cfg.Layout.Spacing)},
		{"layout", "full_layout_max_items", strconv.Itoa(cfg.Layout.FullLayoutMaxItems)},
		{"layout", "full_layout_min_coverage", strconv.FormatFloat(cfg.Layout.FullLayoutMinCoverage, 'f', -1, 64)},
		{"layout", "strict_windowing", strconv.FormatBool(cfg.Layout.StrictWindowing)},
		{"recalc", "recalc_delay_min", cfg.Recalc.DelayMin.String()},
		{"recalc", "recalc_delay_max", cfg.Recalc.DelayMax.String()},
		{"recalc", "watchdog", cfg.Recalc.Watchdog.String()},
		{"drag", "drag_release_lock", cfg.Drag.ReleaseLock.String()},
		{"drag", "preview_threshold", strconv.Itoa(cfg.Drag.PreviewThreshold)},
		{"cache", "cache_dir", cacheDir},
		{"cache", "memory_cache_entries", strconv.Itoa(cfg.Cache.MemoryEntries)},
		{"remote", "base_url", cfg.Remote.BaseURL},
		{"remote", "proxy_mode", cfg.Remote.ProxyMode},
		{"remote", "proxy_url", cfg.Remote.ProxyURL},
		{"remote", "proxy_user", cfg.Remote.ProxyUser},
		{"remote", "rate_per_sec", ratePerSec},
		{"logging", "log_file", cfg.Logging.File},
		{"logging", "level", cfg.Logging.Level},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
