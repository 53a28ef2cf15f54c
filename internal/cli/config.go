package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/codemeta2mp/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage codemeta2mp configuration",
	Long: `Manage codemeta2mp configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CODEMETA2MP_*, e.g. CODEMETA2MP_MARKETPLACE_PASSWORD)
3. Config file (~/.codemeta2mp/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, config file, environment and flags. Passwords are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		data, err := yaml.Marshal(document(cfg.Redacted()))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create a default configuration file at ~/.codemeta2mp/config.yaml (or the --config path).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			configPath = filepath.Join(home, ".codemeta2mp", "config.yaml")
		}

		if _, err := os.Stat(configPath); err == nil && !configInitForce {
			return fmt.Errorf("config file already exists: %s\nUse 'codemeta2mp config show' to view it, or pass --force to overwrite", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		data, err := yaml.Marshal(document(model.DefaultConfig()))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		var b strings.Builder
		b.WriteString("# codemeta2mp configuration\n")
		b.WriteString("#\n")
		b.WriteString("# Configuration hierarchy (highest to lowest priority):\n")
		b.WriteString("#   1. CLI flags\n")
		b.WriteString("#   2. Environment variables (CODEMETA2MP_*)\n")
		b.WriteString("#   3. This config file\n")
		b.WriteString("#   4. Built-in defaults\n")
		b.WriteString("#\n")
		b.WriteString("# Keep the Marketplace password out of this file:\n")
		b.WriteString("#   export CODEMETA2MP_MARKETPLACE_PASSWORD=...\n\n")
		b.Write(data)

		// 0600: the file may end up holding credentials
		if err := os.WriteFile(configPath, []byte(b.String()), 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

type setting struct {
	key   string
	value any
}

// settings lists every configuration key with its value in cfg
func settings(cfg *model.Config) []setting {
	return []setting{
		{"marketplace.base_url", cfg.Marketplace.BaseURL},
		{"marketplace.username", cfg.Marketplace.Username},
		{"marketplace.password", cfg.Marketplace.Password},
		{"marketplace.auth", string(cfg.Marketplace.Auth)},
		{"marketplace.token_ttl", cfg.Marketplace.TokenTTL},
		{"http.timeout", cfg.HTTP.Timeout},
		{"http.user_agent", cfg.HTTP.UserAgent},
		{"http.max_body_bytes", cfg.HTTP.MaxBodyBytes},
		{"http.insecure_tls", cfg.HTTP.InsecureTLS},
		{"http.respect_robots", cfg.HTTP.RespectRobots},
		{"http.http_proxy", cfg.HTTP.HTTPProxy},
		{"http.https_proxy", cfg.HTTP.HTTPSProxy},
		{"http.no_proxy", cfg.HTTP.NoProxy},
		{"cache.enabled", cfg.Cache.Enabled},
		{"cache.dir", cfg.Cache.Dir},
		{"cache.memory_ttl", cfg.Cache.MemoryTTL},
		{"cache.disk_ttl", cfg.Cache.DiskTTL},
		{"concurrency.workers", cfg.Concurrency.Workers},
		{"rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond},
		{"rate_limiting.burst_size", cfg.RateLimiting.BurstSize},
		{"links.check", cfg.Links.Check},
		{"links.workers", cfg.Links.Workers},
		{"output.pretty", cfg.Output.Pretty},
		{"output.verbose", cfg.Output.Verbose},
		{"metrics.textfile_path", cfg.Metrics.TextfilePath},
	}
}

// document renders cfg as nested sections with readable durations
func document(cfg *model.Config) map[string]map[string]any {
	doc := map[string]map[string]any{}
	for _, s := range settings(cfg) {
		section, key, _ := strings.Cut(s.key, ".")
		if doc[section] == nil {
			doc[section] = map[string]any{}
		}
		if d, ok := s.value.(time.Duration); ok {
			doc[section][key] = d.String()
		} else {
			doc[section][key] = s.value
		}
	}
	return doc
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg := model.DefaultConfig()
	for _, s := range settings(cfg) {
		viper.SetDefault(s.key, s.value)
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	flags := cmd.Flags()
	if noRobots, _ := flags.GetBool("no-robots"); noRobots {
		cfg.HTTP.RespectRobots = false
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	switch cfg.Marketplace.Auth {
	case model.AuthSignIn, model.AuthBasic:
	default:
		return nil, fmt.Errorf("marketplace.auth must be %q or %q, got %q", model.AuthSignIn, model.AuthBasic, cfg.Marketplace.Auth)
	}
	return cfg, nil
}
