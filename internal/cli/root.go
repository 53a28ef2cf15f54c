package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.2.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codemeta2mp",
	Short: "Convert CodeMeta software metadata into SSHOC Open Marketplace tools",
	Long: `codemeta2mp reads CodeMeta JSON-LD (a file, stdin or a URL) and maps it
onto the SSHOC Open Marketplace tool/service vocabulary.

The result is printed as JSON, or submitted to a Marketplace instance with
authenticated POST (create) or PUT (update) calls.

Fields that have no Marketplace equivalent are reported as warnings on
stderr; they never abort a conversion.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codemeta2mp v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.codemeta2mp/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	flags.String("base-url", "", "Marketplace API base URL")
	flags.String("username", "", "Marketplace username")
	flags.String("password", "", "Marketplace password (prefer CODEMETA2MP_MARKETPLACE_PASSWORD)")
	flags.String("auth", "", "Marketplace auth mode (signin, basic)")
	flags.Duration("http-timeout", 0, "timeout per HTTP request")
	flags.String("ua", "", "HTTP User-Agent")
	flags.Bool("insecure", false, "skip TLS certificate verification")
	flags.Bool("no-robots", false, "ignore robots.txt when fetching remote sources")
	flags.Bool("no-cache", false, "disable the remote source cache")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.Bool("pretty", false, "indent JSON output")
	flags.Bool("check-links", false, "check that mapped URLs answer, warn on dead ones")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")

	rootCmd.AddCommand(versionCmd)
}

// bindFlags maps persistent flags onto config keys
func bindFlags() {
	bindFlag("output.verbose", "verbose")
	bindFlag("marketplace.base_url", "base-url")
	bindFlag("marketplace.username", "username")
	bindFlag("marketplace.password", "password")
	bindFlag("marketplace.auth", "auth")
	bindFlag("http.timeout", "http-timeout")
	bindFlag("http.user_agent", "ua")
	bindFlag("http.insecure_tls", "insecure")
	bindFlag("http.http_proxy", "http-proxy")
	bindFlag("http.https_proxy", "https-proxy")
	bindFlag("output.pretty", "pretty")
	bindFlag("links.check", "check-links")
	bindFlag("metrics.textfile_path", "metrics-file")
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	bindFlags()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".codemeta2mp"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CODEMETA2MP_MARKETPLACE_PASSWORD -> marketplace.password
	viper.SetEnvPrefix("CODEMETA2MP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// newLogger writes structured logs to stderr; --verbose enables debug records
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
