package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/util"
)

// Version is set at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	// appConfig is loaded once per invocation before any subcommand runs
	appConfig *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "adjudex",
	Short: "adjudex - Claims adjudication decision core",
	Long: `adjudex decides, per invoice line item, whether a repair is covered by a
warranty policy, computes the payout and derives the claim verdict
(APPROVE, DENY or REFER).

Deterministic rules decide first. Vocabulary hints and an optional reasoning
oracle handle the rest. Every decision is traced per item and stored as a
versioned dossier.

The reasoning oracle advises. The decision engine decides.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		appConfig = cfg

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if _, err := util.SetupLogger(level, cfg.Log.Format); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		if verbose && viper.ConfigFileUsed() != "" {
			slog.Debug("Using config file", "path", viper.ConfigFileUsed())
		}
		return nil
	},
}

// Execute runs the root command. Cancelling ctx aborts running adjudications
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of adjudex and the active configuration version.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("adjudex %s (config %s)\n", Version, appConfig.Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.adjudex/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig locates the config file and wires ADJUDEX_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.adjudex")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// ADJUDEX_ORACLE_PROVIDER maps to oracle.provider
	viper.SetEnvPrefix("ADJUDEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// envOverrides are the config keys that can be set through flags or ADJUDEX_* variables
var envOverrides = []string{
	"version",
	"oracle.provider",
	"oracle.model",
	"oracle.api_key",
	"oracle.base_url",
	"store.driver",
	"store.path",
	"server.addr",
	"log.level",
	"log.format",
}

// loadConfig starts from the defaults, overlays the config file found by v
// and then the explicit overrides. Decoding goes through yaml so the struct
// tags stay the single source of key names
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path := v.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	for _, key := range envOverrides {
		val := v.GetString(key)
		if val == "" {
			continue
		}
		setString(&cfg, key, val)
	}

	applyAPIKeyEnv(&cfg.Oracle)

	if cfg.Version == "" {
		return nil, fmt.Errorf("config: version is required")
	}
	return &cfg, nil
}

func setString(cfg *model.Config, key, val string) {
	switch key {
	case "version":
		cfg.Version = val
	case "oracle.provider":
		cfg.Oracle.Provider = val
	case "oracle.model":
		cfg.Oracle.Model = val
	case "oracle.api_key":
		cfg.Oracle.APIKey = val
	case "oracle.base_url":
		cfg.Oracle.BaseURL = val
	case "store.driver":
		cfg.Store.Driver = val
	case "store.path":
		cfg.Store.Path = val
	case "server.addr":
		cfg.Server.Addr = val
	case "log.level":
		cfg.Log.Level = val
	case "log.format":
		cfg.Log.Format = val
	}
}

// applyAPIKeyEnv falls back to the conventional provider variables
func applyAPIKeyEnv(c *model.OracleConfig) {
	switch strings.ToLower(c.Provider) {
	case "openai":
		if c.APIKey == "" {
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.APIKey == "" {
			c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if c.APIKey == "" {
			c.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}
