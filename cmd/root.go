package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complyflow/complyflow/internal/fetch"
	"github.com/complyflow/complyflow/internal/llm"
	"github.com/complyflow/complyflow/internal/output"
	"github.com/complyflow/complyflow/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Repository

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "complyflow",
	Short: "ComplyFlow - scan web pages for WCAG accessibility issues",
	Long: `complyflow fetches a web page, runs accessibility checks against it,
scores the result and keeps a history of scans per URL.

Scans can be run on demand, on a schedule, or through the HTTP API
and MCP server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/complyflow/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("COMPLYFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default relative to dir.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "complyflow.db"))
	viper.SetDefault("db.driver", store.DriverSQLite)
	viper.SetDefault("scanner.timeout", "30s")
	viper.SetDefault("scanner.user_agent", fetch.DefaultUserAgent)
	viper.SetDefault("scanner.insecure_hosts", []string{"localhost", "127.0.0.1"})
	viper.SetDefault("schedule.frequency", "daily")
	viper.SetDefault("schedule.urls", []string{})
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
	viper.SetDefault("port", 8080)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Initialize store lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Repository, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	driver := viper.GetString("db.driver")
	dbPath := viper.GetString("db_path")
	s, err := store.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(cmdContext()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	ui.VerboseLog("Using %s store at %s", driver, dbPath)
	dataStore = s
	return dataStore, nil
}

// cmdContext returns the running command's context, or Background outside Execute.
func cmdContext() context.Context {
	if ctx := rootCmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
