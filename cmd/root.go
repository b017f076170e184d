package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trkhq/trk/internal/issues"
	"github.com/trkhq/trk/internal/output"
	"github.com/trkhq/trk/internal/session"
	"github.com/trkhq/trk/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui         *output.UI
	blobStore  store.Blobs
	collection *issues.Collection
	sessionMgr *session.Manager

	verbose bool
	dryRun  bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "trk",
	Short: "trk - a lightweight issue tracker with AI feedback triage",
	Long: `trk tracks issues in a local SQLite-backed store: create, update,
filter, archive, and delete them, and turn raw user feedback into
proposed issues with an AI triage pass.`,
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

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/trk/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "trk")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRK")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "trk")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "trk.db"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and containers are initialized lazily - only when commands
	// actually need them. This allows config/version to run without a db.
}

// getBlobs returns the shared blob store, initializing it on first call.
func getBlobs() (store.Blobs, error) {
	if blobStore != nil {
		return blobStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	blobStore = s
	return blobStore, nil
}

// getCollection returns the issue collection, loading it on first call.
func getCollection() (*issues.Collection, error) {
	if collection != nil {
		return collection, nil
	}

	blobs, err := getBlobs()
	if err != nil {
		return nil, err
	}

	c, err := issues.Open(context.Background(), blobs)
	if err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}

	collection = c
	return collection, nil
}

// getSession returns the session manager, loading it on first call.
func getSession() (*session.Manager, error) {
	if sessionMgr != nil {
		return sessionMgr, nil
	}

	blobs, err := getBlobs()
	if err != nil {
		return nil, err
	}

	m, err := session.Open(context.Background(), blobs)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sessionMgr = m
	return sessionMgr, nil
}
