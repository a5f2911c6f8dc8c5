// ABOUTME: Root Cobra command and global flags
// ABOUTME: Sets up CLI structure and initializes config and database

package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/podkeep/internal/config"
	"github.com/harper/podkeep/internal/db"
)

var (
	configPath string
	dbPath     string
	cfg        *config.Config
	dbConn     *sql.DB
)

var rootCmd = &cobra.Command{
	Use:   "podkeep",
	Short: "Podcast subscription tracker and feed sync engine",
	Long: `podkeep tracks podcast subscriptions for users and keeps each
user's unlistened-episode feed current by periodically re-fetching
RSS feeds.

Run the API server with 'podkeep serve', or use the subcommands for
one-shot operations against the same database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if dbPath == "" {
			dbPath = cfg.DBPath()
		}

		dbConn, err = db.InitDB(dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/podkeep/config.json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (default: <data_dir>/podkeep.db)")
}
