package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alpha",
	Short: "Alpha content management server",
	Example: `alpha serve
alpha migrate up
alpha migrate down
alpha migrate to 3
alpha rights ensure`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rightsCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

// app is what every command needs: configuration, a logger and the database.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	db     *database.DB
	closer io.Closer
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &app{cfg: cfg, log: log, db: db, closer: closer}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.closer.Close()
}
