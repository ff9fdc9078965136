package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/studytrack/internal/config"
	"github.com/rpggio/studytrack/internal/mcp"
	"github.com/rpggio/studytrack/internal/sqlite"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "studytrack",
		Short:         "Study session tracking and productivity analytics",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $STUDYTRACK_CONFIG_PATH)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newReportCmd(&configPath))
	root.AddCommand(newAPIKeyCmd(&configPath))
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio or http, per config)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, closeLog := newLogger(cfg.Log.Level, cfg.Transport.Mode)
	defer closeLog()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.restoreDefaultUser(ctx)
	server := mcp.NewServer(a.mcpServerConfig())

	var runErr error
	if cfg.Transport.Mode == "stdio" {
		runErr = runStdioMode(ctx, logger, server)
	} else {
		runErr = runHTTPMode(ctx, logger, server, cfg.Server.Host, cfg.Server.Port)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

func newReportCmd(configPath *string) *cobra.Command {
	var userID string
	var days int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a JSON analytics report for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if userID == "" {
				userID = cfg.Auth.DefaultUser
			}
			// Logs go to stderr so the report can be piped.
			cfg.Transport.Mode = "stdio"
			logger, closeLog := newLogger(cfg.Log.Level, cfg.Transport.Mode)
			defer closeLog()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			report, err := a.analytics.Report(cmd.Context(), userID, days)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (default auth.default_user)")
	cmd.Flags().IntVar(&days, "days", 0, "window in days (default analytics.window_days)")
	return cmd
}

func newAPIKeyCmd(configPath *string) *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage API keys for http mode"}

	var userID, token, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a user and print the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			db, err := openDB(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			if token == "" {
				token = uuid.NewString()
			}
			if err := sqlite.NewAPIKeyRepository(db).Create(cmd.Context(), userID, token, description); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	create.Flags().StringVar(&userID, "user", "", "user id the key authenticates as")
	create.Flags().StringVar(&token, "token", "", "token value (generated when empty)")
	create.Flags().StringVar(&description, "description", "", "free-form note")

	apikey.AddCommand(create)
	return apikey
}
