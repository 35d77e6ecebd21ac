package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/config"
	"github.com/Tiliavir/git-timesheets/internal/store"
)

var (
	configPath string
	storePath  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gts",
	Short: "git timesheets – turn commit history into monthly timesheets",
	Long: `gts infers worked days and hours from the commit timestamps of your
local git repositories, keeps them per client and project in a local
database (~/.gts/gts.db), and renders or shares monthly timesheets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(apperr.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.gts/config.json)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Database file (overrides store.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(makeCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(sandboxCmd)
}

// newLogger builds the stderr logger; --verbose lowers the level to debug.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies --store.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	return cfg, nil
}

// session bundles what every store-backed command needs. The store is
// opened once per command and closed when the command returns.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
}

func openSession(cmd *cobra.Command) (*session, error) {
	logger := newLogger(cmd.ErrOrStderr())
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cmd.Context(), cfg.Store.Path, store.Options{
		LockTimeout: cfg.Store.LockTimeout.Std(),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, store: st}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "err", err)
	}
}
