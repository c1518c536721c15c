// main.go
//
// Entry point for the Pairs server binary.
// Commands:
//   - serve:   run the HTTP API (default port 5175).
//   - migrate: apply the embedded SQLite migrations and exit.
//   - play:    play one game in the terminal.
//
// Configuration comes from the environment (see internal/config); a .env
// file in the working directory is loaded first when present.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/pairs/assets"
	"github.com/robalobadob/pairs/internal/config"
	"github.com/robalobadob/pairs/internal/db"
	"github.com/robalobadob/pairs/internal/httpserver"
	"github.com/robalobadob/pairs/internal/store"
	"github.com/robalobadob/pairs/internal/tokens"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("pairs exited")
	}
}

// rootOptions holds global flags and the loaded configuration.
type rootOptions struct {
	LogLevel string
	cfg      config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pairs",
		Short:         "Pairs - a memory-match game server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			if err := setupLogging(cfg.LogLevel, cfg.LogPretty); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newPlayCommand(opts))
	return cmd
}

// setupLogging configures the global zerolog logger.
func setupLogging(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port != "" {
				cfg.Port = port
			}

			themes, err := loadThemes(cfg)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(conn, assets.Migrations()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mem := store.NewMemoryStore()
			go store.RunSweeper(ctx, mem, cfg.SessionTTL)

			return httpserver.New(cfg, mem, conn, themes).Start(ctx, ":"+cfg.Port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "override PORT")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(opts.cfg.DBPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(conn, assets.Migrations()); err != nil {
				return err
			}
			log.Info().Str("db", opts.cfg.DBPath).Msg("migrations up to date")
			return nil
		},
	}
}

// loadThemes reads the theme catalog and checks the default theme exists.
func loadThemes(cfg config.Config) (*tokens.Catalog, error) {
	themes, err := tokens.Load(cfg.ThemesFile)
	if err != nil {
		return nil, err
	}
	if _, ok := themes.Size(cfg.DefaultTheme); !ok {
		return nil, fmt.Errorf("DEFAULT_THEME %q: %w", cfg.DefaultTheme, tokens.ErrUnknownTheme)
	}
	return themes, nil
}
