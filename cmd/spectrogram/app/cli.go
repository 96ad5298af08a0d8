package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/live-spectrogram/internal/storage"
)

// CLI is the command line grammar.
type CLI struct {
	Config   string `help:"Path to the YAML configuration file." short:"c" type:"existingfile" optional:""`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)." name:"log-level" optional:""`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Render a live spectrogram."`
	Sessions SessionsCmd `cmd:"" help:"List archived sessions."`
}

// load reads the configuration and applies the log level.
func (c *CLI) load(level *slog.LevelVar) (*Config, error) {
	config, err := LoadConfig(c.Config)
	if err != nil {
		return nil, err
	}

	if c.LogLevel != "" {
		config.Settings.LogLevel = c.LogLevel
	}
	l, err := parseLogLevel(config.Settings.LogLevel)
	if err != nil {
		return nil, err
	}
	level.Set(l)

	return config, nil
}

// RunCmd renders the spectrogram until interrupted.
type RunCmd struct {
	Headless bool       `help:"Render offscreen without a window. SIGHUP starts a new session."`
	Source   SourceType `help:"Override the configured source (synthetic, command, replay, archive)." optional:""`
	Snapshot string     `help:"Write the presented frame to this file periodically." optional:""`
	Archive  bool       `help:"Archive rendered frames in the session database."`
}

func (r *RunCmd) Run(ctx context.Context, cli *CLI, logger *slog.Logger, level *slog.LevelVar) error {
	config, err := cli.load(level)
	if err != nil {
		return err
	}

	if r.Source != "" {
		config.Source.Type = r.Source
	}
	if r.Snapshot != "" {
		config.Snapshot.Path = r.Snapshot
	}
	if r.Archive {
		config.Storage.Enabled = true
	}
	if err = config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return Run(ctx, config, r.Headless, logger)
}

// SessionsCmd lists the sessions stored in the archive.
type SessionsCmd struct {
	DB string `help:"Archive database, overrides storage.path." optional:""`
}

func (s *SessionsCmd) Run(ctx context.Context, cli *CLI, level *slog.LevelVar) error {
	config, err := cli.load(level)
	if err != nil {
		return err
	}

	dbPath := config.Storage.Path
	if s.DB != "" {
		dbPath = s.DB
	}
	if _, err = os.Stat(dbPath); err != nil {
		return fmt.Errorf("archive database '%s' is not readable: %w", dbPath, err)
	}

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSOURCE\tBINS\tCOLUMNS")
	for _, sess := range sessions {
		fmt.Fprintf(w, "%d\t%s (%s)\t%s\t%d\t%d\n",
			sess.ID,
			sess.StartTime.Local().Format(time.DateTime),
			humanize.Time(sess.StartTime),
			sess.Source,
			sess.NumBins,
			sess.Columns)
	}
	return w.Flush()
}
