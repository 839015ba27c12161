// Command moccasin is a terminal RSS and Atom feed reader.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/rektdeckard/moccasin/internal/config"
	"github.com/rektdeckard/moccasin/internal/engine"
	"github.com/rektdeckard/moccasin/internal/fetch"
	"github.com/rektdeckard/moccasin/internal/store"
	"github.com/rektdeckard/moccasin/internal/tui"
)

var cli struct {
	Config  string `help:"Path to the configuration file (TOML or YAML)." type:"path"`
	DB      string `help:"Override the database path." type:"path"`
	NoCache bool   `help:"Keep fetched items in memory only."`
	Refresh bool   `help:"Run one refresh cycle and exit without starting the UI."`
	Verbose bool   `help:"Enable debug logging."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("moccasin"),
		kong.Description("A terminal RSS and Atom feed reader."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run())
}

func run() error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fetcher := fetch.New(cfg.Sync.Timeout())
	eng := engine.New(st, fetcher, cfg.Data.Feeds, engine.Options{
		Interval: cfg.Sync.Interval(),
		Retries:  uint64(cfg.Sync.RetryCount),
		Logger:   log,
	})

	if cli.Refresh {
		return refreshOnce(eng)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	program := tea.NewProgram(tui.NewModel(cfg, eng, st), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if cli.NoCache || !cfg.Sync.Cache {
		return store.OpenMemory()
	}

	path := cli.DB
	if path == "" {
		resolved, err := cfg.DBPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.Open(path)
}

func refreshOnce(eng *engine.Engine) error {
	report, err := eng.Refresh(context.Background())
	if err != nil {
		return err
	}
	for _, failure := range report.Failed {
		fmt.Fprintf(os.Stderr, "%s: %v\n", failure.URL, failure.Err)
	}
	fmt.Printf("refreshed %d feeds, %d failed\n", len(report.Succeeded), len(report.Failed))
	return nil
}

// newLogger writes to the configured log file. The terminal belongs to the
// UI, so logging falls back to discard rather than stderr.
func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cli.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	path, err := cfg.LogFile()
	if err == nil {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err == nil {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640); err == nil {
				log.SetOutput(f)
				return log
			}
		}
	}
	log.SetOutput(io.Discard)
	return log
}
