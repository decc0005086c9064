package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nainya/applydesk/internal/config"
	"github.com/nainya/applydesk/internal/logger"
	"github.com/nainya/applydesk/internal/metrics"
	"github.com/nainya/applydesk/pkg/backend"
	"github.com/nainya/applydesk/pkg/localstore"
)

// RootDependencies is built once per invocation from the resolved config
type RootDependencies struct {
	Config config.Config
	Log    *logger.Logger
}

var (
	configFile string
	envFile    string
	deps       *RootDependencies
)

var rootCmd = &cobra.Command{
	Use:   "applydesk",
	Short: "Edit application documents with version history",
	Long: `applydesk keeps a bounded undo/redo history for cover letters and resumes,
snapshots edits automatically and talks to the application backend for grammar
checks, generation, compilation and submission automation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			File:    configFile,
			EnvFile: envFile,
			Flags:   cmd.Flags(),
		})
		if err != nil {
			return err
		}
		logger.InitGlobalLogger(logger.Config{
			Level:  cfg.Log.Level,
			Pretty: cfg.Log.Pretty,
		})
		deps = &RootDependencies{Config: cfg, Log: logger.GetGlobalLogger()}
		return nil
	},
}

// Execute runs the root command, printing any error in red
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, Red.Render("Error: "+err.Error()))
	}
	return err
}

func init() {
	d := config.Defaults()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Config file (default: applydesk.yaml in . or the user config dir)")
	pf.StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading config")

	pf.String(config.FlagName("backend.base_url"), d.Backend.BaseURL, "Application backend base URL")
	pf.String(config.FlagName("backend.token"), "", "Bearer token for the backend")
	pf.Duration(config.FlagName("backend.timeout"), d.Backend.Timeout, "Backend request timeout")
	pf.String(config.FlagName("store.path"), d.Store.Path, "Local slot store file")
	pf.String(config.FlagName("log.level"), d.Log.Level, "Log level (debug, info, warn, error)")
	pf.Bool(config.FlagName("log.pretty"), false, "Human readable logs")
}

// openStore opens the local slot store named by the config
func openStore(d *RootDependencies) (*localstore.File, error) {
	store, err := localstore.Open(d.Config.Store.Path, localstore.Options{
		Logger: d.Log.StoreLogger(d.Config.Store.Path).Zerolog(),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if rec := store.Recovery(); rec.Discarded > 0 {
		fmt.Println(Yellow.Render(fmt.Sprintf("Recovered local store: kept %d records, discarded %d bytes (%v)",
			rec.Records, rec.Discarded, rec.Cause)))
	}
	return store, nil
}

// newBackend builds a backend client that logs every call and, when m is
// set, records it
func newBackend(d *RootDependencies, m *metrics.Metrics) *backend.Client {
	log := d.Log.BackendLogger()
	opts := []backend.Option{
		backend.WithTimeout(d.Config.Backend.Timeout),
		backend.WithObserver(func(endpoint string, status int, dur time.Duration, err error) {
			log.LogBackendCall(endpoint, status, dur, err)
			m.RecordBackend(endpoint, status, dur)
		}),
	}
	if d.Config.Backend.Token != "" {
		opts = append(opts, backend.WithToken(backend.StaticToken(d.Config.Backend.Token)))
	}
	return backend.NewClient(d.Config.Backend.BaseURL, opts...)
}

// withSpinner runs fn behind a spinner, the way long backend calls are shown
func withSpinner(msg string, fn func(ctx context.Context) error) error {
	spinner, _ := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100 * time.Millisecond).
		WithRemoveWhenDone(true).
		Start(msg)

	err := fn(context.Background())
	if spinner != nil {
		spinner.Stop()
	}
	return err
}

// parseID parses a numeric backend identifier argument
func parseID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

// describe turns a backend error into the message shown to the user
func describe(err error) error {
	if msg := backend.UserMessage(err); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	return err
}
