package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nainya/applydesk/internal/config"
	"github.com/nainya/applydesk/internal/editor"
	"github.com/nainya/applydesk/internal/metrics"
	"github.com/nainya/applydesk/internal/server"
	"github.com/nainya/applydesk/internal/telemetry"
	"github.com/nainya/applydesk/pkg/persist"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local editing daemon",
	Long: `Start the local daemon that hosts editing sessions over REST and websockets.
Version history is saved to the local store; metrics, health and pprof are
served on a separate port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(deps)
	},
}

func init() {
	d := config.Defaults()
	f := serveCmd.Flags()
	f.Int(config.FlagName("server.port"), d.Server.Port, "Daemon port (loopback only)")
	f.Int(config.FlagName("server.metrics_port"), d.Server.MetricsPort, "Metrics, health and pprof port")
	f.String(config.FlagName("tracing.jaeger_endpoint"), "", "Jaeger collector endpoint; empty disables tracing")
	f.Int(config.FlagName("history.max_snapshots"), d.History.MaxSnapshots, "Versions kept per document")

	rootCmd.AddCommand(serveCmd)
}

func runServe(d *RootDependencies) error {
	cfg := d.Config
	log := d.Log
	log.LogServerStart(cfg.Server.Port, cfg.Store.Path)

	shutdownTracing, err := telemetry.InitJaeger("applydesk", cfg.Tracing.JaegerEndpoint, log.Zerolog())
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	store, err := openStore(d)
	if err != nil {
		return err
	}
	defer store.Close()
	m.SetStoreSize(store.Size())

	storeLog := log.StoreLogger(cfg.Store.Path).Zerolog()
	mgr := editor.NewManager(editor.Deps{
		History: persist.NewHistoryAdapter(store,
			persist.WithLogger(storeLog),
			persist.WithMaxSnapshots(cfg.History.MaxSnapshots)),
		Generations: persist.NewGenerationCache(store, cfg.Generation.CacheTTL, storeLog),
		Preferences: persist.NewPreferences(store, storeLog),
		Backend:     newBackend(d, m),
		Metrics:     m,
		Logger:      log,
	}, editor.Config{
		QuietPeriod:        cfg.History.QuietPeriod,
		MinDistance:        cfg.History.MinDistance,
		PreviewQuietPeriod: cfg.Preview.QuietPeriod,
	}, nil)

	srv := server.New(server.Config{Port: cfg.Server.Port}, mgr, m, log)
	obs := server.NewObservabilityServer(cfg.Server.MetricsPort, reg, log)

	stop := make(chan struct{})
	go m.RunUptime(stop)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.SetStoreSize(store.Size())
			case <-stop:
				return
			}
		}
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- obs.Start() }()
	go func() { errCh <- srv.Start() }()

	fmt.Println(Green.Render(fmt.Sprintf("applydesk daemon listening on http://%s", srv.Addr())))
	log.LogServerReady(cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
	case runErr = <-errCh:
	}

	log.LogServerShutdown()
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Daemon shutdown incomplete").Err(err).Send()
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Warn("Observability shutdown incomplete").Err(err).Send()
	}
	return runErr
}
