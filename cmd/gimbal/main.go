package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/gimbal/internal/config"
	"github.com/banshee-data/gimbal/internal/db"
	"github.com/banshee-data/gimbal/internal/gimbal"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/gimbal/sim"
	"github.com/banshee-data/gimbal/internal/monitoring"
	"github.com/banshee-data/gimbal/internal/transport"
	"github.com/banshee-data/gimbal/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file (built-in defaults when empty)")
	devMode     = flag.Bool("dev", false, "Talk to a simulated gimbal instead of the configured link")
	simDrop     = flag.Float64("sim-drop", 0, "Dev mode: probability that the simulator drops a reply")
	dbPathFlag  = flag.String("db", "", "SQLite database path (overrides config)")
	adminListen = flag.String("admin", "", "Admin HTTP listen address (overrides config)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	noRecord    = flag.Bool("no-record", false, "Do not persist telemetry or the command log")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func loadConfig(path string) (*config.GimbalConfig, error) {
	if path == "" {
		return &config.GimbalConfig{}, nil
	}
	return config.LoadGimbalConfig(path)
}

// applyFlags copies command-line overrides into cfg.
func applyFlags(cfg *config.GimbalConfig) {
	if *dbPathFlag != "" {
		cfg.DBPath = dbPathFlag
	}
	if *adminListen != "" {
		cfg.AdminListen = adminListen
	}
	if *logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// openLink opens the configured transport. In dev mode it returns one end of
// an in-memory pipe and a simulator serving the other end.
func openLink(cfg *config.GimbalConfig, dev bool) (transport.Transport, *sim.Simulator, error) {
	if !dev {
		tr, err := gimbal.OpenLink(cfg)
		return tr, nil, err
	}
	host, device := transport.Pipe(256)
	g := sim.New(device, sim.Options{
		Codec:    frame.Codec{Checksum: cfg.GetChecksum()},
		DropRate: *simDrop,
		Seed:     uint64(time.Now().UnixNano()),
	})
	return host, g, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("gimbal"))
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := monitoring.Configure(os.Stderr, cfg.GetLogLevel(), "gimbal"); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	monitoring.Logf("starting %s", version.String("gimbal"))

	link, simulator, err := openLink(cfg, *devMode)
	if err != nil {
		log.Fatalf("failed to open gimbal link: %v", err)
	}

	var (
		store    *db.DB
		recorder *db.Recorder
	)
	scfg := gimbal.ConfigFrom(cfg)
	if !*noRecord {
		store, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		recorder = db.NewRecorder(store, 0)
		scfg.Observer = recorder.Observe
	}

	session := gimbal.NewSession(link, scfg)
	defer session.Close()
	monitoring.Logf("gimbal session on %s (checksum %s, timeout %v, retries %d)",
		link, scfg.Codec.Checksum, scfg.Dispatch.Timeout, scfg.Dispatch.MaxRetries)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if simulator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := simulator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("simulator stopped: %v", err)
			}
		}()
	}

	// ingestion routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("ingestion stopped: %v", err)
			stop()
		}
		monitoring.Logf("ingestion routine terminated")
	}()

	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, events := session.Subscribe()
			defer session.Unsubscribe(id)
			if err := recorder.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("recorder stopped: %v", err)
			}
			monitoring.Logf("recorder routine terminated")
		}()
	}

	if cfg.GetAttitudeAutoSend() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := gimbal.NewClient(session)
			if err := client.SetAttitudeAutoSend(ctx, true); err != nil {
				monitoring.Logf("failed to enable attitude auto-send: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		session.AttachAdminRoutes(mux)
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				monitoring.Logf("database admin routes unavailable: %v", err)
			}
		}

		server := &http.Server{
			Addr:    cfg.GetAdminListen(),
			Handler: mux,
		}
		go func() {
			monitoring.Logf("admin server listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("admin server failed: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	<-ctx.Done()
	// Closing the session ends ingestion and closes every telemetry
	// subscription, which lets the recorder return.
	if err := session.Close(); err != nil {
		monitoring.Logf("session close: %v", err)
	}
	wg.Wait()
	monitoring.Logf("Graceful shutdown complete")
}
