// Command netsend streams the first channel of an audio host's render blocks
// to a UDP destination and serves health, control and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/netsend/internal/app"
	"github.com/MrWong99/netsend/internal/config"
	"github.com/MrWong99/netsend/internal/control"
	"github.com/MrWong99/netsend/internal/health"
	"github.com/MrWong99/netsend/internal/observe"
	"github.com/MrWong99/netsend/internal/resilience"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "netsend.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file with NETSEND_* overrides")
	watch := flag.Bool("watch", true, "reload offset and log level when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "netsend: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "netsend: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "netsend: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("netsend starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		RuntimeMetrics: true,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinHosts(reg)

	opts := []app.Option{
		app.WithMetrics(metrics),
		app.WithLevelVar(&level),
	}
	if *watch {
		opts = append(opts, app.WithConfigWatch(*configPath))
	}
	application, err := app.New(cfg, reg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg, application)

	// ── HTTP server ───────────────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(application.HealthCheckers()...).Register(mux)
		breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "connect"})
		control.New(application.Bridge(), control.WithBreaker(breaker)).Register(mux)
		mux.Handle("GET /metrics", provider.MetricsHandler())

		srv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
				stop()
			}
		}()
	}

	slog.Info("streaming, press Ctrl+C to shut down")

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	st := application.Bridge().Stats()
	slog.Info("goodbye",
		"rendered", st.Rendered,
		"staged", st.Staged,
		"dropped", st.Dropped,
		"render_mean", application.RenderTimer().Mean(),
	)
	return code
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, a *app.App) {
	s := a.Bridge().Settings()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         netsend: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Host", a.HostName())
	printRow("Sample rate", fmt.Sprintf("%g Hz", cfg.Host.SampleRate))
	printRow("Vector size", fmt.Sprintf("%d", cfg.Host.VectorSize))
	printRow("Channels", fmt.Sprintf("%d", s.Channels))
	printRow("Destination", s.Address+" / "+s.Port)
	if cfg.Bridge.AutoConnect {
		printRow("Auto-connect", "on")
	} else {
		printRow("Auto-connect", "(off, POST /connect)")
	}
	if cfg.Bridge.DSCP > 0 {
		printRow("DSCP", fmt.Sprintf("%d", cfg.Bridge.DSCP))
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	} else {
		printRow("Listen addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}
