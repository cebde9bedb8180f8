package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SerLarMan/practica-final-backend/internal/config"
	"github.com/SerLarMan/practica-final-backend/internal/events"
	availabilitysvc "github.com/SerLarMan/practica-final-backend/internal/service/availability"
	bookingssvc "github.com/SerLarMan/practica-final-backend/internal/service/bookings"
	"github.com/SerLarMan/practica-final-backend/internal/store/postgres"
	httptransport "github.com/SerLarMan/practica-final-backend/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	var bus events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		natsBus, err := events.Connect(cfg.NATSURL)
		if err != nil {
			log.Error("nats connection failed", slog.Any("err", err), slog.String("nats_url", cfg.NATSURL))
			os.Exit(1)
		}
		bus = natsBus
	} else {
		log.Warn("nats url not configured; booking events will not be published")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", slog.Any("err", err))
		}
	}()

	resourceRepo := postgres.NewResourceRepo(db)
	bookingRepo := postgres.NewBookingRepo(db)
	availabilityService := availabilitysvc.NewService(resourceRepo, bookingRepo)
	bookingService := bookingssvc.NewService(resourceRepo, bookingRepo, bus, log)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		RequestTimeout:     cfg.RequestTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	},
		httptransport.NewAvailabilityHandler(availabilityService, log),
		httptransport.NewBookingsHandler(bookingService, log),
		log,
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runNoShowSweeper(ctx, log, bookingService, cfg.NoShowSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, server, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// runNoShowSweeper periodically resolves the time-driven no_show transition.
// A plain ticker: no per-booking timers, nothing tied to object lifetime.
func runNoShowSweeper(ctx context.Context, log *slog.Logger, svc *bookingssvc.Service, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := svc.SweepNoShows(sweepCtx, now)
			cancel()
			if err != nil {
				log.Warn("no-show sweep failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				log.Info("no-show sweep applied", slog.Int("count", n))
			}
		}
	}
}

func shutdown(log *slog.Logger, s *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; forcing close", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
