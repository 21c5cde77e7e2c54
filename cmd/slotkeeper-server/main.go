package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"slotkeeper/backend/internal/config"
	"slotkeeper/backend/internal/notify"
	"slotkeeper/backend/internal/reminders"
	"slotkeeper/backend/internal/service/booking"
	"slotkeeper/backend/internal/service/schedules"
	"slotkeeper/backend/internal/store"
	"slotkeeper/backend/internal/store/memory"
	"slotkeeper/backend/internal/store/postgres"
	grpcTransport "slotkeeper/backend/internal/transport/grpc"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "slotkeeper-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "slotkeeper-server"),
	)
	slog.SetDefault(log)

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("metrics_addr", cfg.MetricsAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("timezone", cfg.Timezone.String()),
	)

	st, err := openStores(context.Background(), cfg, log)
	if err != nil {
		os.Exit(1)
	}

	dispatcher := notify.NewSMSDispatcher(notify.Config{
		Enabled:       cfg.SMSEnabled,
		SenderID:      cfg.SMSSenderID,
		RatePerSecond: cfg.SMSRatePerSecond,
		Burst:         cfg.SMSBurst,
		QueueSize:     cfg.SMSQueueSize,
		SendTimeout:   cfg.SMSSendTimeout,
	}, nil, st.notifications, st.schedules, log)

	coordinator := booking.NewCoordinator(st.bookings, dispatcher, log)
	scheduleSvc := schedules.NewService(st.schedules)

	var reminderScheduler *reminders.Scheduler
	if cfg.RemindersEnabled {
		job := reminders.NewJob(st.bookings, dispatcher, cfg.Timezone, log)
		reminderScheduler, err = reminders.NewScheduler(cfg.RemindersSchedule, job, cfg.Timezone, cfg.RemindersTimeout, log)
		if err != nil {
			log.Error("reminder schedule invalid", slog.Any("err", err))
			st.close(log)
			os.Exit(1)
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.DefaultTimeoutInterceptor(cfg.GRPCRequestTimeout),
			grpcTransport.MetricsInterceptor(),
		),
	)
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingsServer(coordinator, scheduleSvc, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		st.close(log)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("metrics server started", slog.String("metrics_addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics serve: %w", err)
			}
			return nil
		})
	}

	if reminderScheduler != nil {
		reminderScheduler.Start()
		log.Info("reminders scheduled", slog.String("schedule", cfg.RemindersSchedule), slog.Time("next_run", reminderScheduler.Next()))
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Info("shutdown signal received")
		}
		shutdown(log, grpcServer, metricsServer, cfg.ShutdownTimeout)
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		log.Error("server stopped with error", slog.Any("err", runErr))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if reminderScheduler != nil {
		if err := reminderScheduler.Stop(drainCtx); err != nil {
			log.Warn("reminder scheduler stop timed out", slog.Any("err", err))
		}
	}
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Warn("notification queue drain timed out", slog.Any("err", err))
	}
	cancel()
	st.close(log)

	if runErr != nil {
		os.Exit(1)
	}
}

type stores struct {
	bookings      store.BookingRepository
	schedules     store.ScheduleRepository
	notifications store.NotificationLog
	closeFn       func() error
}

func (s stores) close(log *slog.Logger) {
	if s.closeFn == nil {
		return
	}
	if err := s.closeFn(); err != nil {
		log.Warn("database close failed", slog.Any("err", err))
	}
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.DatabaseDriver == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		m := memory.New()
		return stores{bookings: m, schedules: m, notifications: m}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		PingTimeout:     cfg.DBTxTimeout,
		SlowQuery:       cfg.DBSlowQuery,
	}, log)
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return stores{}, err
	}

	return stores{
		bookings:      postgres.NewBookingRepo(db, cfg.DBTxTimeout),
		schedules:     postgres.NewScheduleRepo(db),
		notifications: postgres.NewNotificationRepo(db),
		closeFn:       func() error { return postgres.Close(db) },
	}, nil
}

func shutdown(log *slog.Logger, s *grpc.Server, metricsServer *http.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("metrics server shutdown failed", slog.Any("err", err))
		}
	}
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
