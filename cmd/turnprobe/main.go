//go:build unix

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/config"
	"github.com/hamed0406/turnprobe/internal/httpapi"
	"github.com/hamed0406/turnprobe/internal/logging"
	"github.com/hamed0406/turnprobe/internal/notify"
	"github.com/hamed0406/turnprobe/internal/probe"
	"github.com/hamed0406/turnprobe/internal/repo"
	"github.com/hamed0406/turnprobe/internal/repo/memory"
	"github.com/hamed0406/turnprobe/internal/repo/postgres"
	"github.com/hamed0406/turnprobe/internal/scheduler"
	"github.com/hamed0406/turnprobe/internal/shutdown"
	"github.com/hamed0406/turnprobe/internal/snapshot"
)

const (
	drainTimeout   = 10 * time.Second
	connectTimeout = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "turnprobe: invalid configuration:", err)
		return 1
	}
	binary, err := probe.LookupBinary(cfg.ProbeBinary)
	if err != nil {
		fmt.Fprintln(os.Stderr, "turnprobe:", err)
		return 1
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Println("turnprobe: logger:", err)
		return 1
	}
	defer logger.Sync()

	coord := shutdown.New(logger)
	stopSignals := coord.Listen(os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stopSignals()

	workDir, err := os.MkdirTemp(cfg.WorkDir, "turnprobe-")
	if err != nil {
		logger.Error("workdir_create_error", zap.Error(err))
		return 1
	}
	pub := snapshot.NewPublisher(filepath.Join(workDir, "metrics"))

	var history repo.ResultStore = memory.New(cfg.HistorySize)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		cancel()
		if err != nil {
			logger.Error("history_db_error", zap.Error(err))
			_ = os.RemoveAll(workDir)
			return 1
		}
		defer pg.Close()
		history = pg
	}

	target := cfg.Address
	if cfg.Port > 0 {
		target = net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	}
	cmd := probe.TurnCommand(binary, probe.Target{Address: cfg.Address, Port: cfg.Port, Secret: cfg.Secret})

	api := httpapi.NewServer(logger, pub.Path(), httpapi.Options{
		Tokens:     cfg.MetricsToken,
		RatePerMin: cfg.RateLimit,
		Burst:      cfg.Burst,
	})
	srv := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("metrics_listen_error", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = os.RemoveAll(workDir)
		return 1
	}
	logger.Info("metrics_listen", zap.String("addr", ln.Addr().String()), zap.String("snapshot", pub.Path()))

	serveFailed := make(chan struct{})
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_serve_error", zap.Error(err))
			close(serveFailed)
			coord.Request("metrics server failed")
		}
	}()

	prober := scheduler.NewProber(
		logger,
		probe.NewProcessRunner(logger, coord),
		scheduler.NewFailureTracker(cfg.MaxFailures),
		pub,
		history,
		scheduler.NewAlerter(logger, notify.New(cfg.SlackWebhookURL), history, target),
		coord,
		scheduler.ProberConfig{
			Command:     cmd,
			Target:      target,
			Interval:    cfg.Interval,
			RetryDelay:  cfg.RetryDelay,
			SoftTimeout: cfg.SoftTimeout,
			HardTimeout: cfg.HardTimeout,
		},
	)
	prober.Run()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := multierr.Combine(srv.Shutdown(ctx), os.RemoveAll(workDir)); err != nil {
		logger.Warn("shutdown_incomplete", zap.Error(err))
	}

	select {
	case <-serveFailed:
		return 1
	default:
	}
	logger.Info("shutdown_complete", zap.String("reason", coord.Reason()))
	return 0
}
