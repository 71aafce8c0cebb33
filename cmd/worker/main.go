// Command worker runs the platform's per-kind job worker loops plus the
// housekeeping sweeps (orphan reaper, stale-heartbeat watchdog, expired-share
// sweep) that the HTTP server process never touches.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aidocs/platform/internal/application/worker"
	"github.com/aidocs/platform/internal/application/worker/executors"
	"github.com/aidocs/platform/internal/observability"
	pkgmodels "github.com/aidocs/platform/pkg/models"
	"github.com/aidocs/platform/pkg/server"
)

func main() {
	srv, err := server.New()
	if err != nil {
		log.Fatalf("failed to initialize worker dependencies: %v", err)
	}
	logger := srv.Logger()
	cfg := srv.Config().Worker

	slideDeckExec := executors.NewSlideDeckExecutor(srv.Artifacts(), srv.ProviderFacade(), logger)
	chapterExec := executors.NewChapterExecutor(srv.Artifacts(), srv.ProviderFacade(), logger)
	bookExec := executors.NewBookExecutor(srv.Artifacts(), srv.ProviderFacade(), logger)
	testExec := executors.NewTestExecutor(srv.Artifacts(), srv.ProviderFacade(), logger)

	loops := []struct {
		kind     pkgmodels.JobKind
		executor worker.Executor
	}{
		{pkgmodels.JobKindSlideDeck, slideDeckExec},
		{pkgmodels.JobKindChapter, chapterExec},
		{pkgmodels.JobKindBook, bookExec},
		{pkgmodels.JobKindTest, testExec},
	}

	var metricsServer *http.Server
	if srv.Config().Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(srv.Config().Metrics.Path, observability.Handler())
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", srv.Config().Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, l := range loops {
		workerCfg := worker.Config{
			Kind:                l.kind,
			PopTimeout:          cfg.PopTimeout,
			HeartbeatStaleMulti: cfg.HeartbeatStaleMulti,
			HeartbeatInterval:   cfg.HeartbeatInterval,
			MaxAttempts:         cfg.MaxAttempts,
			JobWallClockTimeout: cfg.JobWallClockTimeout,
		}
		w := worker.New(workerCfg, srv.Queue(), srv.JobRepository(), srv.Ledger(), l.executor, logger).
			WithMetrics(srv.Metrics()).
			WithBroadcaster(srv.WSPublisher())
		wg.Add(1)
		go func(kind pkgmodels.JobKind) {
			defer wg.Done()
			logger.Info("worker loop started", "kind", string(kind))
			w.Run(ctx)
			logger.Info("worker loop stopped", "kind", string(kind))
		}(l.kind)
	}

	watchdogCfg := worker.Config{HeartbeatStaleMulti: cfg.HeartbeatStaleMulti, HeartbeatInterval: cfg.HeartbeatInterval}
	watchdog := worker.NewWatchdog(watchdogCfg, srv.JobRepository(), srv.Ledger(), logger)

	c := cron.New()
	reaperSchedule := fmt.Sprintf("@every %s", cfg.ReaperInterval)
	if _, err := c.AddFunc(reaperSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := srv.Queue().ReapOrphans(sweepCtx, cfg.ReaperStaleAfter); err != nil {
			logger.Error("orphan reaper sweep failed", "error", err)
		} else if n > 0 {
			logger.Info("orphan reaper recovered jobs", "count", n)
		}
		if n, err := watchdog.Sweep(sweepCtx); err != nil {
			logger.Error("watchdog sweep failed", "error", err)
		} else if n > 0 {
			logger.Info("watchdog reaped stale running jobs", "count", n)
		}
		for _, l := range loops {
			if depth, err := srv.Queue().Depth(sweepCtx, l.kind); err != nil {
				logger.Error("queue depth sample failed", "kind", string(l.kind), "error", err)
			} else {
				srv.Metrics().SetQueueDepth(string(l.kind), float64(depth))
			}
		}
	}); err != nil {
		log.Fatalf("schedule reaper sweep: %v", err)
	}
	if _, err := c.AddFunc("@daily", func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := srv.AccessEngine().SweepExpiredShares(sweepCtx, time.Now()); err != nil {
			logger.Error("expired share sweep failed", "error", err)
		} else if n > 0 {
			logger.Info("expired shares swept", "count", n)
		}
	}); err != nil {
		log.Fatalf("schedule share sweep: %v", err)
	}
	c.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info("worker shutdown initiated", "signal", sig)

	cronCtx := c.Stop()
	<-cronCtx.Done()
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), srv.Config().Server.ShutdownTimeout)
	defer shutdownCancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker dependency shutdown failed", "error", err)
	}
}
