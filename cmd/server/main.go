package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/staffops/internal/config"
	"github.com/mamadbah2/staffops/internal/repository/mongodb"
	"github.com/mamadbah2/staffops/internal/repository/sheets"
	"github.com/mamadbah2/staffops/internal/scheduler"
	"github.com/mamadbah2/staffops/internal/server/handlers"
	"github.com/mamadbah2/staffops/internal/server/router"
	activitysvc "github.com/mamadbah2/staffops/internal/service/activity"
	exportsvc "github.com/mamadbah2/staffops/internal/service/export"
	"github.com/mamadbah2/staffops/internal/service/inbox"
	"github.com/mamadbah2/staffops/internal/service/invoices"
	"github.com/mamadbah2/staffops/internal/service/overview"
	"github.com/mamadbah2/staffops/internal/service/rates"
	reportingsvc "github.com/mamadbah2/staffops/internal/service/reporting"
	"github.com/mamadbah2/staffops/internal/service/timesheets"
	whatsappsvc "github.com/mamadbah2/staffops/internal/service/whatsapp"
	"github.com/mamadbah2/staffops/pkg/clients/backend"
	whatsappclient "github.com/mamadbah2/staffops/pkg/clients/whatsapp"
	"github.com/mamadbah2/staffops/pkg/logger"
)

const initialFetchTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional storage. Interfaces stay nil (not typed nil pointers) when disabled.
	var activityRepo mongodb.Repository
	if cfg.MongoDB.Enabled() {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		activityRepo = mongoRepo
		baseLogger.Info("activity trail enabled", zap.String("db", cfg.MongoDB.DBName))
	} else {
		baseLogger.Warn("mongodb uri missing, activity trail kept in logs only")
	}

	var sheetRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		googleRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetRepo = googleRepo
		baseLogger.Info("invoice export enabled")
	} else {
		baseLogger.Warn("google sheets not configured, invoice export disabled")
	}

	var notifier whatsappsvc.Notifier
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		notifier = whatsappsvc.NewFinanceNotifier(cfg.WhatsApp.FinanceRecipient, whatsClient, logger.Named(baseLogger, "svc.whatsapp"))
		baseLogger.Info("finance notifications enabled")
	} else {
		baseLogger.Warn("whatsapp not configured, finance notifications disabled")
	}

	backendClient := backend.NewClient(cfg.Backend, logger.Named(baseLogger, "client.backend"))
	activitySvc := activitysvc.NewService(activityRepo, logger.Named(baseLogger, "svc.activity"))
	exporter := exportsvc.NewExporter(sheetRepo, logger.Named(baseLogger, "svc.export"))
	reportingSvc := reportingsvc.NewService(sheetRepo, logger.Named(baseLogger, "svc.reporting"))

	overviewView := overview.NewView(backendClient, cfg.Inbox.SubjectFilter, logger.Named(baseLogger, "view.overview"))
	inboxView := inbox.NewView(backendClient, inbox.Config{
		SubjectFilter: cfg.Inbox.SubjectFilter,
		BatchGap:      cfg.Workflow.BatchGap,
		RemovalDelay:  cfg.Workflow.InboxRemovalDelay,
		Recorder:      activitysvc.For[string](activitySvc),
	}, logger.Named(baseLogger, "view.inbox"))
	defer inboxView.Close()
	timesheetsView := timesheets.NewView(backendClient, logger.Named(baseLogger, "view.timesheets"))
	ratesView := rates.NewView(backendClient, activitySvc, logger.Named(baseLogger, "view.rates"))
	invoicesView := invoices.NewView(backendClient, invoices.Config{
		RefreshDelay: cfg.Workflow.InvoiceRefreshDelay,
		Exporter:     exporter,
		Notifier:     notifier,
		Activity:     activitySvc,
	}, logger.Named(baseLogger, "view.invoices"))
	defer invoicesView.Close()

	initialFetch(ctx, baseLogger, overviewView, inboxView, timesheetsView, ratesView, invoicesView)

	var reporter scheduler.Reporter
	if reportingSvc.Enabled() {
		reporter = reportingSvc
	}
	sched := scheduler.NewScheduler(cfg.Refresh.CronSchedule, []scheduler.Job{
		{Name: "inbox", Target: inboxView},
		{Name: "overview", Target: overviewView},
	}, reporter, notifier, activitySvc, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	dashboardHandler := handlers.NewDashboardHandler(ctx, handlers.Dependencies{
		Backend:    backendClient,
		Overview:   overviewView,
		Inbox:      inboxView,
		Timesheets: timesheetsView,
		Rates:      ratesView,
		Invoices:   invoicesView,
		Reports:    reportingSvc,
		Activity:   activitySvc,
	}, logger.Named(baseLogger, "handlers.dashboard"))
	engine := router.New(dashboardHandler, logger.Named(baseLogger, "router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Backend.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

type refresher interface {
	Refresh(ctx context.Context) error
}

// initialFetch loads every screen once so the first request has data. Failures
// only leave an error message on the affected view.
func initialFetch(ctx context.Context, log *zap.Logger, views ...refresher) {
	ctx, cancel := context.WithTimeout(ctx, initialFetchTimeout)
	defer cancel()

	var g errgroup.Group
	for _, v := range views {
		g.Go(func() error {
			if err := v.Refresh(ctx); err != nil {
				log.Warn("initial fetch failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
