package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
	"github.com/speakASAP/allegro-service/internal/infrastructure/cache"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/speakASAP/allegro-service/internal/infrastructure/persistence"
	"github.com/speakASAP/allegro-service/internal/infrastructure/scheduler"
	"github.com/speakASAP/allegro-service/internal/infrastructure/warehouse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reconcileHistorySize = 100_000

var drainTimeout time.Duration

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve product and offer stock with freshest-wins",
	Long: `For every product linked to offers, picks the most recently updated stock
level among the product and its offers, writes it everywhere locally and
pushes the changed offers to the marketplace. The command waits for the
marketplace writes to finish before exiting.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 5*time.Minute, "how long to wait for marketplace writes")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	gormLog := logger.NewGormLogger(log, logger.GormLevel(logLevel), cfg.Telemetry.DBSlowQueryThresh, false)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	offerRepo := persistence.NewGormOfferRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)

	tokenStore, closeStore, err := cache.NewTokenStore(cfg.Redis, cfg.Allegro.TokenEncryptionKey, log)
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	defer func() { _ = closeStore() }()

	httpClient := &http.Client{Timeout: cfg.Allegro.RequestTimeout}
	tokens := allegro.NewTokenManager(allegro.NewOAuthExchanger(cfg.Allegro, httpClient), tokenStore, log,
		allegro.WithSafetyMargin(cfg.Allegro.TokenSafetyMargin))
	marketplace := allegro.NewClient(cfg.Allegro, log, allegro.WithHTTPClient(httpClient))

	executor := scheduler.NewOfferExecutor(offerRepo, marketplace, tokens, nil, log)
	schedCfg := scheduler.ConfigFromSync(cfg.Sync)
	// keep every job of the run so failed writes can be counted
	schedCfg.HistorySize = reconcileHistorySize
	propagation, err := scheduler.NewPropagationScheduler(schedCfg, executor, log)
	if err != nil {
		return err
	}
	if err := propagation.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = propagation.Stop(stopCtx)
	}()

	svc := offerapp.NewStockSyncService(offerRepo, productRepo, propagation, warehouse.NewClient(cfg.Warehouse, log), nil, log)
	report, err := svc.ReconcileProducts(ctx)
	if err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := propagation.Drain(drainCtx); err != nil {
		log.Warn("Marketplace writes still pending; their offers stay PENDING",
			zap.Int("outstanding", propagation.Stats().Outstanding),
			zap.Error(err),
		)
	}

	failed := 0
	for _, job := range propagation.GetJobHistory(0) {
		if job.Status != scheduler.JobStatusSucceeded {
			failed++
		}
	}
	log.Info("Stock reconciled",
		zap.Int("products", report.Products),
		zap.Int("changed", report.Changed),
		zap.Int("failed_writes", failed),
	)
	return printJSON(cmd.OutOrStdout(), report)
}
