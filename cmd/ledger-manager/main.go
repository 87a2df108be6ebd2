// cmd/ledger-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"franchise-ledger/internal/common/aws"
	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/config"
	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/budget"
	"franchise-ledger/internal/ledger/captable"
	"franchise-ledger/internal/ledger/payout"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/notify"

	pe "franchise-ledger/internal/workers/ledger/post-expense"
	cp "franchise-ledger/internal/workers/payout/create-payout"
	sp "franchise-ledger/internal/workers/payout/settle-payout"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ledger manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("ledger-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Ledger services ---
	walletSvc := wallet.NewService(pg.DB, wallet.DevKeyProvider{}, log)
	captableSvc := captable.NewService(pg.DB, redis,
		time.Duration(cfg.Ledger.OwnershipCacheTTL)*time.Second, log)
	budgetSvc := budget.NewService(pg.DB, walletSvc, log)

	settler := payout.NewHTTPSettler(cfg.Settlement, log)
	indexer := payout.NewAuditIndexer(esClient, cfg.Database.Elasticsearch.AuditIndex)

	var notifier payout.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifier = notify.NewStatementService(
			sesClient, snsClient, notify.NewSQLContactResolver(pg.DB),
			cfg.Notifications.Email.FromEmail,
			cfg.Notifications.Email.Enabled, cfg.Notifications.SMS.Enabled,
			log,
		)
	}

	percents := payout.SplitPercents{
		RoyaltyBps:       cfg.Ledger.RoyaltyBps,
		PlatformFeeBps:   cfg.Ledger.PlatformFeeBps,
		ManagerBonusBps:  cfg.Ledger.ManagerBonusBps,
		EmployeeBonusBps: cfg.Ledger.EmployeeBonusBps,
	}
	engine := payout.NewEngine(pg.DB, captableSvc, walletSvc, settler, indexer, notifier, percents, log)

	zapLog.Info("Ledger services initialized")

	// --- Wallet reconciliation job ---
	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	reconciler := wallet.NewReconciler(pg.DB,
		time.Duration(cfg.Ledger.ReconcileInterval)*time.Second,
		cfg.Ledger.ReconcileBatchLimit, log)
	go reconciler.Run(reconcileCtx)

	// --- Register Workers ---
	var workers []*camunda.CamundaWorker

	if wcfg := cfg.Workers[cp.TaskType]; wcfg.Enabled {
		handler := cp.NewHandler(
			&cp.Config{
				Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
			},
			engine, log,
		)
		workers = append(workers,
			camunda.NewWorker(zeebeClient, cp.TaskType, wcfg.MaxJobsActive, handler, zapLog))
	}

	if wcfg := cfg.Workers[sp.TaskType]; wcfg.Enabled {
		handler := sp.NewHandler(
			&sp.Config{
				Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
			},
			engine, log,
		)
		workers = append(workers,
			camunda.NewWorker(zeebeClient, sp.TaskType, wcfg.MaxJobsActive, handler, zapLog))
	}

	if wcfg := cfg.Workers[pe.TaskType]; wcfg.Enabled {
		handler := pe.NewHandler(
			&pe.Config{
				Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
			},
			budgetSvc, log,
		)
		workers = append(workers,
			camunda.NewWorker(zeebeClient, pe.TaskType, wcfg.MaxJobsActive, handler, zapLog))
	}

	zapLog.Info("All ledger workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on " + cfg.Metrics.Address)
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stopReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Ledger manager stopped gracefully")
}
