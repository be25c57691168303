package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stayguard/chargeback-service/internal/adapters/gcs"
	"github.com/stayguard/chargeback-service/internal/adapters/gpubsub"
	"github.com/stayguard/chargeback-service/internal/adapters/notify"
	"github.com/stayguard/chargeback-service/internal/adapters/pms"
	"github.com/stayguard/chargeback-service/internal/adapters/pms/cloudpms"
	"github.com/stayguard/chargeback-service/internal/adapters/postgres"
	"github.com/stayguard/chargeback-service/internal/adapters/secrets"
	"github.com/stayguard/chargeback-service/internal/config"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/internal/services/conflict"
	"github.com/stayguard/chargeback-service/internal/services/evidence"
	"github.com/stayguard/chargeback-service/internal/services/fraud"
	"github.com/stayguard/chargeback-service/internal/services/matching"
	syncService "github.com/stayguard/chargeback-service/internal/services/sync"
	"github.com/stayguard/chargeback-service/internal/workers"
	"github.com/stayguard/chargeback-service/pkg/logging"
	"github.com/stayguard/chargeback-service/pkg/observability"
	"github.com/stayguard/chargeback-service/pkg/shutdown"
)

const cloudPMSAPIKeySecret = "adapters/cloudpms/api_key"

const reviewWebhookSecret = "notify/review_webhook"

func main() {
	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	zapLogger := initLogger(cfg.Logger)
	defer zapLogger.Sync()

	logger := logging.NewZapLogger(zapLogger)

	zapLogger.Info("Starting reconciliation worker",
		zap.String("version", "0.1.0"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := initDatabase(ctx, cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	zapLogger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	shutdownMgr := shutdown.NewManager(zapLogger, 30*time.Second)
	shutdownMgr.RegisterNoErr("database-pool", dbPool.Close)

	// Secrets backend for adapter credentials and webhook secrets
	secretManager, err := initSecretManager(ctx, cfg, logger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize secrets backend", zap.Error(err))
	}

	// Evidence blob store
	storageClient, err := gcs.NewClient(ctx, cfg.Storage.CredentialsJSON)
	if err != nil {
		zapLogger.Fatal("Failed to initialize storage client", zap.Error(err))
	}
	shutdownMgr.RegisterCloser("storage-client", storageClient)
	evidenceStore := gcs.NewEvidenceStore(storageClient, cfg.Storage.Bucket, logger)

	// Job transport
	pubsubClient, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID, cfg.PubSub.CredentialsJSON)
	if err != nil {
		zapLogger.Fatal("Failed to initialize pubsub client", zap.Error(err))
	}
	shutdownMgr.RegisterCloser("pubsub-client", pubsubClient)

	publisher := gpubsub.NewPublisher(pubsubClient, cfg.PubSub.JobTopic, logger)
	shutdownMgr.RegisterNoErr("job-publisher", publisher.Stop)

	// Repositories
	db := postgres.NewDBExecutor(dbPool)
	caseRepo := postgres.NewDisputeCaseRepository(db, logger)
	stayRepo := postgres.NewStayRecordRepository(db, logger)
	evidenceRepo := postgres.NewEvidenceRepository(db, logger)
	syncLogRepo := postgres.NewSyncLogRepository(db, logger)
	guestRepo := postgres.NewGuestProfileRepository(db, logger)

	// Upstream property-management system adapters
	registry := pms.NewRegistry()
	if cfg.Adapters.CloudPMSBaseURL != "" {
		apiKey, err := secretManager.GetSecret(ctx, cloudPMSAPIKeySecret)
		if err != nil {
			zapLogger.Fatal("Failed to fetch CloudPMS API key", zap.Error(err))
		}
		pmsCfg := cloudpms.DefaultConfig(cfg.Adapters.CloudPMSBaseURL, apiKey)
		pmsCfg.Timeout = cfg.Pipeline.AdapterTimeout
		pmsCfg.MaxRetries = cfg.Pipeline.AdapterRetries
		registry.Register(cloudpms.New(pmsCfg, logger))
	}
	zapLogger.Info("PMS adapters registered",
		zap.Strings("source_systems", registry.SourceSystems()),
	)

	// Notifications: signed webhook when a review endpoint is configured,
	// structured logs otherwise
	notifier := initNotifier(ctx, cfg, secretManager, logger, zapLogger)

	// Pipeline services
	matcher := matching.NewEngine(stayRepo, registry, logger, cfg.Pipeline.AmountTolerance)
	resolver := conflict.NewResolver(syncLogRepo, notifier, logger)
	analyzer := fraud.NewAnalyzer(db, caseRepo, stayRepo, guestRepo, logger, cfg.Pipeline.FraudFlagThreshold)
	orchestrator := evidence.NewOrchestrator(
		caseRepo, stayRepo, evidenceRepo, syncLogRepo,
		evidenceStore, matcher, registry, notifier, analyzer,
		logger, cfg.Storage.KeyPrefix,
	)
	inboundSvc := syncService.NewInboundService(
		db, caseRepo, stayRepo, guestRepo, syncLogRepo,
		resolver, registry, secretManager, publisher, logger,
	)
	outboundSvc := syncService.NewOutboundService(registry, syncLogRepo, logger)

	// Job handlers
	subscriber := gpubsub.NewSubscriber(pubsubClient, cfg.PubSub.JobSubscription, cfg.PubSub.MaxOutstanding, logger)
	subscriber.Handle(ports.JobTypeEvidenceCollection, workers.NewEvidenceCollectionHandler(orchestrator, logger).Handle)
	subscriber.Handle(ports.JobTypeInboundSync, workers.NewInboundSyncHandler(inboundSvc, logger).Handle)
	subscriber.Handle(ports.JobTypeOutboundPush, workers.NewOutboundPushHandler(outboundSvc, logger).Handle)

	// Periodic sweep for cases whose evidence collection job was lost
	backfill := workers.NewEvidenceBackfill(caseRepo, publisher, logger, int32(cfg.Pipeline.BackfillBatchSize))
	backfillWorker := shutdown.NewPeriodicWorker("evidence-backfill", cfg.Pipeline.BackfillInterval, zapLogger)
	backfillWorker.Start(backfill.Run)
	shutdownMgr.Register("evidence-backfill", backfillWorker.Shutdown)

	// Metrics and health endpoints; health covers every backend the
	// pipeline writes to
	healthChecker := observability.NewHealthChecker()
	healthChecker.AddCheck("database", dbPool.Ping)
	healthChecker.AddCheck("evidence_bucket", func(ctx context.Context) error {
		_, err := storageClient.Bucket(cfg.Storage.Bucket).Attrs(ctx)
		return err
	})
	healthChecker.AddCheck("job_topic", func(ctx context.Context) error {
		exists, err := pubsubClient.Topic(cfg.PubSub.JobTopic).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("topic %q not found", cfg.PubSub.JobTopic)
		}
		return nil
	})
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker)
	shutdownMgr.RegisterHTTPServer("metrics-server", metricsServer)
	zapLogger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))

	// Receive until shutdown; cancelling ctx drains outstanding handlers
	shutdownMgr.RegisterNoErr("subscriber", cancel)
	go func() {
		zapLogger.Info("Worker receiving jobs",
			zap.String("subscription", cfg.PubSub.JobSubscription),
			zap.Int("max_outstanding", cfg.PubSub.MaxOutstanding),
		)
		if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			zapLogger.Fatal("Subscriber stopped", zap.Error(err))
		}
	}()

	shutdownMgr.WaitForShutdown()
}

// initLogger builds the process logger from the logging config
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	if cfg.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	logger, _ := zapCfg.Build()
	return logger
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// initDatabase initializes the PostgreSQL connection pool
func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// initSecretManager selects the secrets backend from configuration
func initSecretManager(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.SecretManager, error) {
	switch cfg.Secrets.Backend {
	case "aws":
		return secrets.NewAWSSecretsManager(ctx, secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion), logger)
	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
		vaultCfg.Token = cfg.Secrets.VaultToken
		vaultCfg.MountPath = cfg.Secrets.VaultMount
		return secrets.NewVaultSecretManager(ctx, vaultCfg, logger)
	case "local":
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
	}
}

// initNotifier builds the review notifier. A missing webhook secret is a
// configuration error worth failing loudly on; an unset URL is the supported
// log-only mode.
func initNotifier(ctx context.Context, cfg *config.Config, secretManager ports.SecretManager, logger ports.Logger, zapLogger *zap.Logger) ports.Notifier {
	if cfg.Notifier.WebhookURL == "" {
		return notify.NewLogNotifier(logger)
	}
	secret, err := secretManager.GetSecret(ctx, reviewWebhookSecret)
	if err != nil {
		zapLogger.Fatal("Failed to fetch review webhook secret", zap.Error(err))
	}
	return notify.NewWebhookNotifier(cfg.Notifier.WebhookURL, secret, logger)
}
