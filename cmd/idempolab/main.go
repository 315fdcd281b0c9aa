package main

import (
	"context"
	"database/sql"
	"time"

	config "github.com/davicafu/idempolab/internal/config"
	paymentApp "github.com/davicafu/idempolab/internal/payment/application"
	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	paymentConsumer "github.com/davicafu/idempolab/internal/payment/infra/inbound/events"
	paymentHttp "github.com/davicafu/idempolab/internal/payment/infra/inbound/http"
	paymentCache "github.com/davicafu/idempolab/internal/payment/infra/outbound/cache"
	paymentPg "github.com/davicafu/idempolab/internal/payment/infra/outbound/db/postgres"
	paymentSqlite "github.com/davicafu/idempolab/internal/payment/infra/outbound/db/sqlite"
	sagaApp "github.com/davicafu/idempolab/internal/saga/application"
	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"
	sagaHttp "github.com/davicafu/idempolab/internal/saga/infra/inbound/http"
	sagaPg "github.com/davicafu/idempolab/internal/saga/infra/outbound/db/postgres"
	sagaSqlite "github.com/davicafu/idempolab/internal/saga/infra/outbound/db/sqlite"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	sharedPg "github.com/davicafu/idempolab/internal/shared/infra/db/postgres"
	sharedSqlite "github.com/davicafu/idempolab/internal/shared/infra/db/sqlite"
	infraEvents "github.com/davicafu/idempolab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/idempolab/internal/shared/infra/platform/cache"
	infraRelayer "github.com/davicafu/idempolab/internal/shared/infra/relayer"
	"github.com/davicafu/idempolab/internal/shared/infra/utils"
	"github.com/davicafu/idempolab/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	// _ "github.com/mattn/go-sqlite3" // requires gcc
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	ctx := context.Background()
	cfg := config.Load()

	logger.Init(cfg.LogLevel) // inicializa zap
	log := logger.Logger()    // obtiene logger estructurado
	defer log.Sync()          // flush buffers al salir

	// ---------------- DB ----------------
	var (
		db           *sql.DB
		err          error
		paymentRepo  paymentDomain.PaymentRepository
		durableStore paymentDomain.DurableResultStore
		dedupLedger  paymentDomain.DedupLedger
		workflowRepo sagaDomain.WorkflowRepository
		outboxRepo   sharedDomain.OutboxRepository
		elector      sharedDomain.LeaderElector
	)

	if cfg.UseSQLite {
		log.Info("💾 Usando SQLite como base de datos", zap.String("path", cfg.SQLitePath))
		db, err = sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		if err := paymentSqlite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		if err := sagaSqlite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite saga schema", zap.Error(err))
		}

		paymentRepo = paymentSqlite.NewPaymentRepoSQLite(db)
		durableStore = paymentSqlite.NewIdemRepoSQLite(db)
		dedupLedger = paymentSqlite.NewDedupLedgerSQLite(db)
		workflowRepo = sagaSqlite.NewWorkflowRepoSQLite(db)
		outboxRepo = sharedSqlite.NewOutboxRepoSQLite(db)
		elector = sharedSqlite.NewLocalElector()
	} else {
		log.Info("🐘 Usando Postgres como base de datos")
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		if err := paymentPg.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		if err := sagaPg.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres saga schema", zap.Error(err))
		}

		paymentRepo = paymentPg.NewPaymentRepoPostgres(db)
		durableStore = paymentPg.NewIdemRepoPostgres(db)
		dedupLedger = paymentPg.NewDedupLedgerPostgres(db)
		workflowRepo = sagaPg.NewWorkflowRepoPostgres(db)
		outboxRepo = sharedPg.NewOutboxRepoPostgres(db)
		elector = sharedPg.NewAdvisoryLock(db, cfg.OutboxLockID)
	}
	defer db.Close()

	if err := utils.Retry(ctx, 5, 2*time.Second, func() error {
		return db.PingContext(ctx)
	}); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}

	// ---------------- Cache y lock ----------------
	var cacheInstance sharedCache.Cache
	var locker paymentDomain.KeyLocker

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache y locks en memoria:", zap.Error(err))
		inMem := paymentCache.NewInMemoryCache(cfg.ResultTTL, 3*cfg.ResultTTL)
		cacheInstance = inMem
		locker = paymentCache.NewCacheLocker(inMem)
	} else {
		cacheInstance = paymentCache.NewRedisCache(rdb)
		locker = paymentCache.NewRedisLocker(rdb)
		log.Info("✅ Redis conectado, cache y locks distribuidos habilitados")
	}

	resultStore := paymentCache.NewIdemStore(cacheInstance, durableStore, cfg.ResultTTL, log)

	// --------------- Servicios --------------
	wait := utils.Backoff{
		Initial:    cfg.LockPollStart,
		Multiplier: 1.5,
		Max:        cfg.LockPollMax,
		MaxElapsed: cfg.LockWaitMax,
	}
	lockService := paymentApp.NewLockCacheService(
		paymentRepo, resultStore, locker,
		cfg.LockTTL, cfg.ResultTTL,
		wait, utils.RealClock(), log,
	)
	naturalService := paymentApp.NewNaturalService(paymentRepo, log)
	constraintService := paymentApp.NewConstraintService(paymentRepo, log)
	outboxService := paymentApp.NewOutboxService(paymentRepo, outboxRepo, log)

	sagaSteps := sagaApp.NewPaymentSteps(paymentRepo, log)
	coordinator := sagaApp.NewCoordinator(workflowRepo, sagaSteps, log)

	// ---------------- Events ---------------
	var eventPublisher sharedBus.EventPublisher
	consumer := paymentConsumer.NewPaymentConsumer(dedupLedger, log)

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		defer writer.Close()
		eventPublisher = infraEvents.NewKafkaPublisher(writer, log)

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  cfg.KafkaGroupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		})
		defer reader.Close()

		consumerAdapter := infraEvents.NewConsumerAdapter(reader, consumer, log)
		consumerAdapter.Start(ctx)
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		inMemoryBus := infraEvents.NewInMemoryEventBus(cfg.KafkaTopic)
		eventPublisher = inMemoryBus

		log.Info("🎧 Iniciando listener en memoria para eventos de pago")
		infraEvents.BackgroundConsumerChan(ctx, inMemoryBus.Subscribe(10), consumer, log)
	}

	// ------------ Outbox Worker ------------
	// Se podría ejecutar externamente
	outboxWorker := infraRelayer.NewOutboxWorker(
		outboxRepo, elector, eventPublisher,
		cfg.OutboxPeriod, cfg.OutboxLimit, log,
	)
	go outboxWorker.Start(ctx)

	// ---------------- HTTP ----------------
	paymentHandler := paymentHttp.NewPaymentHandler(lockService, naturalService, constraintService, outboxService)
	sagaHandler := sagaHttp.NewSagaHandler(coordinator)

	router := gin.Default()
	paymentHttp.RegisterPaymentRoutes(router, paymentHandler)
	sagaHttp.RegisterSagaRoutes(router, sagaHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server: %v", zap.Error(err))
	}
}
