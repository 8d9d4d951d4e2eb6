package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gopherai-knowledge/internal/ai"
	"gopherai-knowledge/internal/config"
	"gopherai-knowledge/internal/model"
	"gopherai-knowledge/internal/platform/logger"
	mysqlClient "gopherai-knowledge/internal/platform/mysql"
	rabbitmqClient "gopherai-knowledge/internal/platform/rabbitmq"
	redisClient "gopherai-knowledge/internal/platform/redis"
	"gopherai-knowledge/internal/repository"
	"gopherai-knowledge/internal/vectorstore"
	"gopherai-knowledge/internal/vectorstore/memory"
	"gopherai-knowledge/internal/vectorstore/pinecone"
	"gopherai-knowledge/internal/worker"
)

type App struct {
	Config      *config.Config
	Log         *logger.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	AI          *ai.Client
	Store       vectorstore.Store
	AuditWorker *worker.IngestAuditWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.IngestRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, 60*time.Second)

	var store vectorstore.Store
	if cfg.Pinecone.APIKey != "" {
		store = pinecone.New(pinecone.Config{
			APIKey:       cfg.Pinecone.APIKey,
			ControlURL:   cfg.Pinecone.ControlURL,
			Cloud:        cfg.Pinecone.Cloud,
			Region:       cfg.Pinecone.Region,
			ReadyTimeout: time.Duration(cfg.Pinecone.ReadyTimeoutSec) * time.Second,
			PollInterval: time.Duration(cfg.Pinecone.PollIntervalMSec) * time.Millisecond,
		})
	} else {
		// No Pinecone credentials: keep the service usable for local
		// development against a process-local index.
		log.Warn("pinecone api key empty, using in-memory vector store")
		store = memory.NewStore()
	}

	recordRepo := repository.NewIngestRecordRepository(mysqlDB)
	auditWorker := worker.NewIngestAuditWorker(mqConn, recordRepo, cfg.Ingest.AuditQueue, log)
	if err := auditWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest audit worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		Log:         log,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		AI:          aiClient,
		Store:       store,
		AuditWorker: auditWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return closeErr
}
