package backend

import (
	"context"
	"fmt"
	"log/slog"

	"invoicer/internal/amqp"
	applog "invoicer/internal/log"
	"invoicer/internal/repository"
	"invoicer/internal/repository/kv"
	"invoicer/internal/repository/memory"
	"invoicer/internal/repository/postgres"
	"invoicer/internal/services"
	"invoicer/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
	}
}

// CreateBackend opens the configured repository and, when AMQP is configured,
// wraps it so invoice writes are published. An unreachable broker only
// disables publishing.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.open(ctx, config)
	if err != nil {
		return nil, err
	}

	result := &Result{Repository: repo}
	if config.AMQPURL == "" {
		return result, nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		return result, nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Repository = services.NewPublishingRepository(repo, client)
	result.Publishing = true
	return result, nil
}

func (f *DefaultFactory) open(ctx context.Context, config Config) (repository.Repository, error) {
	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config), nil
	case FileBackend:
		driver, err := kv.NewFileDriver(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		f.logger.Info("Initialized file backend", "data_directory", config.DataDirectory)
		return kv.New(driver), nil
	case RedisBackend:
		driver, err := kv.NewRedisDriver(ctx, config.RedisURL, config.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
		}
		f.logger.Info("Initialized Redis backend", "key_prefix", config.RedisKeyPrefix)
		return kv.New(driver), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MySQLBackend:
		repo, err := storage.NewMySQLRepository(config.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MySQL repository: %w", err)
		}
		f.logger.Info("Initialized MySQL backend")
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.ConnectAndMigrate(ctx, config.PostgresDSN, postgres.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) repository.Repository {
	if config.DataDirectory == "" {
		f.logger.Info("Initialized memory backend")
		return memory.New()
	}
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	return memory.NewFromFiles(config.DataDirectory)
}
