package backend

import (
	"context"

	"invoicer/internal/repository"
)

// Result is the repository selected by Config.
type Result struct {
	Repository repository.Repository
	// Publishing is true when invoice writes are announced over AMQP.
	Publishing bool
}

// Close releases the repository and anything wrapped around it.
func (r *Result) Close() error {
	if r == nil || r.Repository == nil {
		return nil
	}
	return r.Repository.Close()
}

// Factory creates repositories based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory and file backends
	DataDirectory string

	// SQL backends
	SQLiteDBPath string
	MySQLDSN     string
	PostgresDSN  string

	// Redis backend
	RedisURL       string
	RedisKeyPrefix string

	// Optional publishing of invoice changes
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	FileBackend     BackendType = "file"
	RedisBackend    BackendType = "redis"
	SQLiteBackend   BackendType = "sqlite"
	MySQLBackend    BackendType = "mysql"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, RedisBackend, SQLiteBackend, MySQLBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
