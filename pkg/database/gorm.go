package database

import (
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrMissingDSN = errors.New("database: DB_CONNECTION_STRING is empty")

type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
	}
}

func getLogger(verbose bool) logger.Interface {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true, // embeddings would flood the log otherwise
			Colorful:                  verbose,
		},
	)
}

func configureConnectionPool(db *gorm.DB, pool PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return nil
}

// NewGormDBFromDSN opens a pooled Postgres connection. verbose logs every
// statement, which is what development mode wants.
func NewGormDBFromDSN(dsn string, verbose bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: getLogger(verbose),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db, DefaultPoolConfig()); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureVectorExtension creates the pgvector extension used by document_chunks.
func EnsureVectorExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
}
