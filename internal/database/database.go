package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// DB оборачивает пул соединений PostgreSQL.
type DB struct {
	*sql.DB
}

// Connect открывает пул соединений и проверяет доступность базы.
func Connect(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithField("host", cfg.Host).Info("Successfully connected to PostgreSQL")
	return &DB{DB: sqlDB}, nil
}

// Close закрывает пул соединений
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Health проверяет соединение с базой
func (db *DB) Health() error {
	if db == nil || db.DB == nil {
		return errors.New("database is not initialized")
	}
	return db.Ping()
}

// EnsureSchema применяет идемпотентную схему (CREATE ... IF NOT EXISTS).
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
