package config

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB creates a database connection using configuration settings. The
// embedded SQLite engine is used when QUOTES_DB_PATH is set, matching how the
// bot ran before the move to PostgreSQL.
func NewDB() (*gorm.DB, error) {
	return Open(Get().DatabaseDescriptor())
}

// DatabaseDescriptor returns the connection descriptor of this service's own
// database: the SQLite file path when one is configured, a PostgreSQL DSN
// otherwise.
func (c *Config) DatabaseDescriptor() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Open connects to the database identified by a connection descriptor: a
// PostgreSQL URL or key=value DSN selects the networked engine, anything else
// is treated as a SQLite file path. Callers get the same *gorm.DB either way.
func Open(descriptor string) (*gorm.DB, error) {
	cfg := Get()

	// Translated errors let callers match gorm.ErrDuplicatedKey instead of
	// raw driver errors, the same on both engines.
	gormConfig := &gorm.Config{TranslateError: true}
	if cfg.Server.Env == "development" {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Error)
	}

	dialector := dialectorFor(descriptor)

	// Add retry mechanism
	var db *gorm.DB
	var err error
	retries := 5
	delay := 2 * time.Second

	for i := 0; i < retries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			break
		}
		time.Sleep(delay)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d retries: %w", retries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

// IsPostgres reports whether a connection descriptor selects the networked
// PostgreSQL engine rather than an embedded SQLite file.
func IsPostgres(descriptor string) bool {
	return strings.HasPrefix(descriptor, "postgres://") ||
		strings.HasPrefix(descriptor, "postgresql://") ||
		strings.Contains(descriptor, "host=")
}

func dialectorFor(descriptor string) gorm.Dialector {
	if IsPostgres(descriptor) {
		return postgres.Open(descriptor)
	}
	return sqlite.Open(strings.TrimPrefix(descriptor, "sqlite://"))
}

// TestConnection checks if the database connection is working
func TestConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
