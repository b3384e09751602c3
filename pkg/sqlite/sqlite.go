package sqlite

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradingview-extract/config"
	"tradingview-extract/pkg/logger"
)

// DB is a wrapper around the gorm.DB client for the local history database.
type DB struct {
	*gorm.DB
	log *logger.Logger
}

// NewDB opens (and creates when missing) the SQLite database at the
// configured path.
func NewDB(cfg config.History, log *logger.Logger) (*DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", cfg.Path, err)
	}

	return &DB{DB: db, log: log}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
