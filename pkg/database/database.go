package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crowdqueue/crowdqueue/pkg/models"
)

// DB wraps gorm with the typed queries the services need. All mutating
// service operations run through Tx so each RPC is one atomic unit.
type DB struct {
	*gorm.DB
}

// NewMySQL opens the production MySQL store and migrates the schema.
func NewMySQL(dsn string) (*DB, error) {
	db, err := New(mysql.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// New opens a store over any gorm dialector. Tests use this with an
// in-memory sqlite database.
func New(dialector gorm.Dialector) (*DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Room{},
		&models.Song{},
		&models.Vote{},
		&models.Presence{},
		&models.Reaction{},
	)
}

// Tx runs fn inside one database transaction. fn receives a DB bound to the
// transaction so the typed queries below stay usable.
func (db *DB) Tx(fn func(tx *DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return fn(&DB{DB: tx})
	})
}
