package storage

import (
	"fmt"
	"time"

	"github.com/quantbr/perpedge/pkg/core"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SQLStorage implements core.PositionStorage on a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// FromSQL creates a new SQL storage instance
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (core.PositionStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(&core.PositionRecord{})
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{
		db: db,
	}, nil
}

// CreatePosition creates a new position record
func (s *SQLStorage) CreatePosition(record *core.PositionRecord) error {
	result := s.db.Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to create position record: %w", result.Error)
	}

	return nil
}

// UpdatePosition updates an existing position record
func (s *SQLStorage) UpdatePosition(record *core.PositionRecord) error {
	var existing core.PositionRecord
	result := s.db.First(&existing, record.ID)
	if result.Error != nil {
		return fmt.Errorf("position record not found: %w", result.Error)
	}

	result = s.db.Save(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update position record: %w", result.Error)
	}

	return nil
}

// Positions retrieves records matching all provided filters
func (s *SQLStorage) Positions(filters ...core.PositionFilter) ([]*core.PositionRecord, error) {
	var records []*core.PositionRecord

	result := s.db.Order("updated_at asc").Find(&records)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to fetch position records: %w", result.Error)
	}

	// Filters are applied in memory; the record sets per pair stay small
	filtered := lo.Filter(records, func(record *core.PositionRecord, _ int) bool {
		for _, filter := range filters {
			if !filter(*record) {
				return false
			}
		}
		return true
	})

	return filtered, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
