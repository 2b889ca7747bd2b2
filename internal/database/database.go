package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"option-screener-go/internal/models"
)

// KeyValueStore is a durable map of named JSON documents.
type KeyValueStore interface {
	// Get returns the stored value and whether the slot exists.
	Get(ctx context.Context, name string) (string, bool, error)
	Put(ctx context.Context, name, value string) error
}

// NewDatabase opens the sqlite database at dsn and migrates the slot table.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the tables used by the store.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Slot{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SlotStore keeps slots in the sqlite slots table.
type SlotStore struct {
	db *gorm.DB
}

var _ KeyValueStore = (*SlotStore)(nil)

// NewSlotStore creates a new SlotStore.
func NewSlotStore(db *gorm.DB) *SlotStore {
	return &SlotStore{db: db}
}

// Get reads one slot.
func (s *SlotStore) Get(ctx context.Context, name string) (string, bool, error) {
	var slot models.Slot
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", name, err)
	}
	return slot.Value, true, nil
}

// Put writes one slot, replacing any previous value.
func (s *SlotStore) Put(ctx context.Context, name, value string) error {
	slot := models.Slot{Name: name, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&slot).Error
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", name, err)
	}
	return nil
}
