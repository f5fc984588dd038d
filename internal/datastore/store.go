// Package datastore persists the daily query budget ledger in SQLite so a
// restart does not reset the day's count.
package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/scheduler"
)

// DefaultSlowQueryThreshold marks queries worth a warning
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// Store implements scheduler.BudgetStore on SQLite
type Store struct {
	db   *gorm.DB
	path string
	log  logger.Logger
}

// GetLogger returns the datastore module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// Open opens or creates the database at path and migrates the schema
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.Newf("database path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_directory").
				Context("path", dir).
				Build()
		}
	}

	log := GetLogger()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(log, DefaultSlowQueryThreshold, gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("path", path).
			Build()
	}

	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		log.Warn("failed to enable WAL journal mode", logger.Error(err))
	}
	if err := db.AutoMigrate(&BudgetLedger{}); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}

	log.Info("budget ledger database opened", logger.String("path", path))
	return &Store{db: db, path: path, log: log}, nil
}

// Load implements scheduler.BudgetStore. A day without a row yields a zero
// ledger.
func (s *Store) Load(ctx context.Context, day time.Time) (scheduler.Ledger, error) {
	var row BudgetLedger
	err := s.db.WithContext(ctx).Where("day = ?", dayKey(day)).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return scheduler.Ledger{Day: day}, nil
	case err != nil:
		return scheduler.Ledger{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "load_ledger").
			Context("day", dayKey(day)).
			Build()
	}
	return scheduler.Ledger{Day: day, Issued: row.Issued, Attempts: row.Attempts}, nil
}

// Save implements scheduler.BudgetStore with an upsert on the day
func (s *Store) Save(ctx context.Context, ledger scheduler.Ledger) error {
	row := BudgetLedger{
		Day:      dayKey(ledger.Day),
		Issued:   ledger.Issued,
		Attempts: ledger.Attempts,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"issued", "attempts", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_ledger").
			Context("day", row.Day).
			Build()
	}
	return nil
}

// Prune deletes ledgers older than keep days before today and returns the
// number of deleted rows
func (s *Store) Prune(ctx context.Context, today time.Time, keep int) (int64, error) {
	cutoff := dayKey(today.AddDate(0, 0, -keep))
	res := s.db.WithContext(ctx).Where("day < ?", cutoff).Delete(&BudgetLedger{})
	if res.Error != nil {
		return 0, errors.New(res.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "prune_ledgers").
			Build()
	}
	if res.RowsAffected > 0 {
		s.log.Debug("pruned budget ledgers", logger.Int64("rows", res.RowsAffected), logger.String("before", cutoff))
	}
	return res.RowsAffected, nil
}

// History returns up to limit ledgers, newest first
func (s *Store) History(ctx context.Context, limit int) ([]BudgetLedger, error) {
	var rows []BudgetLedger
	err := s.db.WithContext(ctx).Order("day DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "ledger_history").
			Build()
	}
	return rows, nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dayKey uses the calendar date of day in its own location
func dayKey(day time.Time) string {
	return day.Format(time.DateOnly)
}
