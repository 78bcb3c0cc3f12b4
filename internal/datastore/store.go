// Package datastore keeps a local history of prediction results in SQLite.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// List page sizes.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

const slowQueryThreshold = 200 * time.Millisecond

// ErrNotFound is returned when no detection has the requested id.
var ErrNotFound = errors.NewStd("detection not found")

// Interface is the history store.
type Interface interface {
	Save(ctx context.Context, d *Detection) error
	Get(ctx context.Context, id string) (*Detection, error)
	List(ctx context.Context, opts ListOptions) ([]Detection, error)
	Delete(ctx context.Context, id string) error
	CountBySpecies(ctx context.Context) ([]SpeciesCount, error)
	Close() error
}

// SQLiteStore is the SQLite backed Interface.
type SQLiteStore struct {
	db   *gorm.DB
	path string
	log  logger.Logger
}

var _ Interface = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the history database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	log := logger.Global().Module("datastore")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, dbError("open", err).FileContext(dir, 0).Build()
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, dbError("open", err).FileContext(path, 0).Build()
	}

	if err := db.AutoMigrate(&Detection{}); err != nil {
		closeDB(db)
		return nil, dbError("migrate", err).Build()
	}

	log.Debug("history database ready", logger.String("path", path))
	return &SQLiteStore{db: db, path: path, log: log}, nil
}

// NewFromSettings opens the history database when history is enabled.
// It returns nil without error when history is disabled.
func NewFromSettings(settings *conf.Settings) (*SQLiteStore, error) {
	if !settings.History.Enabled {
		return nil, nil
	}
	return OpenSQLite(settings.History.Path)
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Save inserts d. An empty UUID is rejected.
func (s *SQLiteStore) Save(ctx context.Context, d *Detection) error {
	if strings.TrimSpace(d.UUID) == "" {
		return errors.Newf("detection id is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return dbError("save", err).Context("detection_id", d.UUID).Build()
	}
	return nil
}

// Get returns the detection with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Detection, error) {
	var d Detection
	err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, dbError("get", err).Context("detection_id", id).Build()
	}
	return &d, nil
}

// List returns detections, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Detection, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	query := s.db.WithContext(ctx).Model(&Detection{})
	if opts.Species != "" {
		query = query.Where("scientific_name = ?", opts.Species)
	}
	if !opts.Since.IsZero() {
		query = query.Where("recorded_at >= ?", opts.Since)
	}

	detections := make([]Detection, 0)
	err := query.Order("recorded_at DESC").Order("id DESC").
		Limit(limit).Offset(max(opts.Offset, 0)).
		Find(&detections).Error
	if err != nil {
		return nil, dbError("list", err).Build()
	}
	return detections, nil
}

// Delete removes the detection with the given id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("uuid = ?", id).Delete(&Detection{})
	if result.Error != nil {
		return dbError("delete", result.Error).Context("detection_id", id).Build()
	}
	if result.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// CountBySpecies returns how often each species was detected, most frequent first.
func (s *SQLiteStore) CountBySpecies(ctx context.Context) ([]SpeciesCount, error) {
	type row struct {
		ScientificName string
		Count          int64
		LastSeen       string
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&Detection{}).
		Select("scientific_name, COUNT(*) AS count, MAX(recorded_at) AS last_seen").
		Group("scientific_name").
		Order("count DESC").Order("scientific_name").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError("count_by_species", err).Build()
	}

	counts := make([]SpeciesCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, SpeciesCount{
			ScientificName: r.ScientificName,
			Count:          r.Count,
			LastSeen:       parseSQLiteTime(r.LastSeen),
		})
	}
	return counts, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError("close", err).Build()
	}
	return sqlDB.Close()
}

// parseSQLiteTime reads an aggregate timestamp, which the driver returns as text.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func dbError(op string, err error) *errors.ErrorBuilder {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op)
}

func notFound(id string) error {
	return errors.New(ErrNotFound).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("detection_id", id).
		Build()
}
