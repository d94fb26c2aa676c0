package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alan/citascrit-cli/internal/agenda"
	"github.com/alan/citascrit-cli/internal/config"
	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

const (
	keyCarnet      = "kv:carnet"
	keyProfile     = "kv:profile"
	alarmLogPrefix = "alarm:"
)

// Store keeps appointments and import history in SQLite and small
// documents (carnet, profile, alarm log) in BadgerDB.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	badger *badger.DB
	logger *zap.Logger
}

// New opens the databases configured in cfg.
func New(cfg *config.Config, log *zap.Logger) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "citascrit.db")
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// A single writer keeps SQLite happy; the CLI never needs more.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil). // Disable verbose logging
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20). // 16MB value log files
		WithMemTableSize(16 << 20)      // 16MB memtable

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		sqliteDB.Close()
		if isDirectoryLocked(err) {
			return nil, apperrors.Wrap(err, apperrors.ErrStoreLocked.Code,
				fmt.Sprintf("%s is in use by another citascrit process", badgerPath))
		}
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s, err := NewWithDB(db, badgerDB, log)
	if err != nil {
		badgerDB.Close()
		sqliteDB.Close()
		return nil, err
	}
	s.sqlDB = sqliteDB
	return s, nil
}

// isDirectoryLocked reports whether badger refused to open because another
// process, usually the daemon, holds the directory lock.
func isDirectoryLocked(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

// NewWithDB wraps already opened databases and migrates the schema.
func NewWithDB(db *gorm.DB, kv *badger.DB, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&AppointmentRow{}, &Import{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Store{db: db, badger: kv, logger: log}, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var errs []error
	if err := s.badger.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.sqlDB != nil {
		if err := s.sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ==================== Appointment Methods (SQLite) ====================

// ReplaceAgenda stores the records of a newly accepted document together
// with its import entry, in one transaction. A nil imp keeps the records
// attached to the current import.
func (s *Store) ReplaceAgenda(ctx context.Context, imp *Import, records []agenda.Appointment) error {
	return s.replace(ctx, imp, records)
}

// replace overwrites the agenda. Without imp the rows keep the import ID of
// the current agenda.
func (s *Store) replace(ctx context.Context, imp *Import, records []agenda.Appointment) error {
	var importID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if imp != nil {
			if err := tx.Create(imp).Error; err != nil {
				return err
			}
			importID = imp.ID
		} else {
			var current AppointmentRow
			if err := tx.Order("position").Limit(1).Find(&current).Error; err != nil {
				return err
			}
			importID = current.ImportID
		}

		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&AppointmentRow{}).Error; err != nil {
			return err
		}

		if len(records) == 0 {
			return nil
		}
		rows := make([]AppointmentRow, len(records))
		for i, r := range records {
			rows[i] = AppointmentRow{
				ImportID:  importID,
				Position:  i,
				Date:      r.Date,
				Time:      r.Time,
				Service:   r.Service,
				Doctor:    r.Doctor,
				Room:      r.Room,
				Cancelled: r.Cancelled,
			}
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to save appointments")
	}

	s.logger.Debug("Appointments saved", zap.Int("count", len(records)), zap.String("import_id", importID))
	return nil
}

// LoadRecords returns the stored agenda in document order.
func (s *Store) LoadRecords(ctx context.Context) ([]agenda.Appointment, error) {
	var rows []AppointmentRow
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to load appointments")
	}

	records := make([]agenda.Appointment, len(rows))
	for i, r := range rows {
		records[i] = r.Appointment()
	}
	return records, nil
}

// SetCancelled flips the cancelled flag of the record at position.
func (s *Store) SetCancelled(ctx context.Context, position int, cancelled bool) error {
	res := s.db.WithContext(ctx).Model(&AppointmentRow{}).
		Where("position = ?", position).
		Update("cancelled", cancelled)
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrStore.Code, "failed to update appointment")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrAppointmentNotFound.Code, fmt.Sprintf("no appointment at position %d", position))
	}
	return nil
}

// ListImports returns the most recent imports first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]Import, error) {
	var imports []Import
	q := s.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&imports).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to list imports")
	}
	return imports, nil
}

// LastImport returns the most recent import, or nil.
func (s *Store) LastImport(ctx context.Context) (*Import, error) {
	imports, err := s.ListImports(ctx, 1)
	if err != nil || len(imports) == 0 {
		return nil, err
	}
	return &imports[0], nil
}

// ==================== KV Methods (BadgerDB) ====================

// SaveCarnet stores the document carnet. An empty carnet clears it.
func (s *Store) SaveCarnet(ctx context.Context, carnet string) error {
	if carnet == "" {
		return s.deleteKV(keyCarnet)
	}
	return s.setKV(keyCarnet, []byte(carnet))
}

// LoadCarnet returns the stored carnet, if any.
func (s *Store) LoadCarnet(ctx context.Context) (string, bool, error) {
	val, err := s.getKV(keyCarnet)
	if err != nil || val == nil {
		return "", false, err
	}
	return string(val), true, nil
}

// SaveProfile stores the patient profile as JSON.
func (s *Store) SaveProfile(ctx context.Context, p agenda.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return s.setKV(keyProfile, data)
}

// LoadProfile returns the stored profile, or nil when none was saved.
func (s *Store) LoadProfile(ctx context.Context) (*agenda.Profile, error) {
	val, err := s.getKV(keyProfile)
	if err != nil || val == nil {
		return nil, err
	}
	var p agenda.Profile
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "stored profile is corrupt")
	}
	return &p, nil
}

// LogAlarm adds a description to the alarm log. The log is a set.
func (s *Store) LogAlarm(ctx context.Context, description string) error {
	return s.setKV(alarmLogPrefix+description, []byte(time.Now().UTC().Format(time.RFC3339)))
}

// AlarmLog returns the logged alarm descriptions sorted.
func (s *Store) AlarmLog(ctx context.Context) ([]string, error) {
	var entries []string
	prefix := []byte(alarmLogPrefix)

	err := s.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			entries = append(entries, strings.TrimPrefix(string(it.Item().Key()), alarmLogPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to read alarm log")
	}
	sort.Strings(entries)
	return entries, nil
}

// ClearAlarmLog empties the alarm log.
func (s *Store) ClearAlarmLog(ctx context.Context) error {
	if err := s.badger.DropPrefix([]byte(alarmLogPrefix)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to clear alarm log")
	}
	return nil
}

func (s *Store) setKV(key string, value []byte) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to write "+key)
	}
	return nil
}

// getKV returns nil without error when key is absent.
func (s *Store) getKV(key string) ([]byte, error) {
	var val []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to read "+key)
	}
	return val, nil
}

func (s *Store) deleteKV(key string) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStore.Code, "failed to delete "+key)
	}
	return nil
}
