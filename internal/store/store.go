package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"audio-forensics-api/internal/model"
)

// Store owns the case records and the audio files that belong to them. A
// case's audio file is subordinate to its record: it is written on Create
// and removed on Delete, never managed on its own.
type Store struct {
	db      *gorm.DB
	dataDir string
	locks   *caseLocks
}

// Open connects to the database selected by databaseURL, migrates the
// schema and returns a Store writing case audio under dataDir. A URL
// containing "sqlite" opens the embedded database; anything else is
// treated as a postgres DSN.
func Open(databaseURL, dataDir string) (*Store, error) {
	var dialector gorm.Dialector
	if strings.Contains(databaseURL, "sqlite") {
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.AutoMigrate(&model.Case{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, dataDir: dataDir, locks: newCaseLocks()}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AudioPath returns the on-disk location for a case's audio file, derived
// from the case identifier and the original file extension.
func (s *Store) AudioPath(caseID, originalFilename string) string {
	return filepath.Join(s.dataDir, caseID+filepath.Ext(originalFilename))
}

// Create allocates a fresh case, persists the audio bytes under the data
// directory and inserts a record with every dimension pending.
func (s *Store) Create(name, originalFilename string, fileBytes []byte, notes string) (*model.Case, error) {
	id := uuid.NewString()

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: s.dataDir, Err: err}
	}

	path := s.AudioPath(id, originalFilename)
	if err := os.WriteFile(path, fileBytes, 0o644); err != nil {
		return nil, &StorageError{Op: "write", Path: path, Err: err}
	}

	c := model.Case{
		ID:                  id,
		CaseName:            name,
		OriginalFilename:    originalFilename,
		FilePath:            path,
		Notes:               notes,
		TranscriptionStatus: model.StatusPending,
		SentimentStatus:     model.StatusPending,
		GenderStatus:        model.StatusPending,
		MetadataStatus:      model.StatusPending,
		TemporalStatus:      model.StatusPending,
		DiarizationStatus:   model.StatusPending,
	}

	if err := s.db.Create(&c).Error; err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("insert case: %w", err)
	}

	return &c, nil
}

// Get fetches a case by identifier. Absence is not an error: the result is
// nil and callers must check.
func (s *Store) Get(id string) (*model.Case, error) {
	var c model.Case
	err := s.db.First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

// List returns all cases ordered by creation time, newest first.
func (s *Store) List() ([]model.Case, error) {
	var cases []model.Case
	if err := s.db.Order("created_at desc").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// Delete removes a case's audio file and record. A missing file is not an
// error. The returned bool reports whether a record existed.
func (s *Store) Delete(id string) (bool, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	c, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}

	if err := os.Remove(c.FilePath); err != nil && !os.IsNotExist(err) {
		return false, &StorageError{Op: "remove", Path: c.FilePath, Err: err}
	}

	if err := s.db.Delete(&model.Case{}, "id = ?", id).Error; err != nil {
		return false, fmt.Errorf("delete case: %w", err)
	}
	return true, nil
}

// updateCase applies mutate to the case under the per-case lock inside a
// transaction. An absent case is a no-op and yields a nil result.
func (s *Store) updateCase(id string, mutate func(*model.Case)) (*model.Case, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	var result *model.Case
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var c model.Case
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		mutate(&c)
		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		result = &c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update case: %w", err)
	}
	return result, nil
}
