package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/KING-DAVIDX/cdn-example/models"
)

var (
	// ErrDuplicateID is returned when an insert collides with an existing file_id.
	// The caller recovers by generating a fresh identifier; the row is never overwritten.
	ErrDuplicateID = errors.New("file id already exists")
	// ErrRegistryUnavailable wraps any other durable-store failure.
	ErrRegistryUnavailable = errors.New("file registry unavailable")
)

// Registry is the durable mapping from public file id to backend handle.
// Append-only: no update or delete is exposed.
type Registry interface {
	// Insert writes the record atomically. Returns ErrDuplicateID when the
	// file_id is already taken.
	Insert(ctx context.Context, rec *models.FileRecord) error
	// FindByID returns the record for a public id, or (nil, nil) when absent.
	FindByID(ctx context.Context, fileID string) (*models.FileRecord, error)
}

// GormRegistry implements Registry on a MySQL table with a unique index on
// file_id. Uniqueness is enforced by the database at insert time, not by a
// read-then-write check, so concurrent inserts of the same id cannot race.
type GormRegistry struct {
	db *gorm.DB
}

// NewGormRegistry wraps an initialized gorm DB.
func NewGormRegistry(db *gorm.DB) *GormRegistry {
	return &GormRegistry{db: db}
}

func (r *GormRegistry) Insert(ctx context.Context, rec *models.FileRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.FileID)
		}
		return fmt.Errorf("%w: insert: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

func (r *GormRegistry) FindByID(ctx context.Context, fileID string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", ErrRegistryUnavailable, err)
	}
	return &rec, nil
}

// isDuplicateKey recognizes unique-constraint violations. gorm translates
// them when TranslateError is on; the MySQL error-1062 text check covers
// sessions opened without translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") || strings.Contains(msg, "Duplicate entry")
}
