// Package archive keeps finalized report sessions in PostgreSQL
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/palletdamage/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists archived sessions with gorm
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the archive table
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.ArchivedSession{})
}

// ArchiveSession stores a finalized session. Archiving the same session
// again replaces the stored record.
func (s *Store) ArchiveSession(ctx context.Context, rec models.ArchivedSession) error {
	if rec.SessionID == "" {
		return errors.New("archive: session id is required")
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"report_type", "magazyner", "place", "pallet_count", "snapshot", "archived_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get returns one archived session
func (s *Store) Get(ctx context.Context, sessionID string) (*models.ArchivedSession, error) {
	var rec models.ArchivedSession
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the most recently archived sessions first
func (s *Store) List(ctx context.Context, limit int) ([]models.ArchivedSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []models.ArchivedSession
	err := s.db.WithContext(ctx).Order("archived_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// Prune deletes sessions archived before the cutoff
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("archived_at < ?", before).Delete(&models.ArchivedSession{})
	return res.RowsAffected, res.Error
}
