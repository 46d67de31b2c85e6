// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Gift
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Funding figures are never read or
// written here; they are derived by internal/ledger from contribution rows.
//
// Error semantics:
//   - When a gift is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateGift inserts a new Gift row. The gift ID is a randomly generated
// UUID (string), status defaults to available, and CreatedAt is set to UTC.
func CreateGift(ctx context.Context, db *gorm.DB, title, description string, targetAmount float64, quotaTotal int) (*domain.Gift, error) {
	if quotaTotal < 1 {
		quotaTotal = 1
	}
	g := &domain.Gift{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		TargetAmount: targetAmount,
		QuotaTotal:   quotaTotal,
		Status:       domain.GiftStatusAvailable,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

// GetGift fetches a single gift by its ID, or ErrNotFound if missing.
func GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error) {
	var g domain.Gift
	if err := db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGifts returns gifts ordered by creation time ascending (registry
// display order). Hidden gifts are excluded unless includeHidden is set
// (the operator back-office passes true).
func ListGifts(ctx context.Context, db *gorm.DB, includeHidden bool) ([]domain.Gift, error) {
	q := db.WithContext(ctx).Order("created_at asc")
	if !includeHidden {
		q = q.Where("status <> ?", domain.GiftStatusHidden)
	}
	var out []domain.Gift
	err := q.Find(&out).Error
	return out, err
}

// SetGiftStatus updates the status of a gift. If no rows are affected
// (gift missing), it returns ErrNotFound. Writes where the row already has
// the requested status still count as affected under GORM, so repeated
// fulfilled flips are harmless.
func SetGiftStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Gift{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GiftsStats returns aggregate metadata for the registry: the total number
// of visible gifts and the maximum UpdatedAt timestamp among them. Used for
// ETag generation on the public gift listing. When there are no rows, the
// returned count is 0 and maxUpdatedAt is nil.
func GiftsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Gift{}).Where("status <> ?", domain.GiftStatusHidden)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
