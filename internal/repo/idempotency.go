// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to implement safe-retry semantics for contribution creation.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (gift_id, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, giftID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("gift_id = ? AND key = ? AND expires_at > ?", giftID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// HasIdempotencyKey reports whether any non-expired record exists for key,
// regardless of gift. It backs the middleware's replay hint only; handlers
// perform the authoritative (gift_id, key) lookup once the body is bound.
func HasIdempotencyKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(&domain.Idempotency{}).
		Where("key = ? AND expires_at > ?", key, now).
		Count(&n).Error
	return n > 0, err
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, giftID, key, contributionID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:             uuid.NewString(),
		GiftID:         giftID,
		Key:            key,
		ContributionID: contributionID,
		Status:         status,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
