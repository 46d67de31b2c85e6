// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// EventConfig model holding encrypted gateway credentials.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

// GetEventConfig returns the event configuration record, or ErrNotFound
// when none has been created yet (a fresh install without credentials).
func GetEventConfig(ctx context.Context, db *gorm.DB) (*domain.EventConfig, error) {
	var cfg domain.EventConfig
	if err := db.WithContext(ctx).Order("created_at asc").First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpsertEventConfig stores the (already encrypted) gateway credentials,
// creating the record on first write and updating it afterwards.
func UpsertEventConfig(ctx context.Context, db *gorm.DB, accessToken, webhookSecret string) (*domain.EventConfig, error) {
	existing, err := GetEventConfig(ctx, db)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		cfg := &domain.EventConfig{
			ID:            uuid.NewString(),
			AccessToken:   accessToken,
			WebhookSecret: webhookSecret,
			CreatedAt:     time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(cfg).Error; err != nil {
			return nil, err
		}
		return cfg, nil
	}

	existing.AccessToken = accessToken
	existing.WebhookSecret = webhookSecret
	existing.UpdatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}
