// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only audit log of inbound
// webhook deliveries.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

// RecordWebhookEvent appends an audit row for an inbound notification,
// before any reconciliation happens. signatureValid reflects the HMAC
// check; rejected deliveries are recorded too, for security review.
func RecordWebhookEvent(ctx context.Context, db *gorm.DB, paymentID, requestID, topic, payload string, signatureValid bool) (*domain.WebhookEvent, error) {
	ev := &domain.WebhookEvent{
		ID:             uuid.NewString(),
		PaymentID:      paymentID,
		RequestID:      requestID,
		Topic:          topic,
		Payload:        payload,
		SignatureValid: signatureValid,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// MarkWebhookProcessed stamps the audit row once reconciliation applied
// (or no-op'ed) the delivery. Best effort; reconciliation outcome does not
// depend on it.
func MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Update("processed_at", &now).Error
}
