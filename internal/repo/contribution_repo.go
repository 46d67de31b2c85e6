// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Contribution model, including the gateway-reference lookup used by
// webhook reconciliation.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

// NewContribution carries the caller-validated inputs for CreateContribution.
// TaxID must already be encrypted by the service layer.
type NewContribution struct {
	GiftID        string
	Name          string
	Email         string
	TaxID         string
	Amount        float64
	PaymentMethod string
	Installments  int
	Anonymous     bool
}

// CreateContribution inserts a contribution in pending status, before any
// gateway call has been made. The generated UUID doubles as the gateway's
// external_reference.
func CreateContribution(ctx context.Context, db *gorm.DB, in NewContribution) (*domain.Contribution, error) {
	if in.Installments < 1 {
		in.Installments = 1
	}
	c := &domain.Contribution{
		ID:            uuid.NewString(),
		GiftID:        in.GiftID,
		Name:          in.Name,
		Email:         in.Email,
		TaxID:         in.TaxID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Installments:  in.Installments,
		Anonymous:     in.Anonymous,
		Status:        domain.PaymentStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetContribution fetches a contribution by local id, or ErrNotFound.
func GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	var c domain.Contribution
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContributionByGatewayID resolves a contribution from the gateway's
// payment id (the join key stored by SetGatewayPayment). Returns ErrNotFound
// when no local record references the payment, which webhook reconciliation
// treats as a legitimate no-op.
func GetContributionByGatewayID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*domain.Contribution, error) {
	var c domain.Contribution
	if err := db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListApprovedContributions returns every approved contribution for a gift.
// This is the input to ledger.ComputeFunding; no other status ever counts
// toward the collected amount.
func ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error) {
	var out []domain.Contribution
	err := db.WithContext(ctx).
		Where("gift_id = ? AND status = ?", giftID, domain.PaymentStatusApproved).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListContributionsByGift returns all contributions for a gift regardless
// of status, most recent first. Used by the operator back-office.
func ListContributionsByGift(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error) {
	var out []domain.Contribution
	err := db.WithContext(ctx).
		Where("gift_id = ?", giftID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// SetGatewayPayment records the gateway's payment id and raw response on a
// contribution after a successful create call. Returns ErrNotFound when the
// contribution row is missing.
func SetGatewayPayment(ctx context.Context, db *gorm.DB, id, gatewayPaymentID, rawResponse string) error {
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway_payment_id": gatewayPaymentID,
			"gateway_response":   rawResponse,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateContributionStatus persists a reconciled status together with the
// raw gateway payload that justified it (audit trail). Returns ErrNotFound
// when the contribution row is missing.
func UpdateContributionStatus(ctx context.Context, db *gorm.DB, id, status, rawResponse string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if rawResponse != "" {
		updates["gateway_response"] = rawResponse
	}
	res := db.WithContext(ctx).
		Model(&domain.Contribution{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
