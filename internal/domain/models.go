// Package domain defines the persistence models for gifts, contributions,
// and event configuration. These types are mapped with GORM and form the
// core data layer of the wedding-registry backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Gift statuses.
const (
	GiftStatusAvailable = "available"
	GiftStatusFulfilled = "fulfilled"
	GiftStatusHidden    = "hidden"
)

// Contribution payment statuses. Approved, rejected, cancelled, and refunded
// are terminal for reconciliation purposes.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Payment methods accepted for a contribution.
const (
	PaymentMethodPix  = "pix"
	PaymentMethodCard = "credit_card"
)

// Gift represents a registry item guests can fund, either whole or split
// into equal quotas. Funding figures (collected, remaining, progress) are
// always derived from approved contributions, never stored on the row.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: display name of the gift.
//   - Description: optional longer text shown to guests.
//   - TargetAmount: funding target in decimal currency (> 0).
//   - QuotaTotal: number of equal shares the target is split into (>= 1).
//     When > 1, the target expressed in cents must divide evenly.
//   - Status: available | fulfilled | hidden.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (rows referenced by contributions
//     are never hard-deleted).
type Gift struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Title        string         `json:"title"         gorm:"type:varchar(255);not null"`
	Description  string         `json:"description"   gorm:"type:text"`
	TargetAmount float64        `json:"target_amount" gorm:"not null"`
	QuotaTotal   int            `json:"quota_total"   gorm:"not null;default:1"`
	Status       string         `json:"status"        gorm:"type:varchar(16);not null;default:'available';check:status IN ('available','fulfilled','hidden');index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Gift.
func (Gift) TableName() string { return "gifts" }

// Contribution represents a single pledge/payment attempt against a gift.
// It is created in "pending" status before the gateway confirms anything and
// is advanced by webhook deliveries or status polling. Only approved
// contributions count toward a gift's collected amount.
//
// Fields:
//   - ID: UUID primary key; also sent to the gateway as external_reference.
//   - GiftID: foreign key to the funded gift (indexed).
//   - Name / Email: contributor identity as shown on confirmations.
//   - TaxID: contributor CPF, encrypted at rest (see internal/crypto).
//   - Amount: pledged decimal amount (> 0).
//   - PaymentMethod: pix | credit_card.
//   - Installments: card installment count (1-12); 1 for PIX.
//   - Anonymous: hides the contributor name on public listings.
//   - Status: pending | approved | rejected | cancelled | refunded.
//   - GatewayPaymentID: the gateway's payment id, set once creation succeeds;
//     the join key used by webhook reconciliation (indexed).
//   - GatewayResponse: opaque raw gateway payload kept for audit.
type Contribution struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	GiftID           string         `json:"gift_id"           gorm:"type:char(36);not null;index:idx_gift_contribs"`
	Name             string         `json:"name"              gorm:"type:varchar(255);not null"`
	Email            string         `json:"email"             gorm:"type:varchar(255);not null"`
	TaxID            string         `json:"-"                 gorm:"type:text"`
	Amount           float64        `json:"amount"            gorm:"not null"`
	PaymentMethod    string         `json:"payment_method"    gorm:"type:varchar(16);not null;default:'pix';check:payment_method IN ('pix','credit_card')"`
	Installments     int            `json:"installments"      gorm:"not null;default:1"`
	Anonymous        bool           `json:"anonymous"         gorm:"not null;default:false"`
	Status           string         `json:"status"            gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','approved','rejected','cancelled','refunded');index"`
	GatewayPaymentID *string        `json:"gateway_payment_id,omitempty" gorm:"type:varchar(64);index:idx_gateway_payment"`
	GatewayResponse  string         `json:"-"                 gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Gift is the funded registry item. Contributions keep the row alive:
	// gifts referenced here are only ever soft-deleted.
	Gift Gift `json:"-" gorm:"foreignKey:GiftID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Contribution.
func (Contribution) TableName() string { return "contributions" }

// IsTerminal reports whether the contribution reached a state that webhook
// reconciliation never advances past without an explicit gateway notification
// (approved is terminal for the completion trigger; refunded/cancelled may
// still arrive from the gateway and are applied as-is).
func (c *Contribution) IsTerminal() bool {
	return c.Status == PaymentStatusApproved
}

// EventConfig holds the event-level gateway credentials. AccessToken and
// WebhookSecret are stored encrypted (internal/crypto); legacy rows written
// before encryption was introduced hold plaintext and are tolerated on read.
type EventConfig struct {
	ID            string         `json:"id" gorm:"type:char(36);primaryKey"`
	AccessToken   string         `json:"-"  gorm:"type:text"`
	WebhookSecret string         `json:"-"  gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"  gorm:"index"`
}

// TableName returns the database table name for EventConfig.
func (EventConfig) TableName() string { return "event_configs" }

// WebhookEvent is an audit record of an inbound gateway notification,
// including whether its signature verified and when (if ever) it was
// applied. Kept append-only; reconciliation itself is idempotent at the
// contribution level and does not depend on this table.
type WebhookEvent struct {
	ID             string     `gorm:"type:char(36);primaryKey"`
	PaymentID      string     `gorm:"type:varchar(64);not null;index"`
	RequestID      string     `gorm:"type:varchar(128);not null;default:''"`
	Topic          string     `gorm:"type:varchar(64);not null;default:''"`
	Payload        string     `gorm:"type:text;not null"`
	SignatureValid bool       `gorm:"not null;default:false;index"`
	ProcessedAt    *time.Time `gorm:"index"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index"`
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }
