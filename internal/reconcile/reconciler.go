// Package reconcile – Reconciler
//
// This file implements the webhook/polling reconciliation protocol: resolve
// the gateway's payment id to a local contribution, guard against
// re-processing terminal records, prefer the gateway's authoritative state
// over the webhook payload, persist the mapped transition with its raw
// payload, and fire funding-completion side effects exactly once.
package reconcile

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/gateway"
	"github.com/noivosapp/go-wedding-backend/internal/ledger"
)

// Outcome classifies what a notification did, mostly for logging and the
// webhook handler's response choice. Every outcome except a processing
// error is acknowledged 2xx to the gateway.
type Outcome string

const (
	// OutcomeApplied means a status transition was persisted.
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored means the payment id resolves to no local record
	// (legitimately possible for payments not created by this system).
	OutcomeIgnored Outcome = "ignored"
	// OutcomeNoop means the contribution was already terminal, or the
	// status did not change; re-delivery must not re-trigger side effects.
	OutcomeNoop Outcome = "noop"
)

// Store is the persistence contract required by the Reconciler. Implementations
// proxy the repo free functions; the reconciler never touches a concrete
// storage client directly.
type Store interface {
	// GetContributionByGatewayID resolves the gateway payment id join key.
	GetContributionByGatewayID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*domain.Contribution, error)

	// GetContribution fetches a contribution by local id.
	GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error)

	// UpdateContributionStatus persists a reconciled status and raw payload.
	UpdateContributionStatus(ctx context.Context, db *gorm.DB, id, status, rawResponse string) error

	// GetGift fetches the funded gift.
	GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error)

	// ListApprovedContributions feeds the funding recomputation.
	ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error)

	// SetGiftStatus flips a gift to fulfilled when the target is reached.
	SetGiftStatus(ctx context.Context, db *gorm.DB, id, status string) error

	// RecordWebhookEvent appends the audit row for an inbound delivery.
	RecordWebhookEvent(ctx context.Context, db *gorm.DB, paymentID, requestID, topic, payload string, signatureValid bool) (*domain.WebhookEvent, error)

	// MarkWebhookProcessed stamps the audit row after reconciliation.
	MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id string) error
}

// PaymentFetcher is the slice of the gateway client the reconciler needs
// for authoritative re-fetches. A nil fetcher (no credential configured)
// degrades to trusting the webhook payload.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// Notifier dispatches the post-approval emails. Failures are logged and
// swallowed; they never affect the reconciliation result.
type Notifier interface {
	PayerConfirmation(ctx context.Context, c *domain.Contribution, g *domain.Gift) error
	InternalAlert(ctx context.Context, c *domain.Contribution, g *domain.Gift) error
}

// SecretSource resolves the webhook secret at verification time, so a
// credential rotated in the event configuration takes effect without a
// restart.
type SecretSource func(ctx context.Context) (string, error)

// Notification is one inbound gateway delivery, already pulled apart by
// the HTTP handler.
type Notification struct {
	// PaymentID is the gateway payment id (query parameter data.id or the
	// body's data.id, whichever is present).
	PaymentID string
	// RequestID is the opaque x-request-id header value.
	RequestID string
	// Signature is the raw x-signature header value.
	Signature string
	// Topic is the payment/topic discriminator from the body.
	Topic string
	// Status is the payment status carried in the webhook body, used only
	// when the authoritative re-fetch is unavailable.
	Status string
	// RawBody is the verbatim delivery payload, kept for audit.
	RawBody []byte
}

// Reconciler applies gateway notifications and poll results to local
// contribution records. Construct one at startup and share it; it is
// stateless apart from its injected collaborators.
type Reconciler struct {
	// DB is the GORM handle passed through to the Store.
	DB *gorm.DB
	// Store is the persistence contract.
	Store Store
	// Gateway re-fetches authoritative payment state; nil when no
	// credential is configured.
	Gateway PaymentFetcher
	// Notifier sends post-approval emails; nil disables dispatch.
	Notifier Notifier
	// Secret resolves the webhook secret for signature checks.
	Secret SecretSource
}

// ProcessNotification runs the full webhook protocol for one delivery.
//
// Returns ErrSignatureInvalid (the only authentication failure the handler
// maps to a non-2xx acknowledgment), a processing error when persistence
// fails (the gateway may redeliver), or the outcome of a successful run.
// Unknown payments and already-terminal contributions are successful
// no-ops: re-delivery must stay cheap and side-effect free.
func (r *Reconciler) ProcessNotification(ctx context.Context, n Notification) (Outcome, error) {
	secret := ""
	if r.Secret != nil {
		s, err := r.Secret(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("webhook secret unavailable")
		} else {
			secret = s
		}
	}

	if err := VerifySignature(n.Signature, n.RequestID, n.PaymentID, secret); err != nil {
		// Keep rejected deliveries on the audit trail for security review.
		if _, auditErr := r.Store.RecordWebhookEvent(ctx, r.DB, n.PaymentID, n.RequestID, n.Topic, string(n.RawBody), false); auditErr != nil {
			log.Warn().Err(auditErr).Msg("webhook audit write failed")
		}
		return "", err
	}

	event, err := r.Store.RecordWebhookEvent(ctx, r.DB, n.PaymentID, n.RequestID, n.Topic, string(n.RawBody), true)
	if err != nil {
		log.Warn().Err(err).Msg("webhook audit write failed")
	}

	contrib, err := r.Store.GetContributionByGatewayID(ctx, r.DB, n.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.markProcessed(ctx, event)
			return OutcomeIgnored, nil
		}
		return "", err
	}

	// At-most-once guard: approved is terminal for the completion trigger.
	// Checked before any mutating step.
	if contrib.IsTerminal() {
		r.markProcessed(ctx, event)
		return OutcomeNoop, nil
	}

	statusWord, raw := r.authoritativeStatus(ctx, n)
	outcome, err := r.applyTransition(ctx, contrib, statusWord, raw)
	if err != nil {
		return "", err
	}
	r.markProcessed(ctx, event)
	return outcome, nil
}

// SyncContribution is the polling path: fetch the live gateway state for a
// locally stored contribution and apply the same transition logic as the
// webhook protocol. When the gateway cannot be reached, the last known
// local state is returned without error so status polling never breaks.
func (r *Reconciler) SyncContribution(ctx context.Context, contributionID string) (*domain.Contribution, *gateway.Payment, error) {
	contrib, err := r.Store.GetContribution(ctx, r.DB, contributionID)
	if err != nil {
		return nil, nil, err
	}
	if r.Gateway == nil || contrib.GatewayPaymentID == nil || *contrib.GatewayPaymentID == "" {
		return contrib, nil, nil
	}

	payment, err := r.Gateway.GetPayment(ctx, *contrib.GatewayPaymentID)
	if err != nil {
		log.Warn().Err(err).Str("contribution_id", contributionID).Msg("gateway poll failed, serving local status")
		return contrib, nil, nil
	}

	if !contrib.IsTerminal() {
		if _, err := r.applyTransition(ctx, contrib, payment.Status, string(payment.Raw)); err != nil {
			return nil, nil, err
		}
	}
	return contrib, payment, nil
}

// authoritativeStatus prefers a live gateway re-fetch over the webhook
// payload, falling back to the payload when no credential is configured or
// the re-fetch fails.
func (r *Reconciler) authoritativeStatus(ctx context.Context, n Notification) (statusWord, raw string) {
	if r.Gateway != nil {
		if payment, err := r.Gateway.GetPayment(ctx, n.PaymentID); err == nil {
			return payment.Status, string(payment.Raw)
		} else {
			log.Warn().Err(err).Str("payment_id", n.PaymentID).Msg("authoritative fetch failed, trusting webhook payload")
		}
	}
	return n.Status, string(n.RawBody)
}

// applyTransition maps the gateway status, persists it when it changed, and
// runs the funding-completion side effects on the first transition into
// approved. contrib is updated in place on success.
func (r *Reconciler) applyTransition(ctx context.Context, contrib *domain.Contribution, gatewayStatus, raw string) (Outcome, error) {
	newStatus := gateway.MapStatus(gatewayStatus)
	if newStatus == contrib.Status {
		return OutcomeNoop, nil
	}

	if err := r.Store.UpdateContributionStatus(ctx, r.DB, contrib.ID, newStatus, raw); err != nil {
		return "", err
	}
	prev := contrib.Status
	contrib.Status = newStatus
	contrib.GatewayResponse = raw

	if newStatus == domain.PaymentStatusApproved && prev != domain.PaymentStatusApproved {
		if err := r.onApproved(ctx, contrib); err != nil {
			return "", err
		}
	}
	return OutcomeApplied, nil
}

// onApproved recomputes the gift's funding from all approved contributions
// and flips it to fulfilled when the target is reached, then dispatches the
// confirmation emails without blocking or failing the transition.
func (r *Reconciler) onApproved(ctx context.Context, contrib *domain.Contribution) error {
	gift, err := r.Store.GetGift(ctx, r.DB, contrib.GiftID)
	if err != nil {
		return err
	}
	approved, err := r.Store.ListApprovedContributions(ctx, r.DB, gift.ID)
	if err != nil {
		return err
	}

	snap := ledger.ComputeFunding(gift, approved)
	if snap.Fulfilled() && gift.Status != domain.GiftStatusFulfilled {
		if err := r.Store.SetGiftStatus(ctx, r.DB, gift.ID, domain.GiftStatusFulfilled); err != nil {
			return err
		}
		gift.Status = domain.GiftStatusFulfilled
	}

	if r.Notifier != nil {
		// Fire-and-forget: the webhook acknowledgment must not wait on SMTP.
		c := *contrib
		g := *gift
		go func() {
			bg := context.Background()
			if err := r.Notifier.PayerConfirmation(bg, &c, &g); err != nil {
				log.Warn().Err(err).Str("contribution_id", c.ID).Msg("payer confirmation failed")
			}
			if err := r.Notifier.InternalAlert(bg, &c, &g); err != nil {
				log.Warn().Err(err).Str("contribution_id", c.ID).Msg("internal alert failed")
			}
		}()
	}
	return nil
}

// markProcessed best-effort stamps the audit row.
func (r *Reconciler) markProcessed(ctx context.Context, event *domain.WebhookEvent) {
	if event == nil {
		return
	}
	if err := r.Store.MarkWebhookProcessed(ctx, r.DB, event.ID); err != nil {
		log.Warn().Err(err).Msg("webhook audit stamp failed")
	}
}
