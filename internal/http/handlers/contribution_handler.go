// Contribution HTTP handlers.
//
// This file exposes REST endpoints for guest contributions:
//   - POST   /contributions              (create pledge + gateway charge)
//   - GET    /contributions/{id}/status  (reconciled status poll)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. POST honors the Idempotency-Key
// header: a replayed key within its TTL returns the previously created
// contribution instead of charging again.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/gateway"
	"github.com/noivosapp/go-wedding-backend/internal/http/middleware"
	"github.com/noivosapp/go-wedding-backend/internal/ledger"
	"github.com/noivosapp/go-wedding-backend/internal/reconcile"
	"github.com/noivosapp/go-wedding-backend/internal/repo"
	"github.com/noivosapp/go-wedding-backend/internal/services"
)

// ContributionService defines the contribution operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ContributionService interface {
	// Create validates a pledge, persists it, and creates the gateway charge.
	Create(ctx context.Context, in services.CreateContributionInput) (*services.ContributionResult, error)
	// Status returns the contribution reconciled against the gateway.
	Status(ctx context.Context, contributionID string) (*domain.Contribution, *gateway.Payment, error)
}

// WebhookProcessor applies an inbound gateway notification. The reconciler
// implements it.
type WebhookProcessor interface {
	ProcessNotification(ctx context.Context, n reconcile.Notification) (reconcile.Outcome, error)
}

// Handlers groups the HTTP endpoints for gifts, contributions, and webhooks.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	giftSvc    GiftService
	contribSvc ContributionService
	webhook    WebhookProcessor

	// db backs the idempotency-replay lookup on contribution creation.
	db             *gorm.DB
	idempotencyTTL time.Duration
	adminToken     string
}

// New constructs a Handlers instance bound to the given services. adminToken
// guards the operator endpoints; empty disables them.
func New(giftSvc GiftService, contribSvc ContributionService, webhook WebhookProcessor, db *gorm.DB, idempotencyTTL time.Duration, adminToken string) *Handlers {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &Handlers{
		giftSvc:        giftSvc,
		contribSvc:     contribSvc,
		webhook:        webhook,
		db:             db,
		idempotencyTTL: idempotencyTTL,
		adminToken:     adminToken,
	}
}

//
// DTOs
//

// CreateContributionRequest is the JSON payload for a guest pledge.
type CreateContributionRequest struct {
	// GiftID selects the registry gift being funded.
	GiftID string `json:"gift_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Name is the contributor's display name.
	Name string `json:"name" binding:"required" example:"Maria Silva"`
	// Email receives the payment confirmation.
	Email string `json:"email" binding:"required" example:"maria@example.com"`
	// TaxID is the contributor's CPF; punctuation is tolerated.
	TaxID string `json:"tax_id" binding:"required" example:"529.982.247-25"`
	// Amount is the pledged decimal amount.
	Amount float64 `json:"amount" binding:"required" example:"100.00"`
	// PaymentMethod is pix or credit_card.
	PaymentMethod string `json:"payment_method" binding:"required" example:"pix"`
	// Anonymous hides the contributor's name on public listings.
	Anonymous bool `json:"anonymous"`

	// Card-only fields.
	CardToken       string `json:"card_token,omitempty"`
	Installments    int    `json:"installments,omitempty" example:"3"`
	PaymentMethodID string `json:"payment_method_id,omitempty" example:"visa"`
}

// ContributionResponse pairs the stored contribution with the gateway
// payment instructions the guest needs to pay (PIX codes, expiration).
type ContributionResponse struct {
	Contribution *domain.Contribution `json:"contribution"`
	Payment      *gateway.Payment     `json:"payment,omitempty"`
}

//
// Handlers
//

// CreateContribution godoc
// @ID          createContribution
// @Summary     Contribute toward a gift
// @Description Validates the pledge against the gift's remaining balance and creates the payment at the gateway. Honors Idempotency-Key: a replayed key returns the original contribution without charging again.
// @Tags        Contributions
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body             body    handlers.CreateContributionRequest  true  "Pledge payload"
//
// @Success     201  {object}  handlers.ContributionResponse
// @Success     200  {object}  handlers.ContributionResponse "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse "Validation failure"
// @Failure     404  {object}  handlers.ErrorResponse "Gift not found"
// @Failure     409  {object}  handlers.ErrorResponse "Gift fully funded"
// @Failure     422  {object}  handlers.ErrorResponse "Amount exceeds remaining balance"
// @Failure     502  {object}  handlers.ErrorResponse "Gateway failure"
// @Failure     503  {object}  handlers.ErrorResponse "Gateway not configured"
// @Router      /contributions [post]
func (h *Handlers) CreateContribution(c *gin.Context) {
	var req CreateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	// Serve a stored result for a replayed Idempotency-Key before touching
	// the gateway again.
	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, req.GiftID, key, time.Now().UTC()); err == nil {
			h.serveReplay(c, rec.ContributionID)
			return
		}
	}

	res, err := h.contribSvc.Create(ctx, services.CreateContributionInput{
		GiftID:          req.GiftID,
		Name:            req.Name,
		Email:           req.Email,
		TaxID:           req.TaxID,
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		Anonymous:       req.Anonymous,
		CardToken:       req.CardToken,
		Installments:    req.Installments,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		failContribution(c, err)
		return
	}

	if hasKey && h.db != nil {
		if _, err := repo.CreateIdempotency(ctx, h.db, req.GiftID, key, res.Contribution.ID, http.StatusCreated, h.idempotencyTTL); err != nil {
			// A concurrent retry won the insert; serve its stored result.
			if errors.Is(err, repo.ErrDuplicate) {
				if rec, lookupErr := repo.GetIdempotency(ctx, h.db, req.GiftID, key, time.Now().UTC()); lookupErr == nil {
					h.serveReplay(c, rec.ContributionID)
					return
				}
			}
		}
	}

	if res.Payment != nil {
		middleware.ObservePaymentCreated(res.Contribution.PaymentMethod, res.Payment.Mock)
	}
	ok(c, http.StatusCreated, ContributionResponse{Contribution: res.Contribution, Payment: res.Payment})
}

// GetContributionStatus godoc
// @ID          getContributionStatus
// @Summary     Poll a contribution's payment status
// @Description Returns the stored contribution reconciled against the gateway's live state. When the gateway is unreachable the last known local status is served.
// @Tags        Contributions
// @Produce     json
//
// @Param       id  path  string  true "Contribution ID (UUID)" format(uuid)
//
// @Success     200  {object} handlers.ContributionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Contribution not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contributions/{id}/status [get]
func (h *Handlers) GetContributionStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contribution id must be a UUID")
		return
	}

	contrib, payment, err := h.contribSvc.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrContributionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "contribution not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ContributionResponse{Contribution: contrib, Payment: payment})
}

// serveReplay returns the stored contribution for a replayed idempotency
// key, reconciled so the guest sees current payment state.
func (h *Handlers) serveReplay(c *gin.Context, contributionID string) {
	contrib, payment, err := h.contribSvc.Status(c.Request.Context(), contributionID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ContributionResponse{Contribution: contrib, Payment: payment})
}

// failContribution maps service-layer errors from contribution creation to
// the HTTP error taxonomy.
func failContribution(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGiftNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "gift not found")
	case errors.Is(err, services.ErrInvalidCPF):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCPF, err.Error())
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidPayer),
		errors.Is(err, services.ErrInvalidPaymentMethod),
		errors.Is(err, services.ErrCardTokenRequired),
		errors.Is(err, services.ErrInvalidInstallments):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, ledger.ErrGiftFullyFunded):
		fail(c, http.StatusConflict, ErrCodeFullyFunded, err.Error())
	case errors.Is(err, ledger.ErrExceedsRemaining):
		fail(c, http.StatusUnprocessableEntity, ErrCodeExceedsRemaining, err.Error())
	case errors.Is(err, services.ErrGatewayNotConfigured):
		fail(c, http.StatusServiceUnavailable, ErrCodeGatewayNotConfigured, err.Error())
	default:
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) || errors.Is(err, gateway.ErrNotConfigured) {
			fail(c, http.StatusBadGateway, ErrCodeGatewayError, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
