// Gift HTTP handlers.
//
// This file exposes REST endpoints for the gift registry:
//   - GET    /gifts              (public listing, ETag support)
//   - GET    /gifts/{id}         (public detail)
//   - POST   /gifts              (operator create)
//   - PUT    /gifts/{id}/status  (operator status change)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
// Funding figures on every response are derived from the contribution ledger
// at read time.
package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/ledger"
	"github.com/noivosapp/go-wedding-backend/internal/repo"
	"github.com/noivosapp/go-wedding-backend/internal/services"
	"github.com/noivosapp/go-wedding-backend/internal/utils"
)

// GiftService defines the registry operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GiftService interface {
	// List returns gifts with derived funding figures.
	List(ctx context.Context, includeHidden bool) ([]services.GiftWithFunding, error)
	// Get returns one gift with derived funding figures.
	Get(ctx context.Context, id string, includeHidden bool) (*services.GiftWithFunding, error)
	// Create registers a new gift (operator only).
	Create(ctx context.Context, title, description string, targetAmount float64, quotaTotal int) (*domain.Gift, error)
	// SetStatus applies an operator status change.
	SetStatus(ctx context.Context, id, status string) error
	// Stats returns listing metadata for ETag generation.
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// HeaderAdminToken guards the operator endpoints. The comparison is constant
// time; an empty configured token disables the operator surface entirely.
const HeaderAdminToken = "X-Admin-Token"

//
// DTOs
//

// GiftResponse is a gift plus its derived funding snapshot.
type GiftResponse struct {
	domain.Gift
	Funding ledger.Snapshot `json:"funding"`
}

// CreateGiftRequest is the JSON payload for registering a gift.
type CreateGiftRequest struct {
	// Title is the gift's display name.
	Title string `json:"title" binding:"required" example:"Lua de mel"`
	// Description optionally adds longer text shown to guests.
	Description string `json:"description" example:"Uma semana em Paraty"`
	// TargetAmount is the funding target in decimal currency.
	TargetAmount float64 `json:"target_amount" binding:"required" example:"1000.00"`
	// QuotaTotal splits the target into equal shares; defaults to 1.
	QuotaTotal int `json:"quota_total" example:"10"`
}

// UpdateGiftStatusRequest is the JSON payload for an operator status change.
type UpdateGiftStatusRequest struct {
	// Status is one of available, fulfilled, hidden.
	Status string `json:"status" binding:"required" example:"hidden"`
}

func giftResponse(g services.GiftWithFunding) GiftResponse {
	return GiftResponse{Gift: *g.Gift, Funding: g.Funding}
}

//
// Handlers
//

// requireAdmin checks the operator token. It writes the error response and
// returns false when the request is not authorized.
func (h *Handlers) requireAdmin(c *gin.Context) bool {
	if h.adminToken == "" {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "operator endpoints are disabled")
		return false
	}
	got := c.GetHeader(HeaderAdminToken)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid admin token")
		return false
	}
	return true
}

// ListGifts godoc
// @ID          listGifts
// @Summary     List registry gifts
// @Description Returns the visible gifts with derived funding figures. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Gifts
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {array}  handlers.GiftResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gifts [get]
func (h *Handlers) ListGifts(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if count, maxTS, err := h.giftSvc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"gifts:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	gifts, err := h.giftSvc.List(ctx, false)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	out := make([]GiftResponse, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, giftResponse(g))
	}
	ok(c, http.StatusOK, out)
}

// GetGift godoc
// @ID          getGift
// @Summary     Get a gift
// @Description Returns a single gift with derived funding figures. Hidden gifts return 404.
// @Tags        Gifts
// @Produce     json
//
// @Param       id  path  string  true "Gift ID (UUID)" format(uuid)
//
// @Success     200  {object} handlers.GiftResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Gift not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gifts/{id} [get]
func (h *Handlers) GetGift(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gift id must be a UUID")
		return
	}

	g, err := h.giftSvc.Get(c.Request.Context(), id, false)
	if err != nil {
		if errors.Is(err, services.ErrGiftNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "gift not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, giftResponse(*g))
}

// CreateGift godoc
// @ID          createGift
// @Summary     Register a gift (operator)
// @Description Creates a registry gift after validating the target/quota split.
// @Tags        Gifts
// @Accept      json
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true "Operator token"
// @Param       body           body    handlers.CreateGiftRequest  true  "Gift payload"
//
// @Success     201  {object}  domain.Gift
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Invalid token"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /gifts [post]
func (h *Handlers) CreateGift(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	var req CreateGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	g, err := h.giftSvc.Create(c.Request.Context(), req.Title, req.Description, req.TargetAmount, req.QuotaTotal)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTitle),
			errors.Is(err, ledger.ErrInvalidTarget),
			errors.Is(err, ledger.ErrQuotaNotDivisible):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, g)
}

// ListGiftContributions godoc
// @ID          listGiftContributions
// @Summary     List a gift's contributions (operator)
// @Description Returns every contribution for a gift regardless of status, most recent first. Back-office view; encrypted tax ids are never serialized.
// @Tags        Gifts
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true  "Operator token"
// @Param       id             path    string  true  "Gift ID (UUID)" format(uuid)
// @Param       limit          query   int     false "Cap the number of rows returned"
//
// @Success     200  {array}  domain.Contribution
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gifts/{id}/contributions [get]
func (h *Handlers) ListGiftContributions(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gift id must be a UUID")
		return
	}

	contribs, err := repo.ListContributionsByGift(c.Request.Context(), h.db, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if limit := utils.AtoiDefault(c.Query("limit"), 0); limit > 0 && limit < len(contribs) {
		contribs = contribs[:limit]
	}
	ok(c, http.StatusOK, contribs)
}

// UpdateGiftStatus godoc
// @ID          updateGiftStatus
// @Summary     Change a gift's status (operator)
// @Description Hides, unhides, or manually fulfills a gift (e.g. bought outside the platform).
// @Tags        Gifts
// @Accept      json
// @Produce     json
//
// @Param       X-Admin-Token  header  string  true "Operator token"
// @Param       id             path    string  true "Gift ID (UUID)" format(uuid)
// @Param       body           body    handlers.UpdateGiftStatusRequest  true  "New status"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid token"
// @Failure     404  {object} handlers.ErrorResponse "Gift not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gifts/{id}/status [put]
func (h *Handlers) UpdateGiftStatus(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gift id must be a UUID")
		return
	}

	var req UpdateGiftStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.giftSvc.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidGiftStatus):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrGiftNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "gift not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}
