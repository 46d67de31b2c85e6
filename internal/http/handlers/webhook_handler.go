// Webhook HTTP handlers.
//
// This file exposes the gateway notification endpoint:
//   - GET   /webhooks/payments   (endpoint verification challenge)
//   - POST  /webhooks/payments   (payment notification)
//
// The POST contract follows the gateway's delivery semantics: any processed
// or deliberately ignored notification is acknowledged 200 so the gateway
// stops redelivering; an invalid signature is the only 401; a processing
// failure returns 502 so the gateway retries later.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noivosapp/go-wedding-backend/internal/http/middleware"
	"github.com/noivosapp/go-wedding-backend/internal/reconcile"
)

// webhookBody is the JSON shape of a gateway notification. data.id carries
// the payment id; a status field is only present on non-production mock
// deliveries and is used as a fallback when the authoritative re-fetch is
// unavailable.
type webhookBody struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Status string `json:"status"`
	Data   struct {
		// ID arrives as a JSON string or number depending on the topic.
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// VerifyWebhook godoc
// @ID          verifyWebhook
// @Summary     Webhook endpoint verification
// @Description Echoes the challenge query parameter verbatim, as required by the gateway's endpoint registration flow.
// @Tags        Webhooks
// @Produce     plain
//
// @Param       challenge  query  string  false "Verification challenge"
//
// @Success     200  {string} string "Challenge echoed"
// @Router      /webhooks/payments [get]
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	c.String(http.StatusOK, c.Query("challenge"))
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Receive a gateway payment notification
// @Description Verifies the HMAC signature and applies the payment status to the matching contribution. Redeliveries and notifications for unknown payments are acknowledged without side effects.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       x-signature   header  string  true  "ts=...,v1=... HMAC header"
// @Param       x-request-id  header  string  true  "Gateway delivery id"
// @Param       data.id       query   string  false "Payment id"
//
// @Success     200  {object} map[string]string
// @Failure     401  {object} handlers.ErrorResponse "Invalid signature"
// @Failure     502  {object} handlers.ErrorResponse "Processing failure, retry later"
// @Router      /webhooks/payments [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	var body webhookBody
	// A body that fails to parse is still processed from the query
	// parameters; the raw payload is kept for audit either way.
	_ = json.Unmarshal(raw, &body)

	paymentID := c.Query("data.id")
	if paymentID == "" {
		paymentID = strings.Trim(string(body.Data.ID), `"`)
	}
	topic := body.Type
	if topic == "" {
		topic = body.Topic
	}

	n := reconcile.Notification{
		PaymentID: paymentID,
		RequestID: c.GetHeader("x-request-id"),
		Signature: c.GetHeader("x-signature"),
		Topic:     topic,
		Status:    body.Status,
		RawBody:   raw,
	}

	outcome, err := h.webhook.ProcessNotification(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, reconcile.ErrSignatureInvalid) {
			middleware.ObserveWebhookOutcome("rejected")
			fail(c, http.StatusUnauthorized, ErrCodeInvalidSignature, "invalid webhook signature")
			return
		}
		middleware.ObserveWebhookOutcome("failed")
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("payment_id", paymentID).Msg("webhook processing failed")
		fail(c, http.StatusBadGateway, ErrCodeProcessingFailed, "notification could not be processed")
		return
	}

	middleware.ObserveWebhookOutcome(string(outcome))
	ok(c, http.StatusOK, gin.H{"status": string(outcome)})
}
