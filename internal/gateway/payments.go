// Payment creation and polling against the gateway's /v1/payments API.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Payer identifies who is paying. TaxID is the contributor's CPF; the
// gateway receives it as a CPF identification record.
type Payer struct {
	Name  string
	Email string
	TaxID string
}

// PixRequest describes a PIX payment to create. ContributionID is sent as
// the gateway's external_reference and is the join key used later by
// webhook reconciliation.
type PixRequest struct {
	ContributionID string
	Amount         float64
	Description    string
	Payer          Payer
}

// CardRequest describes a credit-card payment to create. The card itself is
// tokenized client-side against the gateway SDK; only the resulting token
// reaches this system. PaymentMethodID is the card network id as recognized
// by the gateway, not a locally guessed brand.
type CardRequest struct {
	ContributionID  string
	Amount          float64
	Description     string
	Payer           Payer
	CardToken       string
	Installments    int
	PaymentMethodID string
}

// Payment is the subset of the gateway's payment resource the system acts
// on, plus the raw response kept verbatim for audit. PIX payments carry the
// copy-paste code, the scannable code, and the local expiration instant.
type Payment struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	QRCode            string          `json:"qr_code,omitempty"`
	QRCodeBase64      string          `json:"qr_code_base64,omitempty"`
	TicketURL         string          `json:"ticket_url,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	Mock              bool            `json:"mock,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// InternalStatus maps the gateway vocabulary onto the contribution statuses.
func (p *Payment) InternalStatus() string { return MapStatus(p.Status) }

// paymentPayload mirrors the wire shape of the gateway's payment resource.
type paymentPayload struct {
	ID                 int64  `json:"id"`
	Status             string `json:"status"`
	StatusDetail       string `json:"status_detail"`
	ExternalReference  string `json:"external_reference"`
	DateOfExpiration   string `json:"date_of_expiration"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// decodePayment parses a gateway payment response and keeps the raw bytes.
func decodePayment(raw []byte) (*Payment, error) {
	var p paymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	out := &Payment{
		ID:                formatID(p.ID),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		QRCode:            p.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      p.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:         p.PointOfInteraction.TransactionData.TicketURL,
		Raw:               json.RawMessage(append([]byte(nil), raw...)),
	}
	if p.DateOfExpiration != "" {
		if ts, err := time.Parse("2006-01-02T15:04:05.000-07:00", p.DateOfExpiration); err == nil {
			out.ExpiresAt = &ts
		}
	}
	return out, nil
}

// identification is the tax-id record sent with the payer.
type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// payerPayload is the wire shape of the payer block.
type payerPayload struct {
	Email          string         `json:"email"`
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	Identification identification `json:"identification"`
}

func buildPayer(p Payer) payerPayload {
	first, last := splitName(p.Name)
	return payerPayload{
		Email:          p.Email,
		FirstName:      first,
		LastName:       last,
		Identification: identification{Type: "CPF", Number: p.TaxID},
	}
}

// CreatePixPayment creates a PIX charge for req and returns the payable
// instructions (copy-paste code, scannable code, expiration). The charge
// expires after the locally configured PIX window, a registry business
// rule sent to the gateway as date_of_expiration.
func (c *Client) CreatePixPayment(ctx context.Context, req PixRequest) (*Payment, error) {
	expiresAt := time.Now().Add(c.pixExpiry)
	body := map[string]any{
		"transaction_amount": req.Amount,
		"description":        req.Description,
		"payment_method_id":  "pix",
		"external_reference": req.ContributionID,
		"notification_url":   c.notificationURL,
		"date_of_expiration": expiresAt.Format("2006-01-02T15:04:05.000-07:00"),
		"payer":              buildPayer(req.Payer),
	}
	payment, err := c.do(ctx, "create pix payment", http.MethodPost, "/v1/payments", body)
	if err != nil {
		return nil, err
	}
	if payment.ExpiresAt == nil {
		payment.ExpiresAt = &expiresAt
	}
	return payment, nil
}

// CreateCardPayment charges a pre-tokenized card. Installments must already
// be validated by the caller (1-12).
func (c *Client) CreateCardPayment(ctx context.Context, req CardRequest) (*Payment, error) {
	body := map[string]any{
		"transaction_amount": req.Amount,
		"description":        req.Description,
		"token":              req.CardToken,
		"installments":       req.Installments,
		"payment_method_id":  req.PaymentMethodID,
		"external_reference": req.ContributionID,
		"notification_url":   c.notificationURL,
		"payer":              buildPayer(req.Payer),
	}
	return c.do(ctx, "create card payment", http.MethodPost, "/v1/payments", body)
}

// GetPayment polls the authoritative state of a payment by gateway id. Used
// by client-initiated polling and by webhook reconciliation when it prefers
// the gateway's word over the webhook payload.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	return c.do(ctx, "get payment", http.MethodGet, "/v1/payments/"+paymentID, nil)
}
