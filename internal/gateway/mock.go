// Development fallback used when no gateway credential is configured.
package gateway

import (
	"fmt"
	"time"
)

// MockPixPayment returns a canned PIX payment for environments without a
// configured gateway credential. The payload is clearly flagged Mock and
// must never be produced when a real access token exists; services only
// reach for it after NewClient returns ErrNotConfigured.
func MockPixPayment(contributionID string, amount float64, expiry time.Duration) *Payment {
	if expiry <= 0 {
		expiry = defaultPixExpiry
	}
	expiresAt := time.Now().Add(expiry)
	return &Payment{
		ID:                "mock-" + contributionID,
		Status:            "pending",
		ExternalReference: contributionID,
		QRCode: fmt.Sprintf(
			"00020126580014br.gov.bcb.pix0136%s520400005303986540%.2f5802BR5913Lista de Presentes6009Sao Paulo62070503***6304MOCK",
			contributionID, amount,
		),
		QRCodeBase64: "",
		ExpiresAt:    &expiresAt,
		Mock:         true,
	}
}
