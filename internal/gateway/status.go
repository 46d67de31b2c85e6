// Status vocabulary mapping between the gateway and the local ledger.
package gateway

import "github.com/noivosapp/go-wedding-backend/internal/domain"

// statusTable maps gateway payment statuses onto contribution statuses.
var statusTable = map[string]string{
	"approved":    domain.PaymentStatusApproved,
	"authorized":  domain.PaymentStatusApproved,
	"pending":     domain.PaymentStatusPending,
	"in_process":  domain.PaymentStatusPending,
	"in_mediation": domain.PaymentStatusPending,
	"rejected":    domain.PaymentStatusRejected,
	"cancelled":   domain.PaymentStatusCancelled,
	"refunded":    domain.PaymentStatusRefunded,
	"charged_back": domain.PaymentStatusRefunded,
}

// MapStatus translates a gateway status to the internal status enum.
// Unknown values map to pending: fail safe toward "needs re-check" rather
// than silently approving or failing a payment.
func MapStatus(gatewayStatus string) string {
	if s, ok := statusTable[gatewayStatus]; ok {
		return s
	}
	return domain.PaymentStatusPending
}
