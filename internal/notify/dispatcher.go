package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/money"
)

// Dispatcher composes and sends the two messages fired when a contribution
// is approved: the payer confirmation and the internal new-contribution
// alert. Errors bubble to the caller, which logs and drops them.
type Dispatcher struct {
	Provider Provider
	// InternalTo receives the new-contribution alert (the couple's inbox).
	// Empty disables the alert.
	InternalTo string
}

// NewDispatcher builds a Dispatcher over the given provider.
func NewDispatcher(p Provider, internalTo string) *Dispatcher {
	if p == nil {
		p = NoOpProvider{}
	}
	return &Dispatcher{Provider: p, InternalTo: internalTo}
}

// PayerConfirmation emails the contributor that their payment was approved.
func (d *Dispatcher) PayerConfirmation(ctx context.Context, c *domain.Contribution, g *domain.Gift) error {
	amount := money.FormatBRL(money.ToMinorUnits(c.Amount))
	subject := "Presente confirmado — obrigado!"
	body := fmt.Sprintf(
		"<p>Olá %s,</p><p>Recebemos sua contribuição de <strong>%s</strong> para o presente <strong>%s</strong>.</p><p>Muito obrigado!</p>",
		html.EscapeString(c.Name), amount, html.EscapeString(g.Title),
	)
	return d.Provider.Send(ctx, []string{c.Email}, subject, body)
}

// InternalAlert emails the couple about a newly approved contribution.
// Anonymous contributions omit the contributor name.
func (d *Dispatcher) InternalAlert(ctx context.Context, c *domain.Contribution, g *domain.Gift) error {
	if d.InternalTo == "" {
		return nil
	}
	who := html.EscapeString(c.Name)
	if c.Anonymous {
		who = "um convidado anônimo"
	}
	amount := money.FormatBRL(money.ToMinorUnits(c.Amount))
	subject := fmt.Sprintf("Nova contribuição: %s", g.Title)
	body := fmt.Sprintf(
		"<p>%s contribuiu com <strong>%s</strong> para <strong>%s</strong>.</p>",
		who, amount, html.EscapeString(g.Title),
	)
	return d.Provider.Send(ctx, []string{d.InternalTo}, subject, body)
}
