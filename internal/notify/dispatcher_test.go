package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

type captureProvider struct {
	to      []string
	subject string
	body    string
	calls   int
	err     error
}

func (p *captureProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.calls++
	p.to = to
	p.subject = subject
	p.body = htmlBody
	return p.err
}

func testContribution() (*domain.Contribution, *domain.Gift) {
	c := &domain.Contribution{
		Name:   "Maria <script>",
		Email:  "maria@example.com",
		Amount: 150,
	}
	g := &domain.Gift{Title: "Lua de mel"}
	return c, g
}

func TestNewDispatcher_NilProviderFallsBackToNoOp(t *testing.T) {
	d := NewDispatcher(nil, "")
	c, g := testContribution()
	if err := d.PayerConfirmation(context.Background(), c, g); err != nil {
		t.Fatalf("noop provider must not error: %v", err)
	}
}

func TestPayerConfirmation(t *testing.T) {
	p := &captureProvider{}
	d := NewDispatcher(p, "")
	c, g := testContribution()

	if err := d.PayerConfirmation(context.Background(), c, g); err != nil {
		t.Fatalf("PayerConfirmation: %v", err)
	}
	if p.calls != 1 || len(p.to) != 1 || p.to[0] != "maria@example.com" {
		t.Fatalf("recipient wrong: %+v", p.to)
	}
	if !strings.Contains(p.body, "150,00") {
		t.Fatalf("body lacks formatted amount: %q", p.body)
	}
	// Contributor-supplied text must be HTML-escaped.
	if strings.Contains(p.body, "<script>") {
		t.Fatalf("body contains unescaped input: %q", p.body)
	}
	if !strings.Contains(p.body, "Lua de mel") {
		t.Fatalf("body lacks gift title: %q", p.body)
	}
}

func TestInternalAlert(t *testing.T) {
	c, g := testContribution()

	// Disabled when no internal recipient is configured.
	p := &captureProvider{}
	d := NewDispatcher(p, "")
	if err := d.InternalAlert(context.Background(), c, g); err != nil {
		t.Fatalf("disabled alert must not error: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("disabled alert must not send, got %d calls", p.calls)
	}

	// Named contributor.
	p = &captureProvider{}
	d = NewDispatcher(p, "casal@example.com")
	if err := d.InternalAlert(context.Background(), c, g); err != nil {
		t.Fatalf("InternalAlert: %v", err)
	}
	if p.to[0] != "casal@example.com" {
		t.Fatalf("recipient wrong: %+v", p.to)
	}
	if !strings.Contains(p.body, "Maria") {
		t.Fatalf("body lacks contributor name: %q", p.body)
	}

	// Anonymous contributor never appears by name.
	c.Anonymous = true
	p = &captureProvider{}
	d = NewDispatcher(p, "casal@example.com")
	if err := d.InternalAlert(context.Background(), c, g); err != nil {
		t.Fatalf("InternalAlert anonymous: %v", err)
	}
	if strings.Contains(p.body, "Maria") || !strings.Contains(p.body, "anônimo") {
		t.Fatalf("anonymous handling wrong: %q", p.body)
	}
}

func TestDispatcher_ProviderErrorBubbles(t *testing.T) {
	p := &captureProvider{err: errors.New("smtp down")}
	d := NewDispatcher(p, "casal@example.com")
	c, g := testContribution()

	if err := d.PayerConfirmation(context.Background(), c, g); err == nil {
		t.Fatalf("expected provider error to bubble")
	}
	if err := d.InternalAlert(context.Background(), c, g); err == nil {
		t.Fatalf("expected provider error to bubble")
	}
}
