package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/gateway"
	"github.com/noivosapp/go-wedding-backend/internal/repo"
)

// storeShim adapts the repo free functions to the Store interface.
type storeShim struct{}

func (storeShim) GetContributionByGatewayID(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	return repo.GetContributionByGatewayID(ctx, db, id)
}
func (storeShim) GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error) {
	return repo.GetContribution(ctx, db, id)
}
func (storeShim) UpdateContributionStatus(ctx context.Context, db *gorm.DB, id, status, raw string) error {
	return repo.UpdateContributionStatus(ctx, db, id, status, raw)
}
func (storeShim) GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error) {
	return repo.GetGift(ctx, db, id)
}
func (storeShim) ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error) {
	return repo.ListApprovedContributions(ctx, db, giftID)
}
func (storeShim) SetGiftStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.SetGiftStatus(ctx, db, id, status)
}
func (storeShim) RecordWebhookEvent(ctx context.Context, db *gorm.DB, paymentID, requestID, topic, payload string, valid bool) (*domain.WebhookEvent, error) {
	return repo.RecordWebhookEvent(ctx, db, paymentID, requestID, topic, payload, valid)
}
func (storeShim) MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id string) error {
	return repo.MarkWebhookProcessed(ctx, db, id)
}

// fakeGateway serves canned payment states keyed by payment id.
type fakeGateway struct {
	payments map[string]*gateway.Payment
	calls    atomic.Int64
	fail     bool
}

func (f *fakeGateway) GetPayment(ctx context.Context, id string) (*gateway.Payment, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("gateway unreachable")
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, &gateway.APIError{StatusCode: 404, Message: "not found"}
	}
	return p, nil
}

// fakeNotifier counts dispatch attempts.
type fakeNotifier struct {
	confirmations atomic.Int64
	alerts        atomic.Int64
}

func (f *fakeNotifier) PayerConfirmation(ctx context.Context, c *domain.Contribution, g *domain.Gift) error {
	f.confirmations.Add(1)
	return nil
}
func (f *fakeNotifier) InternalAlert(ctx context.Context, c *domain.Contribution, g *domain.Gift) error {
	f.alerts.Add(1)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

const testSecret = "whsec_test"

// seed creates a gift and a pending contribution wired to gateway payment id.
func seed(t *testing.T, db *gorm.DB, target, amount float64, paymentID string) (*domain.Gift, *domain.Contribution) {
	t.Helper()
	ctx := context.Background()
	g, err := repo.CreateGift(ctx, db, "Lua de mel", "", target, 1)
	if err != nil {
		t.Fatalf("seed gift: %v", err)
	}
	c, err := repo.CreateContribution(ctx, db, repo.NewContribution{
		GiftID: g.ID, Name: "Maria", Email: "maria@example.com",
		Amount: amount, PaymentMethod: domain.PaymentMethodPix,
	})
	if err != nil {
		t.Fatalf("seed contribution: %v", err)
	}
	if err := repo.SetGatewayPayment(ctx, db, c.ID, paymentID, `{"id":1}`); err != nil {
		t.Fatalf("seed gateway id: %v", err)
	}
	return g, c
}

func newReconciler(db *gorm.DB, gw PaymentFetcher, n Notifier) *Reconciler {
	return &Reconciler{
		DB:       db,
		Store:    storeShim{},
		Gateway:  gw,
		Notifier: n,
		Secret:   func(context.Context) (string, error) { return testSecret, nil },
	}
}

func notification(t *testing.T, paymentID, status string) Notification {
	t.Helper()
	header := sign(t, paymentID, "req-1", "1704908010", testSecret)
	return Notification{
		PaymentID: paymentID,
		RequestID: "req-1",
		Signature: header,
		Topic:     "payment",
		Status:    status,
		RawBody:   []byte(fmt.Sprintf(`{"type":"payment","data":{"id":"%s"},"status":"%s"}`, paymentID, status)),
	}
}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestProcessNotification_ApprovesAndFulfills(t *testing.T) {
	db := newTestDB(t)
	g, c := seed(t, db, 100.00, 100.00, "pay-1")

	gw := &fakeGateway{payments: map[string]*gateway.Payment{
		"pay-1": {ID: "pay-1", Status: "approved", Raw: []byte(`{"id":"pay-1","status":"approved"}`)},
	}}
	n := &fakeNotifier{}
	r := newReconciler(db, gw, n)

	outcome, err := r.ProcessNotification(context.Background(), notification(t, "pay-1", "approved"))
	if err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %q, want applied", outcome)
	}

	got, _ := repo.GetContribution(context.Background(), db, c.ID)
	if got.Status != domain.PaymentStatusApproved {
		t.Fatalf("contribution status = %q", got.Status)
	}
	if got.GatewayResponse == "" {
		t.Fatal("raw gateway response not persisted")
	}

	gift, _ := repo.GetGift(context.Background(), db, g.ID)
	if gift.Status != domain.GiftStatusFulfilled {
		t.Fatalf("gift status = %q, want fulfilled", gift.Status)
	}

	waitFor(t, func() bool { return n.confirmations.Load() == 1 && n.alerts.Load() == 1 })
}

func TestProcessNotification_Idempotent(t *testing.T) {
	db := newTestDB(t)
	g, _ := seed(t, db, 100.00, 100.00, "pay-1")

	gw := &fakeGateway{payments: map[string]*gateway.Payment{
		"pay-1": {ID: "pay-1", Status: "approved", Raw: []byte(`{"status":"approved"}`)},
	}}
	n := &fakeNotifier{}
	r := newReconciler(db, gw, n)

	if _, err := r.ProcessNotification(context.Background(), notification(t, "pay-1", "approved")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	waitFor(t, func() bool { return n.confirmations.Load() == 1 })

	// Re-delivery of the same notification: success, but no second side effect.
	outcome, err := r.ProcessNotification(context.Background(), notification(t, "pay-1", "approved"))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if outcome != OutcomeNoop {
		t.Fatalf("second delivery outcome = %q, want noop", outcome)
	}

	time.Sleep(50 * time.Millisecond)
	if got := n.confirmations.Load(); got != 1 {
		t.Fatalf("confirmation dispatched %d times, want exactly 1", got)
	}
	gift, _ := repo.GetGift(context.Background(), db, g.ID)
	if gift.Status != domain.GiftStatusFulfilled {
		t.Fatalf("gift status = %q", gift.Status)
	}
}

func TestProcessNotification_BadSignature(t *testing.T) {
	db := newTestDB(t)
	_, c := seed(t, db, 100.00, 100.00, "pay-1")

	r := newReconciler(db, &fakeGateway{payments: map[string]*gateway.Payment{}}, nil)

	n := notification(t, "pay-1", "approved")
	n.Signature = "ts=1704908010,v1=" + "deadbeef"
	if _, err := r.ProcessNotification(context.Background(), n); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	// No state change, even though the payment id is valid.
	got, _ := repo.GetContribution(context.Background(), db, c.ID)
	if got.Status != domain.PaymentStatusPending {
		t.Fatalf("status changed after rejected signature: %q", got.Status)
	}

	// Rejected delivery is still on the audit trail.
	var events []domain.WebhookEvent
	if err := db.Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 || events[0].SignatureValid {
		t.Fatalf("audit trail wrong: %+v", events)
	}
}

func TestProcessNotification_UnknownPaymentIsNoop(t *testing.T) {
	db := newTestDB(t)
	r := newReconciler(db, &fakeGateway{payments: map[string]*gateway.Payment{}}, nil)

	outcome, err := r.ProcessNotification(context.Background(), notification(t, "pay-unknown", "approved"))
	if err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %q, want ignored", outcome)
	}
}

func TestProcessNotification_FallsBackToPayloadStatus(t *testing.T) {
	db := newTestDB(t)
	_, c := seed(t, db, 500.00, 100.00, "pay-2")

	// Re-fetch fails; the webhook's own status word must be used.
	gw := &fakeGateway{fail: true}
	r := newReconciler(db, gw, nil)

	outcome, err := r.ProcessNotification(context.Background(), notification(t, "pay-2", "rejected"))
	if err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %q", outcome)
	}
	got, _ := repo.GetContribution(context.Background(), db, c.ID)
	if got.Status != domain.PaymentStatusRejected {
		t.Fatalf("status = %q, want rejected", got.Status)
	}
}

func TestProcessNotification_PartialFundingDoesNotFulfill(t *testing.T) {
	db := newTestDB(t)
	g, _ := seed(t, db, 1000.00, 400.00, "pay-3")

	gw := &fakeGateway{payments: map[string]*gateway.Payment{
		"pay-3": {ID: "pay-3", Status: "approved", Raw: []byte(`{"status":"approved"}`)},
	}}
	n := &fakeNotifier{}
	r := newReconciler(db, gw, n)

	if _, err := r.ProcessNotification(context.Background(), notification(t, "pay-3", "approved")); err != nil {
		t.Fatalf("ProcessNotification: %v", err)
	}
	gift, _ := repo.GetGift(context.Background(), db, g.ID)
	if gift.Status != domain.GiftStatusAvailable {
		t.Fatalf("gift fulfilled at 40%%: %q", gift.Status)
	}
	// Confirmation still goes out for the approved contribution.
	waitFor(t, func() bool { return n.confirmations.Load() == 1 })
}

func TestSyncContribution_PollingConverges(t *testing.T) {
	db := newTestDB(t)
	g, c := seed(t, db, 100.00, 100.00, "pay-4")

	gw := &fakeGateway{payments: map[string]*gateway.Payment{
		"pay-4": {ID: "pay-4", Status: "approved", Raw: []byte(`{"status":"approved"}`)},
	}}
	n := &fakeNotifier{}
	r := newReconciler(db, gw, n)

	contrib, payment, err := r.SyncContribution(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("SyncContribution: %v", err)
	}
	if payment == nil || payment.Status != "approved" {
		t.Fatalf("live payment missing: %+v", payment)
	}
	if contrib.Status != domain.PaymentStatusApproved {
		t.Fatalf("contribution not advanced by polling: %q", contrib.Status)
	}
	gift, _ := repo.GetGift(context.Background(), db, g.ID)
	if gift.Status != domain.GiftStatusFulfilled {
		t.Fatalf("gift status = %q", gift.Status)
	}
	waitFor(t, func() bool { return n.confirmations.Load() == 1 })
}

func TestSyncContribution_GatewayDownServesLocalStatus(t *testing.T) {
	db := newTestDB(t)
	_, c := seed(t, db, 100.00, 50.00, "pay-5")

	r := newReconciler(db, &fakeGateway{fail: true}, nil)

	contrib, payment, err := r.SyncContribution(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("SyncContribution must not fail when gateway is down: %v", err)
	}
	if payment != nil {
		t.Fatalf("unexpected live payment: %+v", payment)
	}
	if contrib.Status != domain.PaymentStatusPending {
		t.Fatalf("local status = %q", contrib.Status)
	}
}

func TestSyncContribution_NoGatewayConfigured(t *testing.T) {
	db := newTestDB(t)
	_, c := seed(t, db, 100.00, 50.00, "pay-6")

	r := newReconciler(db, nil, nil)
	contrib, payment, err := r.SyncContribution(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("SyncContribution: %v", err)
	}
	if payment != nil || contrib.ID != c.ID {
		t.Fatalf("unexpected result: %+v %+v", contrib, payment)
	}
}

func TestSyncContribution_TerminalNotReprocessed(t *testing.T) {
	db := newTestDB(t)
	_, c := seed(t, db, 100.00, 100.00, "pay-7")
	if err := repo.UpdateContributionStatus(context.Background(), db, c.ID, domain.PaymentStatusApproved, ""); err != nil {
		t.Fatalf("seed approved: %v", err)
	}

	gw := &fakeGateway{payments: map[string]*gateway.Payment{
		"pay-7": {ID: "pay-7", Status: "approved", Raw: []byte(`{}`)},
	}}
	n := &fakeNotifier{}
	r := newReconciler(db, gw, n)

	if _, _, err := r.SyncContribution(context.Background(), c.ID); err != nil {
		t.Fatalf("SyncContribution: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n.confirmations.Load() != 0 {
		t.Fatal("terminal contribution re-triggered side effects")
	}
}
