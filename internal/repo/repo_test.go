package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGiftLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g, err := CreateGift(ctx, db, "Lua de mel", "", 1000.00, 10)
	if err != nil {
		t.Fatalf("CreateGift: %v", err)
	}
	if g.Status != domain.GiftStatusAvailable {
		t.Fatalf("new gift status = %q", g.Status)
	}

	got, err := GetGift(ctx, db, g.ID)
	if err != nil {
		t.Fatalf("GetGift: %v", err)
	}
	if got.Title != "Lua de mel" || got.QuotaTotal != 10 {
		t.Fatalf("unexpected gift: %+v", got)
	}

	if err := SetGiftStatus(ctx, db, g.ID, domain.GiftStatusFulfilled); err != nil {
		t.Fatalf("SetGiftStatus: %v", err)
	}
	got, _ = GetGift(ctx, db, g.ID)
	if got.Status != domain.GiftStatusFulfilled {
		t.Fatalf("status after flip = %q", got.Status)
	}

	if err := SetGiftStatus(ctx, db, "missing", domain.GiftStatusHidden); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListGifts_HiddenFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	visible, _ := CreateGift(ctx, db, "Jogo de jantar", "", 300.00, 1)
	hidden, _ := CreateGift(ctx, db, "Escondido", "", 100.00, 1)
	if err := SetGiftStatus(ctx, db, hidden.ID, domain.GiftStatusHidden); err != nil {
		t.Fatalf("SetGiftStatus: %v", err)
	}

	gifts, err := ListGifts(ctx, db, false)
	if err != nil {
		t.Fatalf("ListGifts: %v", err)
	}
	if len(gifts) != 1 || gifts[0].ID != visible.ID {
		t.Fatalf("hidden gift leaked into public listing: %+v", gifts)
	}

	all, err := ListGifts(ctx, db, true)
	if err != nil {
		t.Fatalf("ListGifts(includeHidden): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("back-office listing returned %d gifts", len(all))
	}
}

func TestContributionFlow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g, _ := CreateGift(ctx, db, "Cafeteira", "", 500.00, 1)

	c, err := CreateContribution(ctx, db, NewContribution{
		GiftID:        g.ID,
		Name:          "Maria",
		Email:         "maria@example.com",
		TaxID:         "enc:payload",
		Amount:        100.00,
		PaymentMethod: domain.PaymentMethodPix,
	})
	if err != nil {
		t.Fatalf("CreateContribution: %v", err)
	}
	if c.Status != domain.PaymentStatusPending || c.Installments != 1 {
		t.Fatalf("unexpected new contribution: %+v", c)
	}

	if err := SetGatewayPayment(ctx, db, c.ID, "pay-1", `{"id":1}`); err != nil {
		t.Fatalf("SetGatewayPayment: %v", err)
	}

	byGateway, err := GetContributionByGatewayID(ctx, db, "pay-1")
	if err != nil {
		t.Fatalf("GetContributionByGatewayID: %v", err)
	}
	if byGateway.ID != c.ID {
		t.Fatalf("gateway lookup resolved wrong contribution: %s", byGateway.ID)
	}

	if _, err := GetContributionByGatewayID(ctx, db, "pay-unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown gateway id, got %v", err)
	}

	if err := UpdateContributionStatus(ctx, db, c.ID, domain.PaymentStatusApproved, `{"status":"approved"}`); err != nil {
		t.Fatalf("UpdateContributionStatus: %v", err)
	}

	approved, err := ListApprovedContributions(ctx, db, g.ID)
	if err != nil {
		t.Fatalf("ListApprovedContributions: %v", err)
	}
	if len(approved) != 1 || approved[0].Status != domain.PaymentStatusApproved {
		t.Fatalf("approved listing wrong: %+v", approved)
	}
}

func TestListApprovedContributions_FiltersStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	g, _ := CreateGift(ctx, db, "Aspirador", "", 800.00, 1)

	for _, status := range []string{
		domain.PaymentStatusPending,
		domain.PaymentStatusRejected,
		domain.PaymentStatusCancelled,
		domain.PaymentStatusRefunded,
	} {
		c, _ := CreateContribution(ctx, db, NewContribution{
			GiftID: g.ID, Name: "x", Email: "x@example.com", Amount: 50.00,
			PaymentMethod: domain.PaymentMethodPix,
		})
		if status != domain.PaymentStatusPending {
			if err := UpdateContributionStatus(ctx, db, c.ID, status, ""); err != nil {
				t.Fatalf("seed %s: %v", status, err)
			}
		}
	}

	approved, err := ListApprovedContributions(ctx, db, g.ID)
	if err != nil {
		t.Fatalf("ListApprovedContributions: %v", err)
	}
	if len(approved) != 0 {
		t.Fatalf("non-approved statuses counted: %+v", approved)
	}
}

func TestEventConfigUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetEventConfig(ctx, db); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on fresh install, got %v", err)
	}

	first, err := UpsertEventConfig(ctx, db, "enc-token-1", "enc-secret-1")
	if err != nil {
		t.Fatalf("UpsertEventConfig: %v", err)
	}

	second, err := UpsertEventConfig(ctx, db, "enc-token-2", "enc-secret-2")
	if err != nil {
		t.Fatalf("UpsertEventConfig (update): %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("upsert created a second config record")
	}

	got, err := GetEventConfig(ctx, db)
	if err != nil {
		t.Fatalf("GetEventConfig: %v", err)
	}
	if got.AccessToken != "enc-token-2" || got.WebhookSecret != "enc-secret-2" {
		t.Fatalf("credentials not updated: %+v", got)
	}
}

func TestWebhookEventAudit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev, err := RecordWebhookEvent(ctx, db, "pay-7", "req-1", "payment", `{"data":{"id":"pay-7"}}`, true)
	if err != nil {
		t.Fatalf("RecordWebhookEvent: %v", err)
	}
	if ev.ProcessedAt != nil {
		t.Fatal("new event already marked processed")
	}

	if err := MarkWebhookProcessed(ctx, db, ev.ID); err != nil {
		t.Fatalf("MarkWebhookProcessed: %v", err)
	}
	var got domain.WebhookEvent
	if err := db.First(&got, "id = ?", ev.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ProcessedAt == nil {
		t.Fatal("processed_at not stamped")
	}
}

func TestIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := GetIdempotency(ctx, db, "g1", "key-1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "g1", "key-1", "c1", 201, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "g1", "key-1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if rec.ContributionID != "c1" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := CreateIdempotency(ctx, db, "g1", "key-1", "c2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Expired records are invisible.
	if _, err := CreateIdempotency(ctx, db, "g2", "key-2", "c3", 201, -time.Minute); err != nil {
		t.Fatalf("CreateIdempotency (expired): %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "g2", "key-2", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record returned: %v", err)
	}

	// Key-only hint lookup: live key yes, expired key no.
	if has, err := HasIdempotencyKey(ctx, db, "key-1", now); err != nil || !has {
		t.Fatalf("HasIdempotencyKey(key-1) = %v, %v; want true", has, err)
	}
	if has, err := HasIdempotencyKey(ctx, db, "key-2", now); err != nil || has {
		t.Fatalf("HasIdempotencyKey(key-2) = %v, %v; want false", has, err)
	}
}
