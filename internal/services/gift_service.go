// Package services – GiftService
//
// This file implements the GiftService, which manages the gift registry:
// public listing and detail reads with derived funding figures, and the
// operator-only creation and status operations. Funding figures are never
// stored; every read recomputes them from the approved contribution rows
// via internal/ledger, so the reported numbers cannot drift.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/ledger"
)

// GiftRepo defines the repository contract required by GiftService.
type GiftRepo interface {
	// CreateGift inserts a new gift row.
	CreateGift(ctx context.Context, db *gorm.DB, title, description string, targetAmount float64, quotaTotal int) (*domain.Gift, error)

	// GetGift fetches a gift by ID.
	GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error)

	// ListGifts returns gifts in registry display order.
	ListGifts(ctx context.Context, db *gorm.DB, includeHidden bool) ([]domain.Gift, error)

	// SetGiftStatus updates a gift's lifecycle status.
	SetGiftStatus(ctx context.Context, db *gorm.DB, id, status string) error

	// GiftsStats returns listing metadata used for ETag generation.
	GiftsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)

	// ListApprovedContributions feeds the funding computation.
	ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error)
}

// GiftWithFunding pairs a gift with its derived funding snapshot.
type GiftWithFunding struct {
	Gift    *domain.Gift
	Funding ledger.Snapshot
}

// GiftService provides registry-level gift operations.
type GiftService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the gift repository used by this service.
	Repo GiftRepo
}

// NewGiftService constructs a GiftService.
func NewGiftService(db *gorm.DB, r GiftRepo) *GiftService {
	return &GiftService{DB: db, Repo: r}
}

// List returns the registry's gifts with funding figures. Hidden gifts are
// excluded unless includeHidden is set (the operator back-office passes
// true).
func (s *GiftService) List(ctx context.Context, includeHidden bool) ([]GiftWithFunding, error) {
	gifts, err := s.Repo.ListGifts(ctx, s.DB, includeHidden)
	if err != nil {
		return nil, err
	}
	out := make([]GiftWithFunding, 0, len(gifts))
	for i := range gifts {
		g := &gifts[i]
		approved, err := s.Repo.ListApprovedContributions(ctx, s.DB, g.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, GiftWithFunding{Gift: g, Funding: ledger.ComputeFunding(g, approved)})
	}
	return out, nil
}

// Get returns a single gift with funding figures. Hidden gifts behave as
// missing for public reads.
func (s *GiftService) Get(ctx context.Context, id string, includeHidden bool) (*GiftWithFunding, error) {
	gift, err := s.Repo.GetGift(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}
	if gift.Status == domain.GiftStatusHidden && !includeHidden {
		return nil, ErrGiftNotFound
	}
	approved, err := s.Repo.ListApprovedContributions(ctx, s.DB, gift.ID)
	if err != nil {
		return nil, err
	}
	return &GiftWithFunding{Gift: gift, Funding: ledger.ComputeFunding(gift, approved)}, nil
}

// Create registers a new gift after validating the title and the
// target/quota split.
func (s *GiftService) Create(ctx context.Context, title, description string, targetAmount float64, quotaTotal int) (*domain.Gift, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	if quotaTotal < 1 {
		quotaTotal = 1
	}
	if err := ledger.ValidateQuota(targetAmount, quotaTotal); err != nil {
		return nil, err
	}
	return s.Repo.CreateGift(ctx, s.DB, title, strings.TrimSpace(description), targetAmount, quotaTotal)
}

// SetStatus applies an operator status change (hide, unhide, or manually
// mark fulfilled for gifts bought outside the platform).
func (s *GiftService) SetStatus(ctx context.Context, id, status string) error {
	switch status {
	case domain.GiftStatusAvailable, domain.GiftStatusFulfilled, domain.GiftStatusHidden:
	default:
		return ErrInvalidGiftStatus
	}
	if err := s.Repo.SetGiftStatus(ctx, s.DB, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGiftNotFound
		}
		return err
	}
	return nil
}

// Stats returns the visible-gift count and latest update instant, used by
// the listing handler to build a weak ETag.
func (s *GiftService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.GiftsStats(ctx, s.DB)
}
