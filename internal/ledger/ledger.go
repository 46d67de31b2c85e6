// Package ledger computes the funding state of a gift from its approved
// contributions and validates new pledges against the remaining balance.
// All arithmetic happens in integer minor units (see internal/money); the
// float amounts on the models are converted once at the boundary.
//
// The remaining-balance check is advisory, not a reservation: two
// concurrent pledges against a nearly-funded gift can both pass it before
// either is approved. The resulting overshoot is accepted and tolerated by
// the snapshot math (remaining floors at 0, progress caps at 100).
package ledger

import (
	"errors"
	"fmt"

	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/money"
)

// Sentinel errors returned by pledge and quota validation.
var (
	// ErrGiftFullyFunded rejects pledges against gifts with no remaining balance.
	ErrGiftFullyFunded = errors.New("gift already fully funded")

	// ErrExceedsRemaining rejects pledges larger than the remaining balance.
	// Returned values are *ExceedsRemainingError carrying the exact amount.
	ErrExceedsRemaining = errors.New("amount exceeds remaining balance")

	// ErrInvalidTarget rejects gifts whose target amount is not positive.
	ErrInvalidTarget = errors.New("target amount must be greater than zero")

	// ErrQuotaNotDivisible rejects quota configurations where the target in
	// minor units does not split evenly across quotas.
	ErrQuotaNotDivisible = errors.New("target amount is not evenly divisible by quota count")
)

// ExceedsRemainingError reports a pledge above the gift's remaining balance,
// including the exact remaining amount for the user-facing message.
type ExceedsRemainingError struct {
	RemainingCents int64
}

// Error implements the error interface.
func (e *ExceedsRemainingError) Error() string {
	return fmt.Sprintf("amount exceeds remaining balance of %s", money.FormatBRL(e.RemainingCents))
}

// Is makes errors.Is(err, ErrExceedsRemaining) work for wrapped values.
func (e *ExceedsRemainingError) Is(target error) bool { return target == ErrExceedsRemaining }

// Snapshot is the derived funding state of a gift. It is computed fresh
// from the underlying contribution rows on every read and never persisted,
// so the reported figures cannot drift from the ledger.
//
// Quota fields are nil when the gift has no valid quota split (quota count
// of 1, or a target that does not divide evenly).
type Snapshot struct {
	TotalReceived   float64  `json:"totalReceived"`
	Remaining       float64  `json:"remaining"`
	Progress        int      `json:"progress"`
	QuotaTotal      int      `json:"quotaTotal"`
	QuotaValue      *float64 `json:"quotaValue"`
	QuotasReceived  *int     `json:"quotasReceived"`
	QuotasRemaining *int     `json:"quotasRemaining"`

	// collectedCents and targetCents keep the exact figures available to
	// callers that need to compare without re-converting.
	collectedCents int64
	targetCents    int64
}

// CollectedCents returns the collected amount in minor units.
func (s Snapshot) CollectedCents() int64 { return s.collectedCents }

// TargetCents returns the target amount in minor units.
func (s Snapshot) TargetCents() int64 { return s.targetCents }

// Fulfilled reports whether the collected amount reached the target.
func (s Snapshot) Fulfilled() bool { return s.collectedCents >= s.targetCents }

// ComputeFunding derives the funding snapshot for gift from its approved
// contributions. Contributions in any other status must be filtered out by
// the caller (repo.ListApprovedContributions does exactly that).
//
// Guarantees: remaining is never negative, progress never exceeds 100, and
// quota figures are only reported when the quota split is exact.
func ComputeFunding(gift *domain.Gift, approved []domain.Contribution) Snapshot {
	target := money.ToMinorUnits(gift.TargetAmount)
	var collected int64
	for i := range approved {
		collected += money.ToMinorUnits(approved[i].Amount)
	}

	remaining := target - collected
	if remaining < 0 {
		remaining = 0
	}

	progress := 0
	if target > 0 {
		progress = int(collected * 100 / target)
		if progress > 100 {
			progress = 100
		}
	}

	snap := Snapshot{
		TotalReceived:  money.FromMinorUnits(collected),
		Remaining:      money.FromMinorUnits(remaining),
		Progress:       progress,
		QuotaTotal:     gift.QuotaTotal,
		collectedCents: collected,
		targetCents:    target,
	}

	if gift.QuotaTotal > 1 && target%int64(gift.QuotaTotal) == 0 {
		quotaCents := target / int64(gift.QuotaTotal)
		quotaValue := money.FromMinorUnits(quotaCents)
		received := int(collected / quotaCents)
		left := int(remaining / quotaCents)
		snap.QuotaValue = &quotaValue
		snap.QuotasReceived = &received
		snap.QuotasRemaining = &left
	}

	return snap
}

// ValidatePledge checks a proposed contribution amount against the gift's
// remaining balance, computed fresh from the approved contributions.
//
// Returns ErrGiftFullyFunded when nothing remains, and an
// *ExceedsRemainingError (matching ErrExceedsRemaining) when the proposal
// is larger than what remains. The check is advisory under concurrency;
// see the package comment.
func ValidatePledge(gift *domain.Gift, approved []domain.Contribution, amount float64) error {
	snap := ComputeFunding(gift, approved)
	remaining := snap.targetCents - snap.collectedCents
	if remaining <= 0 {
		return ErrGiftFullyFunded
	}
	if money.ToMinorUnits(amount) > remaining {
		return &ExceedsRemainingError{RemainingCents: remaining}
	}
	return nil
}

// ValidateQuota verifies a gift's target/quota configuration at creation
// time: a positive target, a quota count of at least 1, and an even split
// of the target (in minor units) when the count is greater than 1.
func ValidateQuota(targetAmount float64, quotaTotal int) error {
	target := money.ToMinorUnits(targetAmount)
	if target <= 0 {
		return ErrInvalidTarget
	}
	if quotaTotal < 1 {
		return ErrQuotaNotDivisible
	}
	if quotaTotal > 1 && target%int64(quotaTotal) != 0 {
		return ErrQuotaNotDivisible
	}
	return nil
}
