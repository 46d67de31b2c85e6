// Package services defines the business logic for gifts and contributions.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer. Funding-specific sentinels (fully funded, exceeds
// remaining) live in internal/ledger next to the math that produces them.
package services

import "errors"

var (
	// ErrGiftNotFound indicates that the requested gift does not exist or is
	// hidden from the public registry.
	ErrGiftNotFound = errors.New("gift not found")

	// ErrContributionNotFound indicates that the requested contribution does
	// not exist.
	ErrContributionNotFound = errors.New("contribution not found")

	// ErrInvalidTitle is returned when a gift is created without a title.
	ErrInvalidTitle = errors.New("gift title is required")

	// ErrInvalidGiftStatus is returned when a status update names a value
	// outside the allowed set (available, fulfilled, hidden).
	ErrInvalidGiftStatus = errors.New("invalid gift status")

	// ErrInvalidAmount is returned when a contribution amount is not a
	// positive number.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidPayer is returned when the contributor's name or email is
	// missing.
	ErrInvalidPayer = errors.New("payer name and email are required")

	// ErrInvalidCPF is returned when the contributor's tax id fails the
	// checksum validation.
	ErrInvalidCPF = errors.New("invalid CPF")

	// ErrInvalidPaymentMethod is returned when the payment method is neither
	// pix nor credit_card.
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")

	// ErrCardTokenRequired is returned when a card payment arrives without a
	// tokenized card reference.
	ErrCardTokenRequired = errors.New("card token is required")

	// ErrInvalidInstallments is returned when a card payment requests an
	// installment count outside 1..12.
	ErrInvalidInstallments = errors.New("installments must be between 1 and 12")

	// ErrGatewayNotConfigured is returned for operations that cannot degrade
	// to the mock fallback (card payments) when no gateway credential exists.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)
