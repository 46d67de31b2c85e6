// Package services – ContributionService
//
// This file implements the ContributionService, which orchestrates the guest
// contribution flow: validate the pledge against the gift's remaining
// balance, encrypt the contributor's tax id, persist the pending record, and
// create the matching charge at the payment gateway (or the mock fallback
// when no credential is configured). Status reads go through the reconciler
// so a poll can advance a contribution the webhook has not reached yet.
//
// Service-level errors (e.g., ErrGiftNotFound, ErrInvalidCPF) are returned
// for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noivosapp/go-wedding-backend/internal/cpf"
	"github.com/noivosapp/go-wedding-backend/internal/crypto"
	"github.com/noivosapp/go-wedding-backend/internal/domain"
	"github.com/noivosapp/go-wedding-backend/internal/gateway"
	"github.com/noivosapp/go-wedding-backend/internal/ledger"
	"github.com/noivosapp/go-wedding-backend/internal/repo"
)

// ContributionRepo defines the repository contract required by
// ContributionService. Implementations are responsible for persistence of
// contribution records.
type ContributionRepo interface {
	// CreateContribution inserts a pending contribution row.
	CreateContribution(ctx context.Context, db *gorm.DB, in repo.NewContribution) (*domain.Contribution, error)

	// GetContribution fetches a contribution by its local id.
	GetContribution(ctx context.Context, db *gorm.DB, id string) (*domain.Contribution, error)

	// SetGatewayPayment stores the gateway payment id and raw response after
	// a successful create call.
	SetGatewayPayment(ctx context.Context, db *gorm.DB, id, gatewayPaymentID, rawResponse string) error

	// GetGift fetches the gift being funded.
	GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error)

	// ListApprovedContributions feeds the remaining-balance check.
	ListApprovedContributions(ctx context.Context, db *gorm.DB, giftID string) ([]domain.Contribution, error)
}

// PaymentCreator is the slice of the gateway client used to create charges.
type PaymentCreator interface {
	CreatePixPayment(ctx context.Context, req gateway.PixRequest) (*gateway.Payment, error)
	CreateCardPayment(ctx context.Context, req gateway.CardRequest) (*gateway.Payment, error)
}

// GatewayResolver builds a gateway client from the credential current at
// call time (stored event configuration first, environment fallback). It
// returns gateway.ErrNotConfigured when no credential exists, which the
// service degrades to the mock PIX fallback.
type GatewayResolver func(ctx context.Context) (PaymentCreator, error)

// Syncer reconciles a contribution against the gateway's live state. The
// webhook reconciler implements it.
type Syncer interface {
	SyncContribution(ctx context.Context, contributionID string) (*domain.Contribution, *gateway.Payment, error)
}

// CreateContributionInput carries the guest's pledge as bound by the handler.
type CreateContributionInput struct {
	GiftID        string
	Name          string
	Email         string
	TaxID         string
	Amount        float64
	PaymentMethod string
	Anonymous     bool

	// Card-only fields. CardToken is the client-side tokenized card; the
	// raw card number never reaches this system.
	CardToken       string
	Installments    int
	PaymentMethodID string
}

// ContributionResult pairs the stored contribution with the gateway payment
// holding the payable instructions (PIX codes, expiration).
type ContributionResult struct {
	Contribution *domain.Contribution
	Payment      *gateway.Payment
}

// ContributionService provides the contribution operations: creating a
// pledge with its gateway charge and reading reconciled status.
type ContributionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the contribution repository used by this service.
	Repo ContributionRepo
	// Cipher encrypts the contributor's tax id before it is stored.
	Cipher *crypto.Cipher
	// Gateway resolves a payment client from the current credential.
	Gateway GatewayResolver
	// Sync reconciles stored status against the gateway on reads.
	Sync Syncer
}

// NewContributionService constructs a ContributionService.
func NewContributionService(db *gorm.DB, r ContributionRepo, cipher *crypto.Cipher, gw GatewayResolver, sync Syncer) *ContributionService {
	return &ContributionService{DB: db, Repo: r, Cipher: cipher, Gateway: gw, Sync: sync}
}

// Create validates the pledge, persists it in pending status, and creates
// the gateway charge. PIX pledges degrade to a mock payment when no gateway
// credential is configured; card pledges cannot, and fail with
// ErrGatewayNotConfigured.
//
// The remaining-balance check is advisory (see internal/ledger); a pledge
// that passes it is not a reservation.
func (s *ContributionService) Create(ctx context.Context, in CreateContributionInput) (*ContributionResult, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	gift, err := s.Repo.GetGift(ctx, s.DB, in.GiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}
	// Hidden gifts do not exist as far as guests are concerned.
	if gift.Status == domain.GiftStatusHidden {
		return nil, ErrGiftNotFound
	}
	if gift.Status == domain.GiftStatusFulfilled {
		return nil, ledger.ErrGiftFullyFunded
	}

	approved, err := s.Repo.ListApprovedContributions(ctx, s.DB, gift.ID)
	if err != nil {
		return nil, err
	}
	if err := ledger.ValidatePledge(gift, approved, in.Amount); err != nil {
		return nil, err
	}

	encryptedTaxID, err := s.Cipher.Encrypt(in.TaxID)
	if err != nil {
		return nil, err
	}

	contrib, err := s.Repo.CreateContribution(ctx, s.DB, repo.NewContribution{
		GiftID:        gift.ID,
		Name:          in.Name,
		Email:         in.Email,
		TaxID:         encryptedTaxID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Installments:  in.Installments,
		Anonymous:     in.Anonymous,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.charge(ctx, contrib, gift, in)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.SetGatewayPayment(ctx, s.DB, contrib.ID, payment.ID, string(payment.Raw)); err != nil {
		return nil, err
	}
	contrib.GatewayPaymentID = &payment.ID
	contrib.GatewayResponse = string(payment.Raw)

	return &ContributionResult{Contribution: contrib, Payment: payment}, nil
}

// Status returns the contribution with its status reconciled against the
// gateway's live state. When the gateway cannot be reached the last stored
// status is served, so polling never breaks during an outage.
func (s *ContributionService) Status(ctx context.Context, contributionID string) (*domain.Contribution, *gateway.Payment, error) {
	contrib, payment, err := s.Sync.SyncContribution(ctx, contributionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrContributionNotFound
		}
		return nil, nil, err
	}
	return contrib, payment, nil
}

// charge creates the gateway payment for the stored contribution. The
// contribution id travels as external_reference, the join key webhook
// reconciliation resolves later.
func (s *ContributionService) charge(ctx context.Context, contrib *domain.Contribution, gift *domain.Gift, in CreateContributionInput) (*gateway.Payment, error) {
	client, err := s.Gateway(ctx)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotConfigured) {
			return nil, err
		}
		if in.PaymentMethod == domain.PaymentMethodCard {
			return nil, ErrGatewayNotConfigured
		}
		return gateway.MockPixPayment(contrib.ID, in.Amount, 0), nil
	}

	payer := gateway.Payer{Name: in.Name, Email: in.Email, TaxID: cpf.Digits(in.TaxID)}
	description := "Presente: " + gift.Title

	if in.PaymentMethod == domain.PaymentMethodCard {
		return client.CreateCardPayment(ctx, gateway.CardRequest{
			ContributionID:  contrib.ID,
			Amount:          in.Amount,
			Description:     description,
			Payer:           payer,
			CardToken:       in.CardToken,
			Installments:    in.Installments,
			PaymentMethodID: in.PaymentMethodID,
		})
	}
	return client.CreatePixPayment(ctx, gateway.PixRequest{
		ContributionID: contrib.ID,
		Amount:         in.Amount,
		Description:    description,
		Payer:          payer,
	})
}

// validate applies the field-level rules and normalizes the input in place.
func (s *ContributionService) validate(in *CreateContributionInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)

	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if in.Name == "" || in.Email == "" {
		return ErrInvalidPayer
	}
	if !cpf.IsValid(in.TaxID) {
		return ErrInvalidCPF
	}

	switch in.PaymentMethod {
	case domain.PaymentMethodPix:
		in.Installments = 1
	case domain.PaymentMethodCard:
		if strings.TrimSpace(in.CardToken) == "" {
			return ErrCardTokenRequired
		}
		if in.Installments == 0 {
			in.Installments = 1
		}
		if in.Installments < 1 || in.Installments > 12 {
			return ErrInvalidInstallments
		}
	default:
		return ErrInvalidPaymentMethod
	}
	return nil
}
