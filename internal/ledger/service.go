package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Command is a deferred request to write a ledger entry. Commands are
// produced during reconciliation and applied when the effects are committed.
type Command struct {
	Type           enums.LedgerEntryType `json:"type"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	PaymentID      uuid.UUID             `json:"payment_id"`
	InvoiceID      uuid.UUID             `json:"invoice_id"`
	AmountCents    int64                 `json:"amount_cents"`
	Currency       enums.Currency        `json:"currency"`
	Livemode       bool                  `json:"livemode"`
	Metadata       json.RawMessage       `json:"metadata,omitempty"`
}

// SettlePayment builds the settle_payment command for a successful payment.
func SettlePayment(payment *models.Payment) Command {
	return Command{
		Type:           enums.LedgerEntryTypePaymentSettled,
		OrganizationID: payment.OrganizationID,
		PaymentID:      payment.ID,
		InvoiceID:      payment.InvoiceID,
		AmountCents:    payment.Amount,
		Currency:       payment.Currency,
		Livemode:       payment.Livemode,
	}
}

// FailPayment records a failed charge attempt.
func FailPayment(payment *models.Payment) Command {
	cmd := SettlePayment(payment)
	cmd.Type = enums.LedgerEntryTypePaymentFailed
	cmd.AmountCents = 0
	return cmd
}

// Service defines operations that record ledger entries.
type Service interface {
	Apply(ctx context.Context, tx *gorm.DB, cmd Command) (*models.LedgerEntry, error)
	HasEntry(ctx context.Context, paymentID uuid.UUID, entryType enums.LedgerEntryType) (bool, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, cmd Command) (*models.LedgerEntry, error) {
	if cmd.OrganizationID == uuid.Nil {
		return nil, fmt.Errorf("organization id is required")
	}
	if cmd.PaymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	if cmd.InvoiceID == uuid.Nil {
		return nil, fmt.Errorf("invoice id is required")
	}
	if !cmd.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry type %q", cmd.Type)
	}

	entry := &models.LedgerEntry{
		OrganizationID: cmd.OrganizationID,
		PaymentID:      cmd.PaymentID,
		InvoiceID:      cmd.InvoiceID,
		Type:           cmd.Type,
		AmountCents:    cmd.AmountCents,
		Currency:       cmd.Currency,
		Livemode:       cmd.Livemode,
		Metadata:       cmd.Metadata,
	}
	return s.repo.WithTx(tx).CreateOnce(ctx, entry)
}

func (s *service) HasEntry(ctx context.Context, paymentID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	if paymentID == uuid.Nil {
		return false, fmt.Errorf("payment id is required")
	}
	if !entryType.IsValid() {
		return false, fmt.Errorf("invalid ledger entry type %q", entryType)
	}

	entries, err := s.repo.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Type == entryType {
			return true, nil
		}
	}
	return false, nil
}
