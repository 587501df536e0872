// Package payments records processor charges against invoices.
package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// Charge is the processor charge being recorded.
type Charge struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	Currency        enums.Currency
	Status          enums.ChargeStatus
	Created         time.Time
	Livemode        bool
}

// Target ties a charge to the records it pays for.
type Target struct {
	Invoice        *models.Invoice
	PurchaseID     *uuid.UUID
	SubscriptionID *uuid.UUID
}

// Recorded is the stored payment plus what had already been paid on the
// invoice before this charge.
type Recorded struct {
	Payment   *models.Payment
	PriorPaid int64
	Created   bool
	// Changed is false when a replayed charge left the row untouched.
	Changed bool
}

// PaymentStatusForCharge mirrors a charge status onto the payment row.
func PaymentStatusForCharge(status enums.ChargeStatus) enums.PaymentStatus {
	switch status {
	case enums.ChargeStatusSucceeded:
		return enums.PaymentStatusSucceeded
	case enums.ChargeStatusPending:
		return enums.PaymentStatusProcessing
	default:
		return enums.PaymentStatusFailed
	}
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repository required")
	}
	return &Service{repo: repo}, nil
}

// RecordCharge upserts the payment for charge, keyed by processor charge id.
func (s *Service) RecordCharge(ctx context.Context, tx *gorm.DB, charge Charge, target Target) (*Recorded, error) {
	if strings.TrimSpace(charge.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge id required")
	}
	if target.Invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice required to record a charge")
	}
	repo := s.repo.WithTx(tx)
	status := PaymentStatusForCharge(charge.Status)

	prior, err := repo.SucceededTotal(ctx, target.Invoice.ID, charge.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum prior payments")
	}

	existing, err := repo.FindByChargeID(ctx, charge.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment")
	}
	if existing == nil {
		payment := newPayment(charge, target, status)
		inserted, err := repo.InsertIfAbsent(ctx, payment)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert payment")
		}
		if inserted {
			return &Recorded{Payment: payment, PriorPaid: prior, Created: true, Changed: true}, nil
		}
		existing, err = repo.FindByChargeID(ctx, charge.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment")
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment missing after upsert")
		}
	}

	if existing.InvoiceID != target.Invoice.ID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "charge already recorded against another invoice")
	}
	if existing.Status == status && existing.Amount == charge.Amount {
		return &Recorded{Payment: existing, PriorPaid: prior}, nil
	}
	if err := repo.UpdateStatus(ctx, existing.ID, status, charge.Amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment")
	}
	existing.Status = status
	existing.Amount = charge.Amount
	return &Recorded{Payment: existing, PriorPaid: prior, Changed: true}, nil
}

func newPayment(charge Charge, target Target, status enums.PaymentStatus) *models.Payment {
	chargeDate := charge.Created
	if chargeDate.IsZero() {
		chargeDate = time.Now()
	}
	currency := charge.Currency
	if currency == "" {
		currency = target.Invoice.Currency
	}
	payment := &models.Payment{
		OrganizationID: target.Invoice.OrganizationID,
		CustomerID:     target.Invoice.CustomerID,
		InvoiceID:      target.Invoice.ID,
		PurchaseID:     target.PurchaseID,
		SubscriptionID: target.SubscriptionID,
		StripeChargeID: charge.ID,
		Amount:         charge.Amount,
		Currency:       currency,
		Status:         status,
		ChargeDate:     chargeDate.UTC(),
		TaxCountry:     target.Invoice.TaxCountry,
		Livemode:       charge.Livemode,
	}
	if charge.PaymentIntentID != "" {
		pi := charge.PaymentIntentID
		payment.StripePaymentIntentID = &pi
	}
	return payment
}
