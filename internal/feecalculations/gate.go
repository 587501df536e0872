package feecalculations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// Inputs is everything needed to quote a checkout session.
type Inputs struct {
	Session      *models.CheckoutSession
	Organization *models.Organization
	Price        *models.Price
	Discount     *models.Discount
}

// Parameters are the fee-affecting fields of a session or snapshot.
type Parameters struct {
	PriceID    uuid.UUID
	DiscountID *uuid.UUID
	Country    string
	Region     string
	Quantity   int
}

func ParametersFromSession(session *models.CheckoutSession) Parameters {
	if session == nil {
		return Parameters{}
	}
	params := Parameters{
		DiscountID: session.DiscountID,
		Country:    session.BillingAddress.CountryCode(),
		Region:     session.BillingAddress.Region(),
		Quantity:   normalizeQuantity(session.Quantity),
	}
	if session.PriceID != nil {
		params.PriceID = *session.PriceID
	}
	return params
}

func ParametersFromCalculation(calc *models.FeeCalculation) Parameters {
	if calc == nil {
		return Parameters{}
	}
	return Parameters{
		PriceID:    calc.PriceID,
		DiscountID: calc.DiscountID,
		Country:    calc.BillingAddressCountry,
		Region:     calc.BillingAddressRegion,
		Quantity:   normalizeQuantity(calc.Quantity),
	}
}

// ParametersChanged compares exactly the fee-affecting fields.
func ParametersChanged(previous, current Parameters) bool {
	if previous.PriceID != current.PriceID {
		return true
	}
	if !sameID(previous.DiscountID, current.DiscountID) {
		return true
	}
	if previous.Country != current.Country || previous.Region != current.Region {
		return true
	}
	return previous.Quantity != current.Quantity
}

// IsFeeReady reports whether the session carries enough resolved data for a
// deterministic total. A billing address is only required when the
// organization collects tax.
func IsFeeReady(in Inputs) bool {
	session := in.Session
	if session == nil || session.PriceID == nil {
		return false
	}
	if in.Price == nil || in.Price.ID != *session.PriceID {
		return false
	}
	if session.DiscountID != nil {
		if in.Discount == nil || in.Discount.ID != *session.DiscountID {
			return false
		}
	}
	if in.Organization != nil && in.Organization.CollectsTax {
		if session.BillingAddress.CountryCode() == "" {
			return false
		}
	}
	return true
}

// Decision is the outcome of running the gate for a session.
type Decision struct {
	Calculation *models.FeeCalculation
	Created     bool
}

// Gate decides whether a session needs a fresh fee snapshot or can keep the
// one the customer was already quoted.
type Gate struct {
	repo       Repository
	calculator *Calculator
}

func NewGate(repo Repository, calculator *Calculator) (*Gate, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee calculation repository required")
	}
	if calculator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee calculator required")
	}
	return &Gate{repo: repo, calculator: calculator}, nil
}

// Resolve returns the snapshot the session should be billed against. Sessions
// that are not fee ready yield an empty decision.
func (g *Gate) Resolve(ctx context.Context, tx *gorm.DB, in Inputs) (*Decision, error) {
	if !IsFeeReady(in) {
		return &Decision{}, nil
	}
	repo := g.repo.WithTx(tx)

	latest, err := repo.LatestForSession(ctx, in.Session.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && !ParametersChanged(ParametersFromCalculation(latest), ParametersFromSession(in.Session)) {
		return &Decision{Calculation: latest}, nil
	}

	calc, err := g.calculator.Compute(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, calc); err != nil {
		return nil, err
	}
	return &Decision{Calculation: calc, Created: true}, nil
}

// Latest returns the session's newest snapshot, failing when none exists.
func (g *Gate) Latest(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*models.FeeCalculation, error) {
	calc, err := g.repo.WithTx(tx).LatestForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if calc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fee calculation not found for checkout session")
	}
	return calc, nil
}

// AttachPurchase links the snapshot to the purchase it priced.
func (g *Gate) AttachPurchase(ctx context.Context, tx *gorm.DB, calc *models.FeeCalculation, purchaseID uuid.UUID) error {
	if calc == nil {
		return nil
	}
	if calc.PurchaseID != nil && *calc.PurchaseID == purchaseID {
		return nil
	}
	if err := g.repo.WithTx(tx).AttachPurchase(ctx, calc.ID, purchaseID); err != nil {
		return err
	}
	calc.PurchaseID = &purchaseID
	return nil
}

// RecordTaxTransaction stores the processor tax transaction committed for
// the snapshot's calculation.
func (g *Gate) RecordTaxTransaction(ctx context.Context, tx *gorm.DB, calc *models.FeeCalculation, transactionID string) error {
	if calc == nil || transactionID == "" {
		return nil
	}
	if err := g.repo.WithTx(tx).SetTaxTransaction(ctx, calc.ID, transactionID); err != nil {
		return err
	}
	calc.StripeTaxTransactionID = &transactionID
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func normalizeQuantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}
