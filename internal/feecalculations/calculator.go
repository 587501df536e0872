package feecalculations

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// TaxInput is the taxable amount and destination for one snapshot.
type TaxInput struct {
	Currency  enums.Currency
	Amount    int64
	Reference string
	Address   types.BillingAddress
	Livemode  bool
}

type TaxResult struct {
	Amount        int64
	CalculationID *string
}

// TaxCalculator computes tax for a pretax amount.
type TaxCalculator interface {
	CalculateTax(ctx context.Context, in TaxInput) (TaxResult, error)
}

// Calculator builds unsaved fee snapshots.
type Calculator struct {
	tax TaxCalculator
}

// NewCalculator returns a calculator. A nil tax calculator charges no tax.
func NewCalculator(tax TaxCalculator) *Calculator {
	return &Calculator{tax: tax}
}

func (c *Calculator) Compute(ctx context.Context, in Inputs) (*models.FeeCalculation, error) {
	if !IsFeeReady(in) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session is not ready for fee calculation")
	}
	session := in.Session
	params := ParametersFromSession(session)

	base := in.Price.UnitPrice * int64(params.Quantity)
	discountAmount := DiscountAmount(in.Discount, base)
	pretax := base - discountAmount

	calc := &models.FeeCalculation{
		OrganizationID:        session.OrganizationID,
		CheckoutSessionID:     &session.ID,
		PriceID:               params.PriceID,
		DiscountID:            params.DiscountID,
		Quantity:              params.Quantity,
		Currency:              in.Price.Currency,
		BillingAddressCountry: params.Country,
		BillingAddressRegion:  params.Region,
		BaseAmount:            base,
		DiscountAmountFixed:   discountAmount,
		PretaxTotal:           &pretax,
		Livemode:              session.Livemode,
	}

	if in.Organization != nil {
		calc.ApplicationFeeAmount = ApplicationFee(in.Organization.FeePercentage, pretax)
	}

	if c.tax != nil && in.Organization != nil && in.Organization.CollectsTax && pretax > 0 {
		result, err := c.tax.CalculateTax(ctx, TaxInput{
			Currency:  in.Price.Currency,
			Amount:    pretax,
			Reference: session.ID.String(),
			Address:   *session.BillingAddress,
			Livemode:  session.Livemode,
		})
		if err != nil {
			return nil, err
		}
		calc.TaxAmountFixed = result.Amount
		calc.StripeTaxCalculationID = result.CalculationID
	}

	return calc, nil
}

// DiscountAmount is the reduction a discount grants on base, never more than
// base. Percentages round half-up to the minor unit.
func DiscountAmount(discount *models.Discount, base int64) int64 {
	if discount == nil || base <= 0 {
		return 0
	}
	var amount int64
	switch discount.AmountType {
	case enums.DiscountAmountTypePercent:
		amount = decimal.NewFromInt(base).
			Mul(decimal.NewFromInt(discount.Amount)).
			Div(hundred).
			Round(0).
			IntPart()
	default:
		amount = discount.Amount
	}
	if amount < 0 {
		return 0
	}
	if amount > base {
		return base
	}
	return amount
}

// ApplicationFee is the platform's cut of the pretax amount.
func ApplicationFee(percentage decimal.Decimal, pretax int64) int64 {
	if pretax <= 0 || !percentage.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(pretax).Mul(percentage).Div(hundred).Round(0).IntPart()
}
