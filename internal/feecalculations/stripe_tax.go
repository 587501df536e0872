package feecalculations

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	stripeclient "github.com/angelmondragon/checkout-bookkeeper/pkg/stripe"
)

type stripeTaxClient interface {
	CalculateTax(ctx context.Context, in stripeclient.TaxCalculationInput, livemode bool) (*stripe.TaxCalculation, error)
}

// StripeTaxCalculator prices tax with Stripe Tax.
type StripeTaxCalculator struct {
	client stripeTaxClient
}

func NewStripeTaxCalculator(client stripeTaxClient) *StripeTaxCalculator {
	return &StripeTaxCalculator{client: client}
}

func (s *StripeTaxCalculator) CalculateTax(ctx context.Context, in TaxInput) (TaxResult, error) {
	calc, err := s.client.CalculateTax(ctx, stripeclient.TaxCalculationInput{
		Currency:  in.Currency.String(),
		Amount:    in.Amount,
		Reference: in.Reference,
		Address:   in.Address,
	}, in.Livemode)
	if err != nil {
		return TaxResult{}, err
	}
	id := calc.ID
	return TaxResult{Amount: calc.TaxAmountExclusive, CalculationID: &id}, nil
}
