package feecalculations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

type stubTax struct {
	calls  int
	amount int64
}

func (s *stubTax) CalculateTax(context.Context, TaxInput) (TaxResult, error) {
	s.calls++
	id := "taxcalc_123"
	return TaxResult{Amount: s.amount, CalculationID: &id}, nil
}

func TestParametersChanged(t *testing.T) {
	priceID := uuid.New()
	discountID := uuid.New()
	base := Parameters{PriceID: priceID, Country: "US", Region: "CA", Quantity: 1}

	assert.False(t, ParametersChanged(base, base))

	withDiscount := base
	withDiscount.DiscountID = &discountID
	assert.True(t, ParametersChanged(base, withDiscount))

	sameDiscount := base
	otherPtr := discountID
	sameDiscount.DiscountID = &otherPtr
	assert.False(t, ParametersChanged(withDiscount, sameDiscount))

	moved := base
	moved.Region = "NY"
	assert.True(t, ParametersChanged(base, moved))

	more := base
	more.Quantity = 2
	assert.True(t, ParametersChanged(base, more))
}

func TestIsFeeReady(t *testing.T) {
	priceID := uuid.New()
	discountID := uuid.New()
	session := &models.CheckoutSession{ID: uuid.New(), PriceID: &priceID}
	price := &models.Price{ID: priceID}

	assert.False(t, IsFeeReady(Inputs{Session: &models.CheckoutSession{}}))
	assert.True(t, IsFeeReady(Inputs{Session: session, Price: price}))

	withDiscount := *session
	withDiscount.DiscountID = &discountID
	assert.False(t, IsFeeReady(Inputs{Session: &withDiscount, Price: price}))
	assert.True(t, IsFeeReady(Inputs{Session: &withDiscount, Price: price, Discount: &models.Discount{ID: discountID}}))

	taxOrg := &models.Organization{CollectsTax: true}
	assert.False(t, IsFeeReady(Inputs{Session: session, Price: price, Organization: taxOrg}))
	withAddress := *session
	withAddress.BillingAddress = &types.BillingAddress{Country: "us"}
	assert.True(t, IsFeeReady(Inputs{Session: &withAddress, Price: price, Organization: taxOrg}))
}

func TestDiscountAmountAndApplicationFee(t *testing.T) {
	assert.Equal(t, int64(0), DiscountAmount(nil, 1000))
	assert.Equal(t, int64(300), DiscountAmount(&models.Discount{AmountType: enums.DiscountAmountTypeFixed, Amount: 300}, 1000))
	assert.Equal(t, int64(1000), DiscountAmount(&models.Discount{AmountType: enums.DiscountAmountTypeFixed, Amount: 5000}, 1000))
	assert.Equal(t, int64(333), DiscountAmount(&models.Discount{AmountType: enums.DiscountAmountTypePercent, Amount: 33}, 1010))
	assert.Equal(t, int64(1000), DiscountAmount(&models.Discount{AmountType: enums.DiscountAmountTypePercent, Amount: 100}, 1000))

	assert.Equal(t, int64(25), ApplicationFee(decimal.NewFromFloat(2.5), 1000))
	assert.Equal(t, int64(0), ApplicationFee(decimal.Zero, 1000))
	assert.Equal(t, int64(0), ApplicationFee(decimal.NewFromInt(5), 0))
}

func TestCalculatorCompute(t *testing.T) {
	priceID := uuid.New()
	session := &models.CheckoutSession{
		ID:             uuid.New(),
		PriceID:        &priceID,
		Quantity:       2,
		BillingAddress: &types.BillingAddress{Country: "US", State: "ny"},
	}
	org := &models.Organization{FeePercentage: decimal.NewFromInt(10), CollectsTax: true}
	tax := &stubTax{amount: 160}

	calc, err := NewCalculator(tax).Compute(context.Background(), Inputs{
		Session:      session,
		Organization: org,
		Price:        &models.Price{ID: priceID, UnitPrice: 1000, Currency: enums.CurrencyUSD},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2000), calc.BaseAmount)
	require.NotNil(t, calc.PretaxTotal)
	assert.Equal(t, int64(2000), *calc.PretaxTotal)
	assert.Equal(t, int64(160), calc.TaxAmountFixed)
	assert.Equal(t, int64(200), calc.ApplicationFeeAmount)
	assert.Equal(t, "NY", calc.BillingAddressRegion)
	total, ok := calc.TotalDue()
	assert.True(t, ok)
	assert.Equal(t, int64(2160), total)
	assert.Equal(t, 1, tax.calls)
}

func TestGateRecomputesOnlyWhenParametersChange(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	session := dbtest.SeedSession(t, db, catalog, nil)
	ctx := context.Background()

	gate, err := NewGate(NewRepository(db), NewCalculator(nil))
	require.NoError(t, err)

	inputs := Inputs{Session: session, Organization: catalog.Organization, Price: catalog.Price}
	first, err := gate.Resolve(ctx, db, inputs)
	require.NoError(t, err)
	require.NotNil(t, first.Calculation)
	assert.True(t, first.Created)

	name := "Renamed Buyer"
	session.CustomerName = &name
	same, err := gate.Resolve(ctx, db, inputs)
	require.NoError(t, err)
	assert.False(t, same.Created)
	assert.Equal(t, first.Calculation.ID, same.Calculation.ID)

	session.BillingAddress = &types.BillingAddress{Country: "CA", State: "ON"}
	moved, err := gate.Resolve(ctx, db, inputs)
	require.NoError(t, err)
	assert.True(t, moved.Created)
	assert.NotEqual(t, first.Calculation.ID, moved.Calculation.ID)

	latest, err := gate.Latest(ctx, db, session.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.Calculation.ID, latest.ID)
}

func TestGateLatestNotFound(t *testing.T) {
	db := dbtest.Open(t)
	gate, err := NewGate(NewRepository(db), NewCalculator(nil))
	require.NoError(t, err)

	_, err = gate.Latest(context.Background(), db, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGateSkipsSessionsThatAreNotReady(t *testing.T) {
	db := dbtest.Open(t)
	gate, err := NewGate(NewRepository(db), NewCalculator(nil))
	require.NoError(t, err)

	decision, err := gate.Resolve(context.Background(), db, Inputs{Session: &models.CheckoutSession{ID: uuid.New()}})
	require.NoError(t, err)
	assert.Nil(t, decision.Calculation)
}
