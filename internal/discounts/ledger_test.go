package discounts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

type fixture struct {
	db       *gorm.DB
	ledger   *Ledger
	catalog  dbtest.Catalog
	customer *models.Customer
	discount *models.Discount
}

func newFixture(t *testing.T, duration enums.DiscountDuration, payments *int) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	discount := dbtest.Insert(t, db, &models.Discount{
		OrganizationID:   catalog.Organization.ID,
		Name:             "Launch",
		Code:             "LAUNCH",
		AmountType:       enums.DiscountAmountTypePercent,
		Amount:           20,
		Duration:         duration,
		NumberOfPayments: payments,
		Active:           true,
	})
	ledger, err := NewLedger(NewRepository(db))
	require.NoError(t, err)
	return &fixture{db: db, ledger: ledger, catalog: catalog, customer: customer, discount: discount}
}

func (f *fixture) purchase(t *testing.T) *models.Purchase {
	t.Helper()
	return dbtest.Insert(t, f.db, &models.Purchase{
		OrganizationID: f.catalog.Organization.ID,
		CustomerID:     f.customer.ID,
		PriceID:        f.catalog.Price.ID,
		Name:           "Pro Plan",
		Status:         enums.PurchaseStatusOpen,
		PriceType:      enums.PriceTypeSinglePayment,
		Quantity:       1,
	})
}

func (f *fixture) invoice(t *testing.T, purchase *models.Purchase) *models.Invoice {
	t.Helper()
	return dbtest.Insert(t, f.db, &models.Invoice{
		OrganizationID: f.catalog.Organization.ID,
		CustomerID:     f.customer.ID,
		PurchaseID:     &purchase.ID,
		InvoiceNumber:  "INV-" + uuid.NewString(),
		Type:           enums.InvoiceTypePurchase,
		Status:         enums.InvoiceStatusDraft,
		Currency:       enums.CurrencyUSD,
		InvoiceDate:    time.Now().UTC(),
	})
}

func (f *fixture) redeem(t *testing.T, purchase *models.Purchase, subscriptionID *uuid.UUID) *models.DiscountRedemption {
	t.Helper()
	calc := &models.FeeCalculation{PurchaseID: &purchase.ID, DiscountID: &f.discount.ID}
	redemption, err := f.ledger.RedeemFeeCalculationDiscount(t.Context(), f.db, calc, subscriptionID)
	require.NoError(t, err)
	require.NotNil(t, redemption)
	return redemption
}

func TestRedeemFeeCalculationDiscountIsIdempotent(t *testing.T) {
	f := newFixture(t, enums.DiscountDurationForever, nil)
	purchase := f.purchase(t)

	first := f.redeem(t, purchase, nil)
	second := f.redeem(t, purchase, nil)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "LAUNCH", first.DiscountCode)

	var count int64
	require.NoError(t, f.db.Model(&models.DiscountRedemption{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	none, err := f.ledger.RedeemFeeCalculationDiscount(t.Context(), f.db, &models.FeeCalculation{PurchaseID: &purchase.ID}, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestInsertRedemptionReportsConflict(t *testing.T) {
	f := newFixture(t, enums.DiscountDurationOnce, nil)
	purchase := f.purchase(t)
	f.redeem(t, purchase, nil)

	inserted, err := NewRepository(f.db).InsertRedemption(t.Context(), &models.DiscountRedemption{
		DiscountID:         f.discount.ID,
		PurchaseID:         purchase.ID,
		DiscountName:       "dup",
		DiscountCode:       "dup",
		DiscountAmountType: enums.DiscountAmountTypeFixed,
		Duration:           enums.DiscountDurationOnce,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestNumberOfPaymentsExhaustion(t *testing.T) {
	f := newFixture(t, enums.DiscountDurationNumberOfPayments, dbtest.Ptr(2))
	purchase := f.purchase(t)
	invoice := f.invoice(t, purchase)
	redemption := f.redeem(t, purchase, nil)
	assert.False(t, redemption.FullyRedeemed)

	pay := func() {
		payment := dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, nil, 500, enums.PaymentStatusSucceeded)
		var err error
		redemption, err = f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, payment)
		require.NoError(t, err)
	}

	pay()
	assert.False(t, redemption.FullyRedeemed)
	pay()
	assert.True(t, redemption.FullyRedeemed)
	pay()
	assert.True(t, redemption.FullyRedeemed)

	var stored models.DiscountRedemption
	require.NoError(t, f.db.First(&stored, "id = ?", redemption.ID).Error)
	assert.True(t, stored.FullyRedeemed)
}

func TestNullSubscriptionScopesByPurchaseOnly(t *testing.T) {
	f := newFixture(t, enums.DiscountDurationNumberOfPayments, dbtest.Ptr(2))
	own := f.purchase(t)
	other := f.purchase(t)
	ownInvoice := f.invoice(t, own)
	otherInvoice := f.invoice(t, other)
	redemption := f.redeem(t, own, nil)

	for range 3 {
		dbtest.SeedPayment(t, f.db, otherInvoice, &other.ID, nil, 500, enums.PaymentStatusSucceeded)
	}
	payment := dbtest.SeedPayment(t, f.db, ownInvoice, &own.ID, nil, 500, enums.PaymentStatusSucceeded)

	redemption, err := f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, payment)
	require.NoError(t, err)
	assert.False(t, redemption.FullyRedeemed)
}

func TestSubscriptionScopeIgnoresSiblingSubscriptions(t *testing.T) {
	f := newFixture(t, enums.DiscountDurationNumberOfPayments, dbtest.Ptr(2))
	purchase := f.purchase(t)
	invoice := f.invoice(t, purchase)
	subscriptionID := uuid.New()
	siblingID := uuid.New()
	redemption := f.redeem(t, purchase, &subscriptionID)

	dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, &siblingID, 500, enums.PaymentStatusSucceeded)
	dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, &siblingID, 500, enums.PaymentStatusSucceeded)
	payment := dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, &subscriptionID, 500, enums.PaymentStatusSucceeded)

	redemption, err := f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, payment)
	require.NoError(t, err)
	assert.False(t, redemption.FullyRedeemed)

	sibling := dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, &siblingID, 500, enums.PaymentStatusSucceeded)
	redemption, err = f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, sibling)
	require.NoError(t, err)
	assert.False(t, redemption.FullyRedeemed)
}

func TestDurationPolicies(t *testing.T) {
	t.Run("once", func(t *testing.T) {
		f := newFixture(t, enums.DiscountDurationOnce, nil)
		purchase := f.purchase(t)
		invoice := f.invoice(t, purchase)
		redemption := f.redeem(t, purchase, nil)

		failed := dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, nil, 500, enums.PaymentStatusFailed)
		redemption, err := f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, failed)
		require.NoError(t, err)
		assert.False(t, redemption.FullyRedeemed)

		paid := dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, nil, 500, enums.PaymentStatusSucceeded)
		redemption, err = f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, paid)
		require.NoError(t, err)
		assert.True(t, redemption.FullyRedeemed)
	})

	t.Run("forever", func(t *testing.T) {
		f := newFixture(t, enums.DiscountDurationForever, nil)
		purchase := f.purchase(t)
		invoice := f.invoice(t, purchase)
		redemption := f.redeem(t, purchase, nil)

		for range 5 {
			payment := dbtest.SeedPayment(t, f.db, invoice, &purchase.ID, nil, 500, enums.PaymentStatusSucceeded)
			var err error
			redemption, err = f.ledger.IncrementPaymentCount(t.Context(), f.db, redemption, payment)
			require.NoError(t, err)
		}
		assert.False(t, redemption.FullyRedeemed)
	})
}
