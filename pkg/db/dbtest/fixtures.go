package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

// Insert creates rec and fails the test on error.
func Insert[T any](t testing.TB, db *gorm.DB, rec *T) *T {
	t.Helper()
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert %T: %v", rec, err)
	}
	return rec
}

// Catalog is an organization with one product and price.
type Catalog struct {
	Organization *models.Organization
	Product      *models.Product
	Price        *models.Price
}

// SeedCatalog inserts an organization selling one price. mutate may adjust the
// price before insert.
func SeedCatalog(t testing.TB, db *gorm.DB, mutate func(*models.Price)) Catalog {
	t.Helper()
	org := Insert(t, db, &models.Organization{
		Name:            "Acme",
		DefaultCurrency: enums.CurrencyUSD,
		FeePercentage:   decimal.NewFromFloat(2.5),
	})
	product := Insert(t, db, &models.Product{
		OrganizationID: org.ID,
		Name:           "Pro Plan",
		Active:         true,
	})
	price := &models.Price{
		ProductID: product.ID,
		Type:      enums.PriceTypeSinglePayment,
		UnitPrice: 1000,
		Currency:  enums.CurrencyUSD,
		Active:    true,
	}
	if mutate != nil {
		mutate(price)
	}
	Insert(t, db, price)
	return Catalog{Organization: org, Product: product, Price: price}
}

// SubscriptionPrice configures a monthly subscription price.
func SubscriptionPrice(trialDays int) func(*models.Price) {
	return func(p *models.Price) {
		unit := enums.IntervalUnitMonth
		count := 1
		p.Type = enums.PriceTypeSubscription
		p.IntervalUnit = &unit
		p.IntervalCount = &count
		if trialDays > 0 {
			p.TrialPeriodDays = &trialDays
		}
	}
}

func SeedCustomer(t testing.TB, db *gorm.DB, orgID uuid.UUID, stripeCustomerID *string) *models.Customer {
	t.Helper()
	return Insert(t, db, &models.Customer{
		OrganizationID:    orgID,
		Email:             "buyer@example.com",
		Name:              "Buyer",
		ExternalID:        uuid.NewString(),
		StripeCustomerID:  stripeCustomerID,
		InvoiceNumberBase: "INV" + uuid.NewString()[:6],
	})
}

// SeedSession inserts an open product session for the catalog's price.
func SeedSession(t testing.TB, db *gorm.DB, catalog Catalog, mutate func(*models.CheckoutSession)) *models.CheckoutSession {
	t.Helper()
	email := "buyer@example.com"
	session := &models.CheckoutSession{
		OrganizationID: catalog.Organization.ID,
		Type:           enums.CheckoutSessionTypeProduct,
		Status:         enums.CheckoutSessionStatusOpen,
		PriceID:        &catalog.Price.ID,
		CustomerEmail:  &email,
		BillingAddress: &types.BillingAddress{Country: "US", State: "CA", PostalCode: "94107"},
		Quantity:       1,
	}
	if mutate != nil {
		mutate(session)
	}
	return Insert(t, db, session)
}

// SeedPayment inserts a payment against invoiceID.
func SeedPayment(t testing.TB, db *gorm.DB, invoice *models.Invoice, purchaseID, subscriptionID *uuid.UUID, amount int64, status enums.PaymentStatus) *models.Payment {
	t.Helper()
	return Insert(t, db, &models.Payment{
		OrganizationID: invoice.OrganizationID,
		CustomerID:     invoice.CustomerID,
		InvoiceID:      invoice.ID,
		PurchaseID:     purchaseID,
		SubscriptionID: subscriptionID,
		StripeChargeID: "ch_" + uuid.NewString(),
		Amount:         amount,
		Currency:       invoice.Currency,
		Status:         status,
		ChargeDate:     time.Now().UTC(),
	})
}

func Ptr[T any](v T) *T {
	return &v
}
