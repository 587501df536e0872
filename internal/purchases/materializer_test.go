package purchases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

func TestNewPurchaseInsert(t *testing.T) {
	unit := enums.IntervalUnitMonth
	count := 3
	trial := 14

	shape, err := NewPurchaseInsert(&models.Price{
		Type:            enums.PriceTypeSubscription,
		UnitPrice:       2500,
		IntervalUnit:    &unit,
		IntervalCount:   &count,
		TrialPeriodDays: &trial,
	})
	require.NoError(t, err)
	assert.Equal(t, SubscriptionInsert{IntervalUnit: unit, IntervalCount: 3, TrialPeriodDays: 14, PricePerBillingCycle: 2500}, shape)

	shape, err = NewPurchaseInsert(&models.Price{Type: enums.PriceTypeSubscription, UnitPrice: 900, IntervalUnit: &unit})
	require.NoError(t, err)
	assert.Equal(t, 0, shape.(SubscriptionInsert).TrialPeriodDays)
	assert.Equal(t, 1, shape.(SubscriptionInsert).IntervalCount)

	shape, err = NewPurchaseInsert(&models.Price{Type: enums.PriceTypeSinglePayment, UnitPrice: 1000})
	require.NoError(t, err)
	assert.Equal(t, SinglePaymentInsert{FirstInvoiceValue: 1000, TotalPurchaseValue: 1000}, shape)

	shape, err = NewPurchaseInsert(&models.Price{Type: enums.PriceTypeUsage})
	require.NoError(t, err)
	assert.Equal(t, UsageInsert{}, shape)

	_, err = NewPurchaseInsert(&models.Price{Type: enums.PriceType("metered_tiered")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestInsertShapes(t *testing.T) {
	var p models.Purchase
	SubscriptionInsert{IntervalUnit: enums.IntervalUnitYear, IntervalCount: 1, PricePerBillingCycle: 500}.apply(&p)
	require.NotNil(t, p.PricePerBillingCycle)
	assert.EqualValues(t, 500, *p.PricePerBillingCycle)
	assert.Zero(t, p.FirstInvoiceValue)
	assert.Nil(t, p.TotalPurchaseValue)

	SinglePaymentInsert{FirstInvoiceValue: 700, TotalPurchaseValue: 700}.apply(&p)
	assert.Nil(t, p.IntervalUnit)
	assert.Nil(t, p.PricePerBillingCycle)
	assert.EqualValues(t, 700, p.FirstInvoiceValue)
	require.NotNil(t, p.TotalPurchaseValue)
	assert.EqualValues(t, 700, *p.TotalPurchaseValue)
}

func TestFindOrCreateIsIdempotentPerSession(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	session := dbtest.SeedSession(t, db, catalog, func(s *models.CheckoutSession) {
		s.OutputName = dbtest.Ptr("Lifetime access")
	})

	m, err := NewMaterializer(NewRepository(db))
	require.NoError(t, err)

	in := Input{Session: session, Customer: customer, Price: catalog.Price, Product: catalog.Product}
	first, created, err := m.FindOrCreate(t.Context(), db, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Lifetime access", first.Name)
	assert.Equal(t, enums.PurchaseStatusOpen, first.Status)
	assert.Equal(t, 1, first.Quantity)

	var stored models.CheckoutSession
	require.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	require.NotNil(t, stored.PurchaseID)
	assert.Equal(t, first.ID, *stored.PurchaseID)

	second, created, err := m.FindOrCreate(t.Context(), db, Input{Session: &stored, Customer: customer, Price: catalog.Price})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Purchase{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFindOrCreateAdoptsPurchaseLinkedConcurrently(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	session := dbtest.SeedSession(t, db, catalog, nil)
	stale := *session

	m, err := NewMaterializer(NewRepository(db))
	require.NoError(t, err)

	first, created, err := m.FindOrCreate(t.Context(), db, Input{Session: session, Customer: customer, Price: catalog.Price})
	require.NoError(t, err)
	require.True(t, created)

	require.Nil(t, stale.PurchaseID)
	second, created, err := m.FindOrCreate(t.Context(), db, Input{Session: &stale, Customer: customer, Price: catalog.Price})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, stale.PurchaseID)
	assert.Equal(t, first.ID, *stale.PurchaseID)

	var count int64
	require.NoError(t, db.Model(&models.Purchase{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var stored models.CheckoutSession
	require.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	assert.Equal(t, first.ID, *stored.PurchaseID)
}

func TestTransitionStampsPurchaseDate(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	session := dbtest.SeedSession(t, db, catalog, nil)

	m, err := NewMaterializer(NewRepository(db))
	require.NoError(t, err)
	purchase, _, err := m.FindOrCreate(t.Context(), db, Input{Session: session, Customer: customer, Price: catalog.Price, Product: catalog.Product})
	require.NoError(t, err)

	require.NoError(t, m.Transition(t.Context(), db, purchase, enums.PurchaseStatusPending))
	assert.Nil(t, purchase.PurchaseDate)
	require.NoError(t, m.Transition(t.Context(), db, purchase, enums.PurchaseStatusPaid))
	require.NotNil(t, purchase.PurchaseDate)
	assert.WithinDuration(t, time.Now(), *purchase.PurchaseDate, time.Minute)

	err = m.Transition(t.Context(), db, purchase, enums.PurchaseStatusFailed)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var stored models.Purchase
	require.NoError(t, db.First(&stored, "id = ?", purchase.ID).Error)
	assert.Equal(t, enums.PurchaseStatusPaid, stored.Status)
	assert.NotNil(t, stored.PurchaseDate)
}
