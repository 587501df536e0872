package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox/payloads"
)

type stubProcessor struct {
	calls int
	id    string
}

func (s *stubProcessor) CreateCustomer(_ context.Context, email, name string, livemode bool) (*stripe.Customer, error) {
	s.calls++
	return &stripe.Customer{ID: s.id, Email: email, Name: name, Livemode: livemode}, nil
}

func newResolver(t *testing.T, processor *stubProcessor) *Resolver {
	t.Helper()
	db := dbtest.Open(t)
	resolver, err := NewResolver(NewRepository(db), processor)
	require.NoError(t, err)
	return resolver
}

func TestResolveConflictOnDifferentProcessorCustomer(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, dbtest.Ptr("cus_A"))
	session := dbtest.SeedSession(t, db, catalog, func(s *models.CheckoutSession) {
		s.CustomerID = &customer.ID
	})

	resolver, err := NewResolver(NewRepository(db), &stubProcessor{id: "cus_new"})
	require.NoError(t, err)

	_, err = resolver.Resolve(t.Context(), db, session, "cus_B")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, "id = ?", customer.ID).Error)
	require.NotNil(t, reloaded.StripeCustomerID)
	assert.Equal(t, "cus_A", *reloaded.StripeCustomerID)
}

func TestResolvePrefersPurchaseCustomer(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	buyer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, dbtest.Ptr("cus_A"))
	other := dbtest.SeedCustomer(t, db, catalog.Organization.ID, dbtest.Ptr("cus_other"))
	purchase := dbtest.Insert(t, db, &models.Purchase{
		OrganizationID: catalog.Organization.ID,
		CustomerID:     buyer.ID,
		PriceID:        catalog.Price.ID,
		Name:           "Pro Plan",
		Status:         enums.PurchaseStatusOpen,
		PriceType:      enums.PriceTypeSinglePayment,
		Quantity:       1,
	})
	session := dbtest.SeedSession(t, db, catalog, func(s *models.CheckoutSession) {
		s.PurchaseID = &purchase.ID
		s.CustomerID = &other.ID
	})

	resolver, err := NewResolver(NewRepository(db), &stubProcessor{id: "cus_new"})
	require.NoError(t, err)

	result, err := resolver.Resolve(t.Context(), db, session, "cus_A")
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, result.Customer.ID)
	assert.False(t, result.Created)
	assert.True(t, result.Effects.IsEmpty())
}

func TestResolveBindsUnboundSessionCustomer(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	session := dbtest.SeedSession(t, db, catalog, func(s *models.CheckoutSession) {
		s.CustomerID = &customer.ID
	})

	resolver, err := NewResolver(NewRepository(db), &stubProcessor{id: "cus_new"})
	require.NoError(t, err)

	result, err := resolver.Resolve(t.Context(), db, session, "cus_fresh")
	require.NoError(t, err)
	require.NotNil(t, result.Customer.StripeCustomerID)
	assert.Equal(t, "cus_fresh", *result.Customer.StripeCustomerID)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, "id = ?", customer.ID).Error)
	assert.Equal(t, "cus_fresh", *reloaded.StripeCustomerID)
}

func TestResolveFindsCustomerByProcessorID(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	bound := dbtest.SeedCustomer(t, db, catalog.Organization.ID, dbtest.Ptr("cus_bound"))
	session := dbtest.SeedSession(t, db, catalog, nil)

	processor := &stubProcessor{id: "cus_new"}
	resolver, err := NewResolver(NewRepository(db), processor)
	require.NoError(t, err)

	result, err := resolver.Resolve(t.Context(), db, session, "cus_bound")
	require.NoError(t, err)
	assert.Equal(t, bound.ID, result.Customer.ID)
	assert.Zero(t, processor.calls)
}

func TestResolveCreatesCustomerWithProcessorRecord(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	session := dbtest.SeedSession(t, db, catalog, func(s *models.CheckoutSession) {
		s.CustomerName = nil
	})

	processor := &stubProcessor{id: "cus_created"}
	resolver, err := NewResolver(NewRepository(db), processor)
	require.NoError(t, err)

	result, err := resolver.Resolve(t.Context(), db, session, "")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 1, processor.calls)
	assert.Equal(t, "buyer@example.com", result.Customer.Name)
	require.NotNil(t, result.Customer.StripeCustomerID)
	assert.Equal(t, "cus_created", *result.Customer.StripeCustomerID)
	assert.NotEmpty(t, result.Customer.InvoiceNumberBase)

	require.Len(t, result.Effects.Events, 1)
	event := result.Effects.Events[0]
	assert.Equal(t, enums.EventCustomerCreated, event.EventType)
	assert.True(t, event.Unique)
	payload, ok := event.Data.(payloads.CustomerCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, result.Customer.ID, payload.CustomerID)
}

func TestResolveRequestsFreeDefaultPlan(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	model := dbtest.Insert(t, db, &models.PricingModel{
		OrganizationID: catalog.Organization.ID,
		Name:           "Default",
		IsDefault:      true,
	})
	free := dbtest.Insert(t, db, &models.Price{
		ProductID:      catalog.Product.ID,
		PricingModelID: &model.ID,
		Type:           enums.PriceTypeSubscription,
		UnitPrice:      0,
		Currency:       enums.CurrencyUSD,
		IsDefault:      true,
		Active:         true,
	})
	session := dbtest.SeedSession(t, db, catalog, nil)

	resolver, err := NewResolver(NewRepository(db), &stubProcessor{id: "cus_created"})
	require.NoError(t, err)

	result, err := resolver.Resolve(t.Context(), db, session, "cus_supplied")
	require.NoError(t, err)
	require.NotNil(t, result.Customer.PricingModelID)
	assert.Equal(t, model.ID, *result.Customer.PricingModelID)

	require.Len(t, result.Effects.Events, 2)
	assert.Equal(t, enums.EventCustomerDefaultPlanRequested, result.Effects.Events[1].EventType)
	payload, ok := result.Effects.Events[1].Data.(payloads.CustomerDefaultPlanRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, free.ID, payload.PriceID)
}

func TestResolveRequiresEmailForNewCustomer(t *testing.T) {
	resolver := newResolver(t, &stubProcessor{id: "cus_new"})
	session := &models.CheckoutSession{}

	_, err := resolver.Resolve(context.Background(), nil, session, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "no customer email")
}
