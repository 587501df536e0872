package paymentmethods

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

func cardMethod(id string) *stripe.PaymentMethod {
	return &stripe.PaymentMethod{
		ID:   id,
		Type: stripe.PaymentMethodTypeCard,
		Card: &stripe.PaymentMethodCard{Brand: "visa", Last4: "4242"},
		BillingDetails: &stripe.PaymentMethodBillingDetails{
			Name:  "Buyer",
			Email: "buyer@example.com",
		},
	}
}

func seedSubscription(t *testing.T, db *gorm.DB, customer *models.Customer, priceID uuid.UUID, status enums.SubscriptionStatus) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	return dbtest.Insert(t, db, &models.Subscription{
		OrganizationID:            customer.OrganizationID,
		CustomerID:                customer.ID,
		PriceID:                   priceID,
		Name:                      "Pro Plan",
		Status:                    status,
		IntervalUnit:              enums.IntervalUnitMonth,
		IntervalCount:             1,
		CurrentBillingPeriodStart: now,
		CurrentBillingPeriodEnd:   now.AddDate(0, 1, 0),
		BillingCycleAnchorDate:    now,
	})
}

func TestStoreDefaultUpsertsAndSwitchesDefault(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}

	first, err := svc.StoreDefault(t.Context(), db, customer, cardMethod("pm_1"))
	if err != nil {
		t.Fatalf("store first: %v", err)
	}
	if !first.Default || first.CardLast4 == nil || *first.CardLast4 != "4242" {
		t.Fatalf("unexpected payment method %+v", first)
	}
	if first.Type != enums.PaymentMethodTypeCard {
		t.Fatalf("expected card type, got %s", first.Type)
	}

	second, err := svc.StoreDefault(t.Context(), db, customer, cardMethod("pm_2"))
	if err != nil {
		t.Fatalf("store second: %v", err)
	}
	replay, err := svc.StoreDefault(t.Context(), db, customer, cardMethod("pm_2"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.ID != second.ID {
		t.Fatalf("replay should reuse the stored row")
	}

	var methods []models.PaymentMethod
	if err := db.Order("created_at ASC").Find(&methods, "customer_id = ?", customer.ID).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("expected 2 payment methods, got %d", len(methods))
	}
	for _, m := range methods {
		if (m.ID == second.ID) != m.Default {
			t.Fatalf("only the latest method should be default: %+v", m)
		}
	}
}

func TestStoreDefaultRejectsForeignPaymentMethod(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, nil)
	owner := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	other := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	svc, _ := NewService(NewRepository(db))

	if _, err := svc.StoreDefault(t.Context(), db, owner, cardMethod("pm_shared")); err != nil {
		t.Fatalf("store: %v", err)
	}
	_, err := svc.StoreDefault(t.Context(), db, other, cardMethod("pm_shared"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPropagateTargetsOrAllSubscriptions(t *testing.T) {
	db := dbtest.Open(t)
	catalog := dbtest.SeedCatalog(t, db, dbtest.SubscriptionPrice(0))
	customer := dbtest.SeedCustomer(t, db, catalog.Organization.ID, nil)
	subA := seedSubscription(t, db, customer, catalog.Price.ID, enums.SubscriptionStatusActive)
	subB := seedSubscription(t, db, customer, catalog.Price.ID, enums.SubscriptionStatusActive)
	canceled := seedSubscription(t, db, customer, catalog.Price.ID, enums.SubscriptionStatusCanceled)
	svc, _ := NewService(NewRepository(db))

	method, err := svc.StoreDefault(t.Context(), db, customer, cardMethod("pm_1"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if n, err := svc.Propagate(t.Context(), db, method, nil, false); err != nil || n != 0 {
		t.Fatalf("expected no-op without flags, got %d %v", n, err)
	}
	if n, err := svc.Propagate(t.Context(), db, method, &subA.ID, true); err != nil || n != 1 {
		t.Fatalf("expected only the target updated, got %d %v", n, err)
	}
	if n, err := svc.Propagate(t.Context(), db, method, nil, true); err != nil || n != 2 {
		t.Fatalf("expected both live subscriptions updated, got %d %v", n, err)
	}

	var stored models.Subscription
	if err := db.First(&stored, "id = ?", subB.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.DefaultPaymentMethodID == nil || *stored.DefaultPaymentMethodID != method.ID {
		t.Fatalf("expected payment method on subscription")
	}
	if err := db.First(&stored, "id = ?", canceled.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.DefaultPaymentMethodID != nil {
		t.Fatalf("canceled subscriptions are left alone")
	}

	missing := uuid.New()
	if _, err := svc.Propagate(t.Context(), db, method, &missing, false); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown target, got %v", err)
	}
}
