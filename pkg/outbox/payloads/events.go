package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// CustomerCreatedEvent is emitted when a checkout creates a new customer.
type CustomerCreatedEvent struct {
	CustomerID       uuid.UUID `json:"customerId"`
	OrganizationID   uuid.UUID `json:"organizationId"`
	Email            string    `json:"email"`
	StripeCustomerID *string   `json:"stripeCustomerId,omitempty"`
}

// CustomerDefaultPlanRequestedEvent asks the subscription side to start the
// pricing model's free default plan for a new customer.
type CustomerDefaultPlanRequestedEvent struct {
	CustomerID     uuid.UUID `json:"customerId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	PricingModelID uuid.UUID `json:"pricingModelId"`
	PriceID        uuid.UUID `json:"priceId"`
}

type CheckoutSessionCompletedEvent struct {
	CheckoutSessionID uuid.UUID                   `json:"checkoutSessionId"`
	Type              enums.CheckoutSessionType   `json:"type"`
	Status            enums.CheckoutSessionStatus `json:"status"`
	CustomerID        *uuid.UUID                  `json:"customerId,omitempty"`
	PurchaseID        *uuid.UUID                  `json:"purchaseId,omitempty"`
	InvoiceID         *uuid.UUID                  `json:"invoiceId,omitempty"`
}

type PurchaseCompletedEvent struct {
	PurchaseID uuid.UUID            `json:"purchaseId"`
	CustomerID uuid.UUID            `json:"customerId"`
	PriceID    uuid.UUID            `json:"priceId"`
	Status     enums.PurchaseStatus `json:"status"`
}

type SubscriptionCreatedEvent struct {
	SubscriptionID uuid.UUID                `json:"subscriptionId"`
	CustomerID     uuid.UUID                `json:"customerId"`
	PriceID        uuid.UUID                `json:"priceId"`
	Status         enums.SubscriptionStatus `json:"status"`
	TrialEnd       *time.Time               `json:"trialEnd,omitempty"`
}

// PaymentStatusEvent is shared by payment_succeeded and payment_failed.
type PaymentStatusEvent struct {
	PaymentID      uuid.UUID           `json:"paymentId"`
	InvoiceID      uuid.UUID           `json:"invoiceId"`
	PurchaseID     *uuid.UUID          `json:"purchaseId,omitempty"`
	StripeChargeID string              `json:"stripeChargeId"`
	Amount         int64               `json:"amount"`
	Currency       enums.Currency      `json:"currency"`
	Status         enums.PaymentStatus `json:"status"`
}
