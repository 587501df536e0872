package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

// CheckoutSession is one attempt to pay for, or set up payment for, a price
// or an invoice. Once Status leaves open the row is immutable.
type CheckoutSession struct {
	ID                               uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID                   uuid.UUID                   `gorm:"column:organization_id;type:uuid;not null;index"`
	Type                             enums.CheckoutSessionType   `gorm:"column:type;type:checkout_session_type;not null"`
	Status                           enums.CheckoutSessionStatus `gorm:"column:status;type:checkout_session_status;not null;default:'open'"`
	PriceID                          *uuid.UUID                  `gorm:"column:price_id;type:uuid"`
	PurchaseID                       *uuid.UUID                  `gorm:"column:purchase_id;type:uuid"`
	CustomerID                       *uuid.UUID                  `gorm:"column:customer_id;type:uuid"`
	InvoiceID                        *uuid.UUID                  `gorm:"column:invoice_id;type:uuid"`
	DiscountID                       *uuid.UUID                  `gorm:"column:discount_id;type:uuid"`
	CustomerEmail                    *string                     `gorm:"column:customer_email"`
	CustomerName                     *string                     `gorm:"column:customer_name"`
	BillingAddress                   *types.BillingAddress       `gorm:"column:billing_address;type:jsonb"`
	StripePaymentIntentID            *string                     `gorm:"column:stripe_payment_intent_id"`
	StripeSetupIntentID              *string                     `gorm:"column:stripe_setup_intent_id"`
	Quantity                         int                         `gorm:"column:quantity;not null;default:1"`
	Livemode                         bool                        `gorm:"column:livemode;not null;default:false"`
	OutputName                       *string                     `gorm:"column:output_name"`
	OutputMetadata                   json.RawMessage             `gorm:"column:output_metadata;type:jsonb"`
	PreserveBillingCycleAnchor       bool                        `gorm:"column:preserve_billing_cycle_anchor;not null;default:false"`
	TargetSubscriptionID             *uuid.UUID                  `gorm:"column:target_subscription_id;type:uuid"`
	AutomaticallyUpdateSubscriptions bool                        `gorm:"column:automatically_update_subscriptions;not null;default:false"`
	ExpiresAt                        *time.Time                  `gorm:"column:expires_at"`
	CreatedAt                        time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CheckoutSession) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
