package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// PaymentMethod mirrors Stripe payment methods per customer.
type PaymentMethod struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID            uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	StripePaymentMethodID string                  `gorm:"column:stripe_payment_method_id;not null;unique"`
	Type                  enums.PaymentMethodType `gorm:"column:type;type:payment_method_type;not null;default:'card'"`
	Default               bool                    `gorm:"column:is_default;not null;default:false"`
	CardBrand             *string                 `gorm:"column:card_brand"`
	CardLast4             *string                 `gorm:"column:card_last4"`
	BillingDetails        json.RawMessage         `gorm:"column:billing_details;type:jsonb"`
	Livemode              bool                    `gorm:"column:livemode;not null;default:false"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentMethod) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
