package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

// Customer is the billing identity a purchase is made for. A processor
// customer id binds to at most one customer.
type Customer struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID    uuid.UUID             `gorm:"column:organization_id;type:uuid;not null;index"`
	Email             string                `gorm:"column:email;not null"`
	Name              string                `gorm:"column:name;not null"`
	ExternalID        string                `gorm:"column:external_id;not null"`
	StripeCustomerID  *string               `gorm:"column:stripe_customer_id;unique"`
	BillingAddress    *types.BillingAddress `gorm:"column:billing_address;type:jsonb"`
	PricingModelID    *uuid.UUID            `gorm:"column:pricing_model_id;type:uuid"`
	InvoiceNumberBase string                `gorm:"column:invoice_number_base;not null"`
	Livemode          bool                  `gorm:"column:livemode;not null;default:false"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
