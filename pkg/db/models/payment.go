package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Payment records one processor charge against an invoice.
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID        uuid.UUID           `gorm:"column:organization_id;type:uuid;not null;index"`
	CustomerID            uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	InvoiceID             uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	PurchaseID            *uuid.UUID          `gorm:"column:purchase_id;type:uuid;index"`
	SubscriptionID        *uuid.UUID          `gorm:"column:subscription_id;type:uuid;index"`
	StripeChargeID        string              `gorm:"column:stripe_charge_id;not null;unique"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id"`
	Amount                int64               `gorm:"column:amount;not null"`
	Currency              enums.Currency      `gorm:"column:currency;not null"`
	Status                enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	ChargeDate            time.Time           `gorm:"column:charge_date;not null"`
	TaxCountry            *string             `gorm:"column:tax_country"`
	Livemode              bool                `gorm:"column:livemode;not null;default:false"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
