package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// FeeCalculation is the snapshot of totals quoted for a checkout session.
// Rows are never rewritten except to attach the purchase once it exists.
type FeeCalculation struct {
	ID                     uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID         uuid.UUID      `gorm:"column:organization_id;type:uuid;not null"`
	CheckoutSessionID      *uuid.UUID     `gorm:"column:checkout_session_id;type:uuid;index"`
	PurchaseID             *uuid.UUID     `gorm:"column:purchase_id;type:uuid;index"`
	PriceID                uuid.UUID      `gorm:"column:price_id;type:uuid;not null"`
	DiscountID             *uuid.UUID     `gorm:"column:discount_id;type:uuid"`
	Quantity               int            `gorm:"column:quantity;not null;default:1"`
	Currency               enums.Currency `gorm:"column:currency;not null"`
	BillingAddressCountry  string         `gorm:"column:billing_address_country"`
	BillingAddressRegion   string         `gorm:"column:billing_address_region"`
	BaseAmount             int64          `gorm:"column:base_amount;not null"`
	DiscountAmountFixed    int64          `gorm:"column:discount_amount_fixed;not null;default:0"`
	PretaxTotal            *int64         `gorm:"column:pretax_total"`
	TaxAmountFixed         int64          `gorm:"column:tax_amount_fixed;not null;default:0"`
	ApplicationFeeAmount   int64          `gorm:"column:application_fee_amount;not null;default:0"`
	StripeTaxCalculationID *string        `gorm:"column:stripe_tax_calculation_id"`
	StripeTaxTransactionID *string        `gorm:"column:stripe_tax_transaction_id"`
	Livemode               bool           `gorm:"column:livemode;not null;default:false"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *FeeCalculation) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}

// TotalDue returns pretax + tax. ok is false while the pretax total is unknown.
func (f *FeeCalculation) TotalDue() (total int64, ok bool) {
	if f == nil || f.PretaxTotal == nil {
		return 0, false
	}
	return *f.PretaxTotal + f.TaxAmountFixed, true
}
