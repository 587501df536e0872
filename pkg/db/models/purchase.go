package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

// Purchase is the durable intent to buy a price. Interval columns are only
// populated for subscription prices; first/total values only for one-off and
// usage prices.
type Purchase struct {
	ID                   uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID       uuid.UUID             `gorm:"column:organization_id;type:uuid;not null;index"`
	CustomerID           uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	PriceID              uuid.UUID             `gorm:"column:price_id;type:uuid;not null"`
	Name                 string                `gorm:"column:name;not null"`
	Status               enums.PurchaseStatus  `gorm:"column:status;type:purchase_status;not null;default:'open'"`
	PriceType            enums.PriceType       `gorm:"column:price_type;type:price_type;not null"`
	Quantity             int                   `gorm:"column:quantity;not null;default:1"`
	IntervalUnit         *enums.IntervalUnit   `gorm:"column:interval_unit;type:interval_unit"`
	IntervalCount        *int                  `gorm:"column:interval_count"`
	TrialPeriodDays      *int                  `gorm:"column:trial_period_days"`
	PricePerBillingCycle *int64                `gorm:"column:price_per_billing_cycle"`
	FirstInvoiceValue    int64                 `gorm:"column:first_invoice_value;not null;default:0"`
	TotalPurchaseValue   *int64                `gorm:"column:total_purchase_value"`
	BillingAddress       *types.BillingAddress `gorm:"column:billing_address;type:jsonb"`
	PurchaseDate         *time.Time            `gorm:"column:purchase_date"`
	Metadata             json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	Livemode             bool                  `gorm:"column:livemode;not null;default:false"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
