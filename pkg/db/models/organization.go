package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Organization is the merchant that owns catalog, customers and sessions.
type Organization struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name            string          `gorm:"column:name;not null"`
	DefaultCurrency enums.Currency  `gorm:"column:default_currency;not null;default:'usd'"`
	FeePercentage   decimal.Decimal `gorm:"column:fee_percentage;type:numeric(5,2);not null;default:0"`
	CollectsTax     bool            `gorm:"column:collects_tax;not null;default:false"`
	StripeAccountID *string         `gorm:"column:stripe_account_id"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// PricingModel groups the products a customer can be sold.
type PricingModel struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index"`
	Name           string    `gorm:"column:name;not null"`
	IsDefault      bool      `gorm:"column:is_default;not null;default:false"`
	Livemode       bool      `gorm:"column:livemode;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PricingModel) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
