package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Product is the sellable offering a price belongs to.
type Product struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID  `gorm:"column:organization_id;type:uuid;not null;index"`
	PricingModelID *uuid.UUID `gorm:"column:pricing_model_id;type:uuid;index"`
	Name           string     `gorm:"column:name;not null"`
	Description    *string    `gorm:"column:description"`
	Active         bool       `gorm:"column:active;not null;default:true"`
	Livemode       bool       `gorm:"column:livemode;not null;default:false"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Price carries the billing model and amount for a product.
type Price struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	PricingModelID  *uuid.UUID          `gorm:"column:pricing_model_id;type:uuid;index"`
	Name            *string             `gorm:"column:name"`
	Type            enums.PriceType     `gorm:"column:type;type:price_type;not null"`
	UnitPrice       int64               `gorm:"column:unit_price;not null;default:0"`
	Currency        enums.Currency      `gorm:"column:currency;not null"`
	IntervalUnit    *enums.IntervalUnit `gorm:"column:interval_unit;type:interval_unit"`
	IntervalCount   *int                `gorm:"column:interval_count"`
	TrialPeriodDays *int                `gorm:"column:trial_period_days"`
	IsDefault       bool                `gorm:"column:is_default;not null;default:false"`
	Active          bool                `gorm:"column:active;not null;default:true"`
	Livemode        bool                `gorm:"column:livemode;not null;default:false"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Price) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Discount is a redeemable reduction on the session total.
type Discount struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID   uuid.UUID                `gorm:"column:organization_id;type:uuid;not null;index"`
	Name             string                   `gorm:"column:name;not null"`
	Code             string                   `gorm:"column:code;not null"`
	AmountType       enums.DiscountAmountType `gorm:"column:amount_type;type:discount_amount_type;not null"`
	Amount           int64                    `gorm:"column:amount;not null"`
	Duration         enums.DiscountDuration   `gorm:"column:duration;type:discount_duration;not null"`
	NumberOfPayments *int                     `gorm:"column:number_of_payments"`
	Active           bool                     `gorm:"column:active;not null;default:true"`
	Livemode         bool                     `gorm:"column:livemode;not null;default:false"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Discount) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
