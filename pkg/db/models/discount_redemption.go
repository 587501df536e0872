package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// DiscountRedemption tracks consumption of a discount against one purchase.
// The discount terms are copied at redemption time.
type DiscountRedemption struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	DiscountID         uuid.UUID                `gorm:"column:discount_id;type:uuid;not null;uniqueIndex:ux_discount_redemptions_purchase_discount,priority:2"`
	PurchaseID         uuid.UUID                `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:ux_discount_redemptions_purchase_discount,priority:1"`
	SubscriptionID     *uuid.UUID               `gorm:"column:subscription_id;type:uuid"`
	DiscountName       string                   `gorm:"column:discount_name;not null"`
	DiscountCode       string                   `gorm:"column:discount_code;not null"`
	DiscountAmount     int64                    `gorm:"column:discount_amount;not null"`
	DiscountAmountType enums.DiscountAmountType `gorm:"column:discount_amount_type;type:discount_amount_type;not null"`
	Duration           enums.DiscountDuration   `gorm:"column:duration;type:discount_duration;not null"`
	NumberOfPayments   *int                     `gorm:"column:number_of_payments"`
	FullyRedeemed      bool                     `gorm:"column:fully_redeemed;not null;default:false"`
	Livemode           bool                     `gorm:"column:livemode;not null;default:false"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DiscountRedemption) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
