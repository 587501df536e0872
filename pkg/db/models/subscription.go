package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Subscription persists recurring billing state per customer. The setup
// intent that created it is unique so webhook replays find it again.
type Subscription struct {
	ID                        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID            uuid.UUID                `gorm:"column:organization_id;type:uuid;not null;index"`
	CustomerID                uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	PriceID                   uuid.UUID                `gorm:"column:price_id;type:uuid;not null"`
	PurchaseID                *uuid.UUID               `gorm:"column:purchase_id;type:uuid"`
	Name                      string                   `gorm:"column:name;not null"`
	Status                    enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	IntervalUnit              enums.IntervalUnit       `gorm:"column:interval_unit;type:interval_unit;not null"`
	IntervalCount             int                      `gorm:"column:interval_count;not null;default:1"`
	Quantity                  int                      `gorm:"column:quantity;not null;default:1"`
	TrialEnd                  *time.Time               `gorm:"column:trial_end"`
	CurrentBillingPeriodStart time.Time                `gorm:"column:current_billing_period_start;not null"`
	CurrentBillingPeriodEnd   time.Time                `gorm:"column:current_billing_period_end;not null"`
	BillingCycleAnchorDate    time.Time                `gorm:"column:billing_cycle_anchor_date;not null"`
	DefaultPaymentMethodID    *uuid.UUID               `gorm:"column:default_payment_method_id;type:uuid"`
	StripeSetupIntentID       *string                  `gorm:"column:stripe_setup_intent_id;unique"`
	CanceledAt                *time.Time               `gorm:"column:canceled_at"`
	Metadata                  json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	Livemode                  bool                     `gorm:"column:livemode;not null;default:false"`
	CreatedAt                 time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type BillingPeriod struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID                 `gorm:"column:subscription_id;type:uuid;not null;index"`
	StartDate      time.Time                 `gorm:"column:start_date;not null"`
	EndDate        time.Time                 `gorm:"column:end_date;not null"`
	Status         enums.BillingPeriodStatus `gorm:"column:status;type:billing_period_status;not null"`
	TrialPeriod    bool                      `gorm:"column:trial_period;not null;default:false"`
	Livemode       bool                      `gorm:"column:livemode;not null;default:false"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (b *BillingPeriod) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// BillingRun is a scheduled attempt to charge a billing period.
type BillingRun struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID  uuid.UUID              `gorm:"column:subscription_id;type:uuid;not null;index"`
	BillingPeriodID uuid.UUID              `gorm:"column:billing_period_id;type:uuid;not null"`
	PaymentMethodID uuid.UUID              `gorm:"column:payment_method_id;type:uuid;not null"`
	Status          enums.BillingRunStatus `gorm:"column:status;type:billing_run_status;not null"`
	ScheduledFor    time.Time              `gorm:"column:scheduled_for;not null"`
	Livemode        bool                   `gorm:"column:livemode;not null;default:false"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (b *BillingRun) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}
