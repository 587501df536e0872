package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// LedgerEntry records an immutable money movement. One entry per payment and
// type.
type LedgerEntry struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID             `gorm:"column:organization_id;type:uuid;not null;index"`
	PaymentID      uuid.UUID             `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_payment_type,priority:1"`
	InvoiceID      uuid.UUID             `gorm:"column:invoice_id;type:uuid;not null"`
	Type           enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null;uniqueIndex:ux_ledger_entries_payment_type,priority:2"`
	AmountCents    int64                 `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency        `gorm:"column:currency;not null"`
	Livemode       bool                  `gorm:"column:livemode;not null;default:false"`
	Metadata       json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (l *LedgerEntry) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
