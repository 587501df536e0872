package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Invoice is the billing document for a purchase (1:1) or a standalone charge.
type Invoice struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID           `gorm:"column:organization_id;type:uuid;not null;index"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	PurchaseID     *uuid.UUID          `gorm:"column:purchase_id;type:uuid;uniqueIndex:ux_invoices_purchase"`
	SubscriptionID *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	InvoiceNumber  string              `gorm:"column:invoice_number;not null;unique"`
	Type           enums.InvoiceType   `gorm:"column:type;type:invoice_type;not null"`
	Status         enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'draft'"`
	Currency       enums.Currency      `gorm:"column:currency;not null"`
	Subtotal       int64               `gorm:"column:subtotal;not null;default:0"`
	TaxCountry     *string             `gorm:"column:tax_country"`
	InvoiceDate    time.Time           `gorm:"column:invoice_date;not null"`
	DueDate        *time.Time          `gorm:"column:due_date"`
	Livemode       bool                `gorm:"column:livemode;not null;default:false"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

type InvoiceLineItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID   uuid.UUID  `gorm:"column:invoice_id;type:uuid;not null;index"`
	PriceID     *uuid.UUID `gorm:"column:price_id;type:uuid"`
	Description string     `gorm:"column:description;not null"`
	Quantity    int        `gorm:"column:quantity;not null;default:1"`
	Price       int64      `gorm:"column:price;not null"`
	Livemode    bool       `gorm:"column:livemode;not null;default:false"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *InvoiceLineItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
