package purchases

import (
	"fmt"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// PurchaseInsert is the billing-model specific part of a new purchase row.
// Implementations are SubscriptionInsert, SinglePaymentInsert and UsageInsert.
type PurchaseInsert interface {
	PriceType() enums.PriceType
	apply(p *models.Purchase)
}

type SubscriptionInsert struct {
	IntervalUnit         enums.IntervalUnit
	IntervalCount        int
	TrialPeriodDays      int
	PricePerBillingCycle int64
}

func (SubscriptionInsert) PriceType() enums.PriceType { return enums.PriceTypeSubscription }

func (s SubscriptionInsert) apply(p *models.Purchase) {
	unit := s.IntervalUnit
	count := s.IntervalCount
	trial := s.TrialPeriodDays
	perCycle := s.PricePerBillingCycle
	p.IntervalUnit = &unit
	p.IntervalCount = &count
	p.TrialPeriodDays = &trial
	p.PricePerBillingCycle = &perCycle
	p.FirstInvoiceValue = 0
	p.TotalPurchaseValue = nil
}

type SinglePaymentInsert struct {
	FirstInvoiceValue  int64
	TotalPurchaseValue int64
}

func (SinglePaymentInsert) PriceType() enums.PriceType { return enums.PriceTypeSinglePayment }

func (s SinglePaymentInsert) apply(p *models.Purchase) {
	applyOneOff(p, s.FirstInvoiceValue, s.TotalPurchaseValue)
}

type UsageInsert struct {
	FirstInvoiceValue  int64
	TotalPurchaseValue int64
}

func (UsageInsert) PriceType() enums.PriceType { return enums.PriceTypeUsage }

func (u UsageInsert) apply(p *models.Purchase) {
	applyOneOff(p, u.FirstInvoiceValue, u.TotalPurchaseValue)
}

func applyOneOff(p *models.Purchase, first, total int64) {
	p.IntervalUnit = nil
	p.IntervalCount = nil
	p.TrialPeriodDays = nil
	p.PricePerBillingCycle = nil
	p.FirstInvoiceValue = first
	p.TotalPurchaseValue = &total
}

// NewPurchaseInsert picks the insert shape for price's billing model.
func NewPurchaseInsert(price *models.Price) (PurchaseInsert, error) {
	if price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price required")
	}
	switch price.Type {
	case enums.PriceTypeSubscription:
		if price.IntervalUnit == nil || !price.IntervalUnit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription price has no interval")
		}
		count := 1
		if price.IntervalCount != nil && *price.IntervalCount > 0 {
			count = *price.IntervalCount
		}
		trial := 0
		if price.TrialPeriodDays != nil {
			trial = *price.TrialPeriodDays
		}
		return SubscriptionInsert{
			IntervalUnit:         *price.IntervalUnit,
			IntervalCount:        count,
			TrialPeriodDays:      trial,
			PricePerBillingCycle: price.UnitPrice,
		}, nil
	case enums.PriceTypeSinglePayment:
		return SinglePaymentInsert{FirstInvoiceValue: price.UnitPrice, TotalPurchaseValue: price.UnitPrice}, nil
	case enums.PriceTypeUsage:
		return UsageInsert{FirstInvoiceValue: price.UnitPrice, TotalPurchaseValue: price.UnitPrice}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("unsupported price type %q", price.Type))
	}
}
