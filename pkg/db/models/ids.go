package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert. Postgres also carries a
// gen_random_uuid() default, but ids are needed before the row round-trips.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Organization{},
		&PricingModel{},
		&Product{},
		&Price{},
		&Discount{},
		&Customer{},
		&CheckoutSession{},
		&Purchase{},
		&FeeCalculation{},
		&DiscountRedemption{},
		&Invoice{},
		&InvoiceLineItem{},
		&PaymentMethod{},
		&Subscription{},
		&BillingPeriod{},
		&BillingRun{},
		&Payment{},
		&LedgerEntry{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
