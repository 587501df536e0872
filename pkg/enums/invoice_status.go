package enums

import "fmt"

// InvoiceStatus maps to the invoice_status enum in Postgres.
type InvoiceStatus string

const (
	InvoiceStatusDraft                       InvoiceStatus = "draft"
	InvoiceStatusAwaitingPaymentConfirmation InvoiceStatus = "awaiting_payment_confirmation"
	InvoiceStatusPaid                        InvoiceStatus = "paid"
	InvoiceStatusVoid                        InvoiceStatus = "void"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusAwaitingPaymentConfirmation,
	InvoiceStatusPaid,
	InvoiceStatusVoid,
}

// String implements fmt.Stringer.
func (i InvoiceStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InvoiceStatus.
func (i InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into a InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}

// InvoiceStatusForPayment decides where an invoice lands after a charge.
// Coverage by payments already recorded wins over the incoming charge status,
// so a replayed charge never counts twice.
func InvoiceStatusForPayment(current InvoiceStatus, invoiceTotal, priorPaid, chargeAmount int64, charge CheckoutSessionStatus) InvoiceStatus {
	if priorPaid >= invoiceTotal {
		return InvoiceStatusPaid
	}
	if charge == CheckoutSessionStatusPending {
		return InvoiceStatusAwaitingPaymentConfirmation
	}
	if charge == CheckoutSessionStatusSucceeded && priorPaid+chargeAmount >= invoiceTotal {
		return InvoiceStatusPaid
	}
	return current
}
