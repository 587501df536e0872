package enums

import "fmt"

// InvoiceType records what produced an invoice.
type InvoiceType string

const (
	InvoiceTypePurchase     InvoiceType = "purchase"
	InvoiceTypeSubscription InvoiceType = "subscription"
	InvoiceTypeStandalone   InvoiceType = "standalone"
)

var validInvoiceTypes = []InvoiceType{
	InvoiceTypePurchase,
	InvoiceTypeSubscription,
	InvoiceTypeStandalone,
}

// String implements fmt.Stringer.
func (i InvoiceType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InvoiceType.
func (i InvoiceType) IsValid() bool {
	for _, candidate := range validInvoiceTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvoiceType converts raw input into a InvoiceType.
func ParseInvoiceType(value string) (InvoiceType, error) {
	for _, candidate := range validInvoiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice type %q", value)
}
