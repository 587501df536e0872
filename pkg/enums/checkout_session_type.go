package enums

import "fmt"

// CheckoutSessionType is the flow a checkout session drives.
type CheckoutSessionType string

const (
	CheckoutSessionTypeProduct              CheckoutSessionType = "product"
	CheckoutSessionTypeInvoice              CheckoutSessionType = "invoice"
	CheckoutSessionTypeAddPaymentMethod     CheckoutSessionType = "add_payment_method"
	CheckoutSessionTypeActivateSubscription CheckoutSessionType = "activate_subscription"
)

var validCheckoutSessionTypes = []CheckoutSessionType{
	CheckoutSessionTypeProduct,
	CheckoutSessionTypeInvoice,
	CheckoutSessionTypeAddPaymentMethod,
	CheckoutSessionTypeActivateSubscription,
}

// String implements fmt.Stringer.
func (c CheckoutSessionType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutSessionType.
func (c CheckoutSessionType) IsValid() bool {
	for _, candidate := range validCheckoutSessionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutSessionType converts raw input into a CheckoutSessionType.
func ParseCheckoutSessionType(value string) (CheckoutSessionType, error) {
	for _, candidate := range validCheckoutSessionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout session type %q", value)
}
