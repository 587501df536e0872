package enums

import "fmt"

// CheckoutSessionStatus maps to the checkout_session_status enum in Postgres.
type CheckoutSessionStatus string

const (
	CheckoutSessionStatusOpen      CheckoutSessionStatus = "open"
	CheckoutSessionStatusPending   CheckoutSessionStatus = "pending"
	CheckoutSessionStatusSucceeded CheckoutSessionStatus = "succeeded"
	CheckoutSessionStatusFailed    CheckoutSessionStatus = "failed"
)

var validCheckoutSessionStatuses = []CheckoutSessionStatus{
	CheckoutSessionStatusOpen,
	CheckoutSessionStatusPending,
	CheckoutSessionStatusSucceeded,
	CheckoutSessionStatusFailed,
}

// String implements fmt.Stringer.
func (c CheckoutSessionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutSessionStatus.
func (c CheckoutSessionStatus) IsValid() bool {
	for _, candidate := range validCheckoutSessionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutSessionStatus converts raw input into a CheckoutSessionStatus.
func ParseCheckoutSessionStatus(value string) (CheckoutSessionStatus, error) {
	for _, candidate := range validCheckoutSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout session status %q", value)
}

// IsTerminal reports whether the session can no longer change.
func (c CheckoutSessionStatus) IsTerminal() bool {
	return c != CheckoutSessionStatusOpen
}

// CheckoutSessionStatusForCharge maps a processor charge status onto the
// session status it settles into. Unknown statuses are treated as failures.
func CheckoutSessionStatusForCharge(status ChargeStatus) CheckoutSessionStatus {
	switch status {
	case ChargeStatusSucceeded:
		return CheckoutSessionStatusSucceeded
	case ChargeStatusPending:
		return CheckoutSessionStatusPending
	default:
		return CheckoutSessionStatusFailed
	}
}

// NextCheckoutSessionStatus validates a session transition. Only open sessions
// move, and only into one of the terminal states.
func NextCheckoutSessionStatus(current, next CheckoutSessionStatus) (CheckoutSessionStatus, error) {
	if !next.IsValid() || next == CheckoutSessionStatusOpen {
		return current, fmt.Errorf("%w: checkout session %s -> %s", ErrInvalidTransition, current, next)
	}
	if current.IsTerminal() {
		return current, fmt.Errorf("%w: checkout session %s is terminal", ErrInvalidTransition, current)
	}
	return next, nil
}
