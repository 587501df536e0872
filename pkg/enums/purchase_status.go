package enums

import "fmt"

// PurchaseStatus maps to the purchase_status enum in Postgres.
type PurchaseStatus string

const (
	PurchaseStatusOpen    PurchaseStatus = "open"
	PurchaseStatusPending PurchaseStatus = "pending"
	PurchaseStatusPaid    PurchaseStatus = "paid"
	PurchaseStatusFailed  PurchaseStatus = "failed"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusOpen,
	PurchaseStatusPending,
	PurchaseStatusPaid,
	PurchaseStatusFailed,
}

// String implements fmt.Stringer.
func (p PurchaseStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseStatus.
func (p PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}

// IsTerminal reports whether the purchase lifecycle has finished.
func (p PurchaseStatus) IsTerminal() bool {
	return p == PurchaseStatusPaid || p == PurchaseStatusFailed
}

// NextPurchaseStatus validates Open -> Pending -> Paid with Failed reachable
// from any non-terminal state. Re-applying the current status is allowed.
func NextPurchaseStatus(current, next PurchaseStatus) (PurchaseStatus, error) {
	if current == next {
		return current, nil
	}
	if current.IsTerminal() {
		return current, fmt.Errorf("%w: purchase %s is terminal", ErrInvalidTransition, current)
	}
	switch next {
	case PurchaseStatusPending:
		if current == PurchaseStatusOpen {
			return next, nil
		}
	case PurchaseStatusPaid, PurchaseStatusFailed:
		return next, nil
	}
	return current, fmt.Errorf("%w: purchase %s -> %s", ErrInvalidTransition, current, next)
}
