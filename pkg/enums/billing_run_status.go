package enums

import "fmt"

type BillingRunStatus string

const (
	BillingRunStatusScheduled BillingRunStatus = "scheduled"
	BillingRunStatusSucceeded BillingRunStatus = "succeeded"
	BillingRunStatusFailed    BillingRunStatus = "failed"
)

var validBillingRunStatuses = []BillingRunStatus{
	BillingRunStatusScheduled,
	BillingRunStatusSucceeded,
	BillingRunStatusFailed,
}

// String implements fmt.Stringer.
func (b BillingRunStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingRunStatus.
func (b BillingRunStatus) IsValid() bool {
	for _, candidate := range validBillingRunStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingRunStatus converts raw input into a BillingRunStatus.
func ParseBillingRunStatus(value string) (BillingRunStatus, error) {
	for _, candidate := range validBillingRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing run status %q", value)
}
