package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// BillingAddress is the billing address captured on checkout sessions,
// customers and purchases. It is stored as a JSON document.
type BillingAddress struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// CountryCode returns the upper-cased ISO country, empty when unknown.
func (a *BillingAddress) CountryCode() string {
	if a == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(a.Country))
}

// Region returns the normalized state/province.
func (a *BillingAddress) Region() string {
	if a == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(a.State))
}

func (a BillingAddress) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Country) == "" {
		return nil, fmt.Errorf("billing address: missing country")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("billing address: %w", err)
	}
	return string(raw), nil
}

func (a *BillingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = BillingAddress{}
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("billing address: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*a = BillingAddress{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), a); err != nil {
		return fmt.Errorf("billing address: %w", err)
	}
	return nil
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
