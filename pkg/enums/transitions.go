package enums

import "errors"

// ErrInvalidTransition is returned by the Next*Status helpers when a record is
// asked to move somewhere its lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")
