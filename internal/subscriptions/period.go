package subscriptions

import (
	"time"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// AddInterval advances start by count units. Month and year steps clamp to
// the last day of the target month so Jan 31 + 1 month is Feb 28/29.
func AddInterval(start time.Time, unit enums.IntervalUnit, count int) (time.Time, error) {
	if count <= 0 {
		count = 1
	}
	switch unit {
	case enums.IntervalUnitDay:
		return start.AddDate(0, 0, count), nil
	case enums.IntervalUnitWeek:
		return start.AddDate(0, 0, 7*count), nil
	case enums.IntervalUnitMonth:
		return addMonths(start, count), nil
	case enums.IntervalUnitYear:
		return addMonths(start, 12*count), nil
	default:
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported interval unit")
	}
}

func addMonths(start time.Time, months int) time.Time {
	year, month, day := start.Date()
	target := time.Date(year, month+time.Month(months), 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	last := target.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
}

// CalculateTrialEnd returns nil when the customer already had a trial or the
// price has none.
func CalculateTrialEnd(now time.Time, hasHadTrial bool, trialPeriodDays *int) *time.Time {
	if hasHadTrial || trialPeriodDays == nil || *trialPeriodDays <= 0 {
		return nil
	}
	end := now.AddDate(0, 0, *trialPeriodDays)
	return &end
}
