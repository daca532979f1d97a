package tier

import "time"

// Tier identifies which storage tier holds a business record.
type Tier string

const (
	Hot     Tier = "hot"
	Archive Tier = "archive"
)

// DefaultRetentionDays is the rolling retention window when none is configured.
const DefaultRetentionDays = 90

// Classifier maps a business date to a storage tier using a single rolling
// cutoff. The as-of time is snapshotted once per run so a long batch never
// shifts its own cutoff mid-flight; tests pin a fixed clock the same way.
type Classifier struct {
	retentionDays int
	asOf          time.Time
}

// NewClassifier builds a classifier for one run. asOf is normalized to a UTC
// date; retentionDays falls back to the default when non-positive.
func NewClassifier(retentionDays int, asOf time.Time) Classifier {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return Classifier{
		retentionDays: retentionDays,
		asOf:          DateOnly(asOf),
	}
}

// Cutoff returns the boundary date: business dates >= cutoff are hot,
// older dates are archive.
func (c Classifier) Cutoff() time.Time {
	return c.asOf.AddDate(0, 0, -c.retentionDays)
}

// AsOf returns the run's snapshotted as-of date.
func (c Classifier) AsOf() time.Time { return c.asOf }

// RetentionDays returns the retention window in days.
func (c Classifier) RetentionDays() int { return c.retentionDays }

// TierFor classifies a business date. The boundary is inclusive on the hot
// side: a date exactly at cutoff is hot, one day older is archive.
func (c Classifier) TierFor(date time.Time) Tier {
	if DateOnly(date).Before(c.Cutoff()) {
		return Archive
	}
	return Hot
}

// DateOnly truncates a timestamp to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
