package domain

import "time"

// Interval is a half-open [Start, End) span of time. All interval math is
// done on UTC instants truncated to second precision, so two instants are
// only equal when they are exactly equal at that unit.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) Interval {
	return Interval{
		Start: start.UTC().Truncate(time.Second),
		End:   end.UTC().Truncate(time.Second),
	}
}

func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contiguous reports whether other starts exactly where iv ends.
func (iv Interval) Contiguous(other Interval) bool {
	return iv.End.Equal(other.Start)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}
