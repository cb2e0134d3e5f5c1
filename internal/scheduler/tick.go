package scheduler

import "time"

// NextTick returns the first tick after t: the next period boundary plus
// offset. With a one minute period and a one second offset, any instant in
// 10:00:00-10:00:59 maps to 10:01:01.
func NextTick(t time.Time, period, offset time.Duration) time.Time {
	return t.Truncate(period).Add(period + offset)
}
