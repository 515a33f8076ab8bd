package station

import "time"

// Clock abstracts timed waits so the schedule runner can be driven by a fake
// timer in tests instead of sleeping for real.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type WallClock struct{}

func (WallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
