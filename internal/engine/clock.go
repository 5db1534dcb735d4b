package engine

import (
	"time"

	"github.com/roach88/stratum/internal/store"
)

// Clock supplies the wall-clock stamp recorded on every mutation.
// Injecting it keeps timestamps deterministic in tests; production code
// uses WallClock.
type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

// Now implements Clock.
func (WallClock) Now() time.Time {
	return time.Now()
}

// stamp renders a clock reading in the stored timestamp format.
func stamp(c Clock) string {
	return c.Now().Format(store.TimeFormat)
}
