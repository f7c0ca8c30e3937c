// Package timeago renders lease expiry instants for the device table.
package timeago

import (
	"fmt"
	"time"
)

const secondsPerDay = 86400

// Format renders expiresAt relative to now in the local time zone
func Format(expiresAt, now time.Time) string {
	return FormatIn(expiresAt, now, time.Local)
}

// FormatIn renders expiresAt relative to now, taking the clock component
// from expiresAt in loc. More than one whole day past expiry yields
// "+N d HH:MM"; anything else yields "HH:MM".
func FormatIn(expiresAt, now time.Time, loc *time.Location) string {
	elapsed := floorDiv(now.Sub(expiresAt).Milliseconds(), 1000)
	days := floorDiv(elapsed, secondsPerDay)

	clock := expiresAt.In(loc).Format("15:04")
	if days > 1 {
		return fmt.Sprintf("+%d d %s", days, clock)
	}
	return clock
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
