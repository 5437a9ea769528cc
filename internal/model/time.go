package model

import "time"

// Now returns the current UTC time at the microsecond precision every
// backend can store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NextUpdate returns the updatedAt value for a mutation at now of a record
// last updated at prev. The result is always after prev.
func NextUpdate(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
