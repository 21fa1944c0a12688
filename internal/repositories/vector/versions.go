package vector

import "time"

// upsertWins reports whether an upsert at version v replaces what is stored. Equal
// versions overwrite a live entry (redelivery of the same event) but never a tombstone.
func upsertWins(storedVersion time.Time, tombstone bool, v time.Time) bool {
	if tombstone {
		return v.After(storedVersion)
	}
	return !v.Before(storedVersion)
}

// removeWins reports whether a remove at version v applies. Delete wins ties.
func removeWins(storedVersion time.Time, v time.Time) bool {
	return !v.Before(storedVersion)
}
