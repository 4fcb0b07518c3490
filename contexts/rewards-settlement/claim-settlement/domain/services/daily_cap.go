package services

import (
	"time"

	"github.com/holiman/uint256"
)

// UTCDayWindow returns [00:00:00 UTC, next 00:00:00 UTC) around now.
func UTCDayWindow(now time.Time) (time.Time, time.Time) {
	utc := now.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// RemainingCap is capLimit-used, floored at zero.
func RemainingCap(capLimit uint256.Int, used uint256.Int) uint256.Int {
	if used.Cmp(&capLimit) >= 0 {
		return uint256.Int{}
	}
	var remaining uint256.Int
	remaining.Sub(&capLimit, &used)
	return remaining
}

// Admits reports whether used+amount stays within capLimit. A zero capLimit
// means the token is uncapped.
func Admits(capLimit uint256.Int, used uint256.Int, amount uint256.Int) bool {
	if capLimit.IsZero() {
		return true
	}
	var total uint256.Int
	if _, overflow := total.AddOverflow(&used, &amount); overflow {
		return false
	}
	return total.Cmp(&capLimit) <= 0
}
