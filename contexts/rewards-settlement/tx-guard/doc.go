// Package txguard keeps at most one in-flight write intent per
// (wallet, mode, countryId, amount) tuple and throttles onboarding.
//
// A guard moves held -> sent -> released. Holds live in the coordination
// store and expire on their own, so a caller that never releases only
// blocks the tuple until the TTL elapses.
package txguard
