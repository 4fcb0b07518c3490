// Package claimsettlement turns accrued off-chain rewards into exactly-once
// payouts.
//
// Claims are deduplicated on a Keccak-256 key over (wallet, amount, token,
// claimId), queued as pending ledger rows, leased by workers, and finalized
// through fenced conditional writes. A sweeper returns crashed leases to
// pending.
package claimsettlement
