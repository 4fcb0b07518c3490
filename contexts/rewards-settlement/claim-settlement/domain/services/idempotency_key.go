package services

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ClaimIdentity is the normalized tuple a claim is deduplicated on.
type ClaimIdentity struct {
	Wallet  string
	Amount  uint256.Int
	Token   string
	ClaimID string
}

func NewClaimIdentity(wallet string, amount string, token string, claimID string) (ClaimIdentity, error) {
	normalizedWallet, err := NormalizeWallet(wallet)
	if err != nil {
		return ClaimIdentity{}, err
	}
	normalizedAmount, err := NormalizeAmount(amount)
	if err != nil {
		return ClaimIdentity{}, err
	}
	normalizedToken, err := NormalizeToken(token)
	if err != nil {
		return ClaimIdentity{}, err
	}
	normalizedClaimID, err := ValidateClaimID(claimID)
	if err != nil {
		return ClaimIdentity{}, err
	}
	return ClaimIdentity{
		Wallet:  normalizedWallet,
		Amount:  normalizedAmount,
		Token:   normalizedToken,
		ClaimID: normalizedClaimID,
	}, nil
}

// DeriveIdempotencyKey hashes the identity with Keccak-256. The derivation is
// unversioned: changing normalization invalidates every stored key.
func DeriveIdempotencyKey(identity ClaimIdentity) common.Hash {
	canonical := strings.Join([]string{
		identity.Wallet,
		identity.Amount.Dec(),
		identity.Token,
		identity.ClaimID,
	}, "|")
	return crypto.Keccak256Hash([]byte(canonical))
}

// IdempotencyKeyHex is the persisted form: lowercase hex with a 0x prefix.
func IdempotencyKeyHex(identity ClaimIdentity) string {
	return DeriveIdempotencyKey(identity).Hex()
}
