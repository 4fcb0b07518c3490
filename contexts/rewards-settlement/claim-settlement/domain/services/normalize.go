package services

import (
	"regexp"
	"strings"

	domainerrors "claimguard/contexts/rewards-settlement/claim-settlement/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	tokenPattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9:_.\-]{0,63}$`)
	claimIDPattern = regexp.MustCompile(`^[a-z0-9_\-]{1,48}:[A-Za-z0-9_\-.:]{1,120}$`)
)

// NormalizeWallet returns the lowercase 0x-prefixed form of a hex address.
func NormalizeWallet(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", domainerrors.ErrInvalidWallet
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), nil
}

// NormalizeAmount parses a positive base-10 integer in minor units. Signs,
// exponents and fractions are rejected; leading zeros are dropped.
func NormalizeAmount(raw string) (uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uint256.Int{}, domainerrors.ErrInvalidAmount
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return uint256.Int{}, domainerrors.ErrInvalidAmount
		}
	}
	digits := strings.TrimLeft(raw, "0")
	if digits == "" {
		return uint256.Int{}, domainerrors.ErrInvalidAmount
	}
	value, err := uint256.FromDecimal(digits)
	if err != nil {
		return uint256.Int{}, domainerrors.ErrInvalidAmount
	}
	return *value, nil
}

func NormalizeToken(raw string) (string, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if !tokenPattern.MatchString(token) {
		return "", domainerrors.ErrInvalidToken
	}
	return token, nil
}

// ValidateClaimID requires a "<category>:<event-id>" identity so distinct
// reward events never share an idempotency bucket.
func ValidateClaimID(raw string) (string, error) {
	claimID := strings.TrimSpace(raw)
	if !claimIDPattern.MatchString(claimID) {
		return "", domainerrors.ErrInvalidClaimID
	}
	return claimID, nil
}
