package services

import (
	"fmt"
	"net/netip"
	"strings"

	"claimguard/contexts/rewards-settlement/tx-guard/domain/entities"
	domainerrors "claimguard/contexts/rewards-settlement/tx-guard/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Intent is a validated write intent.
type Intent struct {
	Wallet    string
	Mode      entities.Mode
	CountryID int64
	AmountWei uint256.Int
}

func NewIntent(wallet string, mode string, countryID int64, amount string) (Intent, error) {
	normalizedWallet, err := NormalizeWallet(wallet)
	if err != nil {
		return Intent{}, err
	}
	parsedMode, err := ParseMode(mode)
	if err != nil {
		return Intent{}, err
	}
	if countryID <= 0 {
		return Intent{}, domainerrors.ErrInvalidCountry
	}
	amountWei, err := ParseAmountWei(amount)
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		Wallet:    normalizedWallet,
		Mode:      parsedMode,
		CountryID: countryID,
		AmountWei: amountWei,
	}, nil
}

// ResourceKey is the lock key shared by every caller submitting the same tuple.
func (i Intent) ResourceKey() string {
	return fmt.Sprintf("txguard:%s:%s:%d:%s", i.Wallet, i.Mode, i.CountryID, i.AmountWei.Dec())
}

func OnboardingResourceKey(wallet string) string {
	return "onboard:" + wallet
}

func NormalizeWallet(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", domainerrors.ErrInvalidWallet
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), nil
}

func ParseMode(raw string) (entities.Mode, error) {
	switch entities.Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case entities.ModeBuy:
		return entities.ModeBuy, nil
	case entities.ModeSell:
		return entities.ModeSell, nil
	default:
		return "", domainerrors.ErrInvalidMode
	}
}

// ParseAmountWei accepts a plain decimal integer. Signs, fractions and
// exponents are rejected.
func ParseAmountWei(raw string) (uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uint256.Int{}, domainerrors.ErrInvalidAmount
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return uint256.Int{}, domainerrors.ErrInvalidAmount
		}
	}
	trimmed := strings.TrimLeft(raw, "0")
	if trimmed == "" {
		return uint256.Int{}, domainerrors.ErrInvalidAmount
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %v", domainerrors.ErrInvalidAmount, err)
	}
	return *amount, nil
}

// NormalizeIP canonicalizes a client address, dropping any port.
func NormalizeIP(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domainerrors.ErrInvalidIP
	}
	if addrPort, err := netip.ParseAddrPort(raw); err == nil {
		return addrPort.Addr().Unmap().String(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", domainerrors.ErrInvalidIP
	}
	return addr.Unmap().String(), nil
}
