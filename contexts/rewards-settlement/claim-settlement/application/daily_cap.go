package application

import (
	"context"
	"sort"
	"time"

	"claimguard/contexts/rewards-settlement/claim-settlement/domain/entities"
	"claimguard/contexts/rewards-settlement/claim-settlement/domain/services"
	"claimguard/contexts/rewards-settlement/claim-settlement/ports"

	"github.com/holiman/uint256"
)

// CapUsage is one token's admitted volume for the current UTC day.
type CapUsage struct {
	Token     string
	Used      uint256.Int
	Cap       uint256.Int
	Remaining uint256.Int
}

// DailyCapAccountant is soft admission control over processing+completed
// volume per token and UTC day, keyed by the lease moment. It is not atomic
// with leasing; the settle lock serializes each claim. Leased claims are
// admitted in (leaseAt, id) order so concurrent checks cannot defer each other.
type DailyCapAccountant struct {
	Ledger ports.ClaimLedger
	Clock  ports.Clock
	// Caps maps canonical token to its daily limit in minor units. Absent or
	// zero means uncapped.
	Caps map[string]uint256.Int
}

func (a DailyCapAccountant) CapFor(token string) (uint256.Int, bool) {
	capLimit, ok := a.Caps[token]
	if !ok || capLimit.IsZero() {
		return uint256.Int{}, false
	}
	return capLimit, true
}

func (a DailyCapAccountant) RemainingCap(ctx context.Context, token string, capLimit uint256.Int) (uint256.Int, error) {
	used, err := a.used(ctx, token, a.now(), nil)
	if err != nil {
		return uint256.Int{}, err
	}
	return services.RemainingCap(capLimit, used), nil
}

func (a DailyCapAccountant) CanAdmit(ctx context.Context, amount uint256.Int, token string, capLimit uint256.Int) (bool, error) {
	if capLimit.IsZero() {
		return true, nil
	}
	used, err := a.used(ctx, token, a.now(), nil)
	if err != nil {
		return false, err
	}
	return services.Admits(capLimit, used, amount), nil
}

// CanAdmitLeased checks a claim that already holds a processing lease. Its
// own reservation and processing claims leased after it are left out of the
// sum; completed claims always count.
func (a DailyCapAccountant) CanAdmitLeased(ctx context.Context, claim entities.Claim, capLimit uint256.Int) (bool, error) {
	if capLimit.IsZero() {
		return true, nil
	}
	at := a.now()
	if claim.LeaseAt != nil {
		at = *claim.LeaseAt
	}
	used, err := a.used(ctx, claim.Token, at, &ports.ReservationCursor{LeaseAt: at, ClaimID: claim.ID})
	if err != nil {
		return false, err
	}
	return services.Admits(capLimit, used, claim.Amount), nil
}

// Usage reports every capped token, sorted by token. Zero caps are uncapped
// and left out.
func (a DailyCapAccountant) Usage(ctx context.Context) ([]CapUsage, error) {
	tokens := make([]string, 0, len(a.Caps))
	for token, capLimit := range a.Caps {
		if capLimit.IsZero() {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	now := a.now()
	items := make([]CapUsage, 0, len(tokens))
	for _, token := range tokens {
		capLimit := a.Caps[token]
		used, err := a.used(ctx, token, now, nil)
		if err != nil {
			return nil, err
		}
		items = append(items, CapUsage{
			Token:     token,
			Used:      used,
			Cap:       capLimit,
			Remaining: services.RemainingCap(capLimit, used),
		})
	}
	return items, nil
}

func (a DailyCapAccountant) used(ctx context.Context, token string, at time.Time, ahead *ports.ReservationCursor) (uint256.Int, error) {
	from, to := services.UTCDayWindow(at)
	return a.Ledger.SumReserved(ctx, token, from, to, ahead)
}

func (a DailyCapAccountant) now() time.Time {
	if a.Clock == nil {
		return time.Now().UTC()
	}
	return a.Clock.Now().UTC()
}
