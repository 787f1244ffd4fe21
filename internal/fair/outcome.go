package fair

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultDomainSize is the number of possible draw values when none is
// configured. The domain is fixed regardless of which sides are staked so
// that adding or dropping sides never changes any side's odds.
const DefaultDomainSize = 100

// Engine configuration errors.
var (
	ErrEmptyDomain    = errors.New("domain size must be positive")
	ErrNoSides        = errors.New("at least one side must be configured")
	ErrBadMultiplier  = errors.New("side multiplier must be greater than 1")
	ErrDomainOverflow = errors.New("side ranges exceed the outcome domain")
	ErrUnknownSide    = errors.New("unknown side")
)

// Side is one selectable outcome: a payout multiplier and the contiguous
// sub-range of the draw domain it covers. Ranges are disjoint across sides.
type Side struct {
	Number     int
	Multiplier decimal.Decimal
	From, To   int // inclusive bounds within [1, domain]
}

// Engine deterministically maps a revealed seed pair to a drawn value and
// resolves win/loss against staked sides. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	domain int
	sides  []Side
}

// NewEngine lays out one sub-range per side, sized domain/multiplier
// (truncated), in ascending side order starting at 1. A multiplier of 2 on a
// 100-value domain covers 50 values; the covered fraction is the fair win
// probability for that side.
func NewEngine(domain int, multipliers map[int]decimal.Decimal) (*Engine, error) {
	if domain <= 0 {
		return nil, ErrEmptyDomain
	}
	if len(multipliers) == 0 {
		return nil, ErrNoSides
	}

	numbers := make([]int, 0, len(multipliers))
	for n := range multipliers {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	sides := make([]Side, 0, len(numbers))
	next := 1
	one := decimal.NewFromInt(1)
	for _, n := range numbers {
		mult := multipliers[n]
		if mult.LessThanOrEqual(one) {
			return nil, fmt.Errorf("%w: side %d has multiplier %s", ErrBadMultiplier, n, mult)
		}
		width := decimal.NewFromInt(int64(domain)).Div(mult).IntPart()
		if width < 1 {
			width = 1
		}
		sides = append(sides, Side{
			Number:     n,
			Multiplier: mult,
			From:       next,
			To:         next + int(width) - 1,
		})
		next += int(width)
	}
	if next-1 > domain {
		return nil, fmt.Errorf("%w: need %d values, have %d", ErrDomainOverflow, next-1, domain)
	}

	return &Engine{domain: domain, sides: sides}, nil
}

// DomainSize returns the number of possible draw values.
func (e *Engine) DomainSize() int {
	return e.domain
}

// Sides returns the configured side layout.
func (e *Engine) Sides() []Side {
	out := make([]Side, len(e.sides))
	copy(out, e.sides)
	return out
}

// HasSide reports whether a side number is configured.
func (e *Engine) HasSide(n int) bool {
	for _, s := range e.sides {
		if s.Number == n {
			return true
		}
	}
	return false
}

// Multiplier returns the payout multiplier for a side.
func (e *Engine) Multiplier(n int) (decimal.Decimal, error) {
	for _, s := range e.sides {
		if s.Number == n {
			return s.Multiplier, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownSide, n)
}

// Draw computes the rolled value for a seed pair and nonce: HMAC-SHA256
// keyed by the server seed over "clientSeed:nonce", the first 8 digest
// bytes as an unsigned integer, reduced modulo the domain. The result is
// in [1, domain] and is bit-for-bit reproducible from the inputs.
func (e *Engine) Draw(serverSeed, clientSeed string, nonce int64) int {
	h := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(h, "%s:%d", clientSeed, nonce)
	v := binary.BigEndian.Uint64(h.Sum(nil)[:8])
	return int(v%uint64(e.domain)) + 1
}

// Resolve decides win/loss for a rolled value against the staked sides.
// The roll can land in at most one side's range; the wager wins when that
// side carries a nonzero stake, paying stake times the side's multiplier.
func (e *Engine) Resolve(rolled int, stakes map[int]decimal.Decimal) (bool, decimal.Decimal) {
	for _, s := range e.sides {
		if rolled < s.From || rolled > s.To {
			continue
		}
		stake, ok := stakes[s.Number]
		if !ok || !stake.IsPositive() {
			return false, decimal.Zero
		}
		return true, stake.Mul(s.Multiplier)
	}
	return false, decimal.Zero
}

// VerifyDraw recomputes the draw and compares it against a claimed rolled
// value. A mismatch signals tampering or an implementation bug and is never
// auto-corrected.
func (e *Engine) VerifyDraw(serverSeed, clientSeed string, nonce int64, claimed int) bool {
	return e.Draw(serverSeed, clientSeed, nonce) == claimed
}

// WinChancePercent reports stakedSides/totalSides as a whole percentage.
// This mirrors what players are shown; it matches the true probability only
// when side weights are uniform. CoveredFraction is the exact figure.
func (e *Engine) WinChancePercent(stakes map[int]decimal.Decimal) int {
	staked := 0
	for _, s := range e.sides {
		if stake, ok := stakes[s.Number]; ok && stake.IsPositive() {
			staked++
		}
	}
	return staked * 100 / len(e.sides)
}

// CoveredFraction returns the share of the draw domain covered by sides
// with a nonzero stake: the true win probability of the wager.
func (e *Engine) CoveredFraction(stakes map[int]decimal.Decimal) decimal.Decimal {
	covered := int64(0)
	for _, s := range e.sides {
		if stake, ok := stakes[s.Number]; ok && stake.IsPositive() {
			covered += int64(s.To - s.From + 1)
		}
	}
	return decimal.NewFromInt(covered).Div(decimal.NewFromInt(int64(e.domain)))
}
