package fair

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustEngine(t *testing.T, domain int, multipliers map[int]decimal.Decimal) *Engine {
	t.Helper()
	e, err := NewEngine(domain, multipliers)
	require.NoError(t, err)
	return e
}

// fiveSides is the production layout: sides 2-6, each at 5x covering a
// fifth of a 100-value domain.
func fiveSides() map[int]decimal.Decimal {
	m := make(map[int]decimal.Decimal)
	for side := 2; side <= 6; side++ {
		m[side] = decimal.NewFromInt(5)
	}
	return m
}

func TestNewEngine_Layout(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	sides := e.Sides()
	require.Len(t, sides, 5)

	// Contiguous disjoint ranges in ascending side order.
	next := 1
	for _, s := range sides {
		assert.Equal(t, next, s.From)
		assert.Equal(t, next+19, s.To)
		next = s.To + 1
	}
	assert.Equal(t, 101, next)
}

func TestNewEngine_Validation(t *testing.T) {
	tests := []struct {
		name        string
		domain      int
		multipliers map[int]decimal.Decimal
		wantErr     error
	}{
		{"zero domain", 0, fiveSides(), ErrEmptyDomain},
		{"no sides", 100, nil, ErrNoSides},
		{"multiplier of one", 100, map[int]decimal.Decimal{2: decimal.NewFromInt(1)}, ErrBadMultiplier},
		{"negative multiplier", 100, map[int]decimal.Decimal{2: decimal.NewFromInt(-2)}, ErrBadMultiplier},
		{"overflowing coverage", 100, map[int]decimal.Decimal{
			2: decimal.NewFromInt(2),
			3: decimal.NewFromInt(2),
			4: decimal.NewFromInt(2),
		}, ErrDomainOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.domain, tt.multipliers)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestDraw_KnownVectors pins the draw to fixed values so any change to the
// algorithm (digest, byte width, reduction) is caught immediately.
func TestDraw_KnownVectors(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	const (
		serverSeed = "1d55ab18f3dd2af1ecf37d1e5f0ab9f5"
		clientSeed = "9At6T0QFLrIAx2sq"
	)

	tests := []struct {
		nonce  int64
		rolled int
	}{
		{1, 39},
		{2, 19},
		{3, 80},
		{42, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.rolled, e.Draw(serverSeed, clientSeed, tt.nonce), "nonce %d", tt.nonce)
	}

	assert.Equal(t, 100, e.Draw("e3b0c44298fc1c149afbf4c8996fb924", "lucky-client-seed", 1))
	assert.Equal(t, 67, e.Draw("e3b0c44298fc1c149afbf4c8996fb924", "lucky-client-seed", 2))
}

func TestDraw_DeterministicAndInRange(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	rapid.Check(t, func(t *rapid.T) {
		serverSeed := rapid.StringMatching(`[0-9a-f]{32}`).Draw(t, "serverSeed")
		clientSeed := rapid.StringN(1, 64, 64).Draw(t, "clientSeed")
		nonce := rapid.Int64Range(0, 1<<40).Draw(t, "nonce")

		first := e.Draw(serverSeed, clientSeed, nonce)
		second := e.Draw(serverSeed, clientSeed, nonce)

		if first != second {
			t.Fatalf("draw not deterministic: %d then %d", first, second)
		}
		if first < 1 || first > e.DomainSize() {
			t.Fatalf("draw %d outside domain [1,%d]", first, e.DomainSize())
		}
	})
}

func TestDraw_NonceChangesResult(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	// Across a sweep of nonces the draw must not be constant; a frozen
	// result would mean the nonce is not mixed in.
	seen := make(map[int]bool)
	for nonce := int64(0); nonce < 50; nonce++ {
		seen[e.Draw("1d55ab18f3dd2af1ecf37d1e5f0ab9f5", "client", nonce)] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestResolve_WinAndLoss(t *testing.T) {
	// One side at 2x covering half of the domain (1..50).
	e := mustEngine(t, 100, map[int]decimal.Decimal{2: decimal.NewFromInt(2)})
	stakes := map[int]decimal.Decimal{2: decimal.NewFromInt(20)}

	win, payout := e.Resolve(10, stakes)
	assert.True(t, win)
	assert.True(t, payout.Equal(decimal.NewFromInt(40)), "payout %s", payout)

	win, payout = e.Resolve(60, stakes)
	assert.False(t, win)
	assert.True(t, payout.IsZero())

	// Boundary values of the covered range.
	win, _ = e.Resolve(1, stakes)
	assert.True(t, win)
	win, _ = e.Resolve(50, stakes)
	assert.True(t, win)
	win, _ = e.Resolve(51, stakes)
	assert.False(t, win)
}

func TestResolve_UnstakedSideLoses(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	// Roll lands in side 3's range (21..40) but only side 2 is staked.
	stakes := map[int]decimal.Decimal{2: decimal.NewFromInt(10)}
	win, payout := e.Resolve(30, stakes)
	assert.False(t, win)
	assert.True(t, payout.IsZero())

	// Zero stake counts as unstaked.
	stakes[3] = decimal.Zero
	win, _ = e.Resolve(30, stakes)
	assert.False(t, win)
}

func TestResolve_PayoutScalesWithStake(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	rapid.Check(t, func(t *rapid.T) {
		side := rapid.IntRange(2, 6).Draw(t, "side")
		stake := decimal.NewFromInt(rapid.Int64Range(1, 100000).Draw(t, "stake")).Div(decimal.NewFromInt(100))
		stakes := map[int]decimal.Decimal{side: stake}

		for _, s := range e.Sides() {
			win, payout := e.Resolve(s.From, stakes)
			if s.Number == side {
				if !win {
					t.Fatalf("roll %d in staked side %d range did not win", s.From, side)
				}
				expected := stake.Mul(s.Multiplier)
				if !payout.Equal(expected) {
					t.Fatalf("payout %s, expected %s", payout, expected)
				}
			} else if win {
				t.Fatalf("roll %d won on unstaked side %d", s.From, s.Number)
			}
		}
	})
}

func TestVerifyDraw(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	const (
		serverSeed = "1d55ab18f3dd2af1ecf37d1e5f0ab9f5"
		clientSeed = "9At6T0QFLrIAx2sq"
	)

	assert.True(t, e.VerifyDraw(serverSeed, clientSeed, 1, 39))
	assert.False(t, e.VerifyDraw(serverSeed, clientSeed, 1, 40))
	assert.False(t, e.VerifyDraw(serverSeed, "other-client", 1, 39))
}

func TestWinChancePercent(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	stake := func(sides ...int) map[int]decimal.Decimal {
		m := make(map[int]decimal.Decimal)
		for _, s := range sides {
			m[s] = decimal.NewFromInt(10)
		}
		return m
	}

	assert.Equal(t, 0, e.WinChancePercent(nil))
	assert.Equal(t, 20, e.WinChancePercent(stake(2)))
	assert.Equal(t, 60, e.WinChancePercent(stake(2, 4, 6)))
	assert.Equal(t, 100, e.WinChancePercent(stake(2, 3, 4, 5, 6)))

	// Zero stakes do not count as staked sides.
	m := stake(2)
	m[3] = decimal.Zero
	assert.Equal(t, 20, e.WinChancePercent(m))
}

func TestCoveredFraction(t *testing.T) {
	e := mustEngine(t, 100, fiveSides())

	stakes := map[int]decimal.Decimal{2: decimal.NewFromInt(10), 3: decimal.NewFromInt(5)}
	frac := e.CoveredFraction(stakes)
	assert.True(t, frac.Equal(decimal.NewFromFloat(0.4)), "fraction %s", frac)

	assert.True(t, e.CoveredFraction(nil).IsZero())
}
