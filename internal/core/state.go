package core

import "math"

// MonthState is the derived snapshot of a ledger month. All monetary
// figures are rounded to 2 decimals at each derivation step, not once at
// the end; downstream consumers depend on the step-wise values.
type MonthState struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	Income         float64 `json:"income"`
	Ratio          float64 `json:"ratio"`
	NeedsPlanned   float64 `json:"needs_planned"`
	SavingsPlanned float64 `json:"savings_planned"`
	PoolTotal      float64 `json:"pool_total"`
	CashSpent      float64 `json:"cash_spent"`
	EXPEarned      float64 `json:"exp_earned"`
	EXPRedeemed    float64 `json:"exp_redeemed"`
	EXPCap         float64 `json:"exp_cap"`
	EXPAvailable   float64 `json:"exp_available"`
	UnlockedCash   float64 `json:"unlocked_cash"`
	CashAvailable  float64 `json:"cash_available"`
	LockedCash     float64 `json:"locked_cash"`
	// ProjectedRollover is what would roll into savings if no further
	// pool cash were unlocked this month. Projection only; nothing in the
	// engine executes a month close.
	ProjectedRollover float64 `json:"projected_rollover_to_savings"`
	Pie               Pie     `json:"pie"`
}

// Pie is the presentation-oriented breakdown of the same clamped values.
type Pie struct {
	Planned     map[string]float64 `json:"planned"`
	SpendStatus map[string]float64 `json:"spend_status"`
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeState derives the month snapshot from a ledger record.
//
// The ratio is floored to 1.0 when non-positive so the EXP cap division
// can never blow up on a corrupt row. CashAvailable and LockedCash are
// clamped at zero; EXPAvailable deliberately is not.
func ComputeState(m LedgerMonth) MonthState {
	ratio := m.Ratio
	if ratio <= 0 {
		ratio = 1.0
	}

	expCap := Round2(m.PoolTotal / ratio)
	expAvailable := Round2(m.EXPEarned - m.EXPRedeemed)
	unlockedCash := Round2(math.Min(m.EXPEarned*ratio, m.PoolTotal))
	cashAvailable := Round2(math.Max(unlockedCash-m.CashSpent, 0))
	lockedCash := Round2(math.Max(m.PoolTotal-unlockedCash, 0))
	projectedRollover := Round2(m.SavingsPlanned + lockedCash)

	return MonthState{
		Year:              m.Year,
		Month:             m.Month,
		Income:            m.Income,
		Ratio:             ratio,
		NeedsPlanned:      m.NeedsPlanned,
		SavingsPlanned:    m.SavingsPlanned,
		PoolTotal:         m.PoolTotal,
		CashSpent:         m.CashSpent,
		EXPEarned:         m.EXPEarned,
		EXPRedeemed:       m.EXPRedeemed,
		EXPCap:            expCap,
		EXPAvailable:      expAvailable,
		UnlockedCash:      unlockedCash,
		CashAvailable:     cashAvailable,
		LockedCash:        lockedCash,
		ProjectedRollover: projectedRollover,
		Pie: Pie{
			Planned: map[string]float64{
				"Needs":      Round2(math.Max(m.NeedsPlanned, 0)),
				"Savings":    Round2(math.Max(m.SavingsPlanned, 0)),
				"Spend Pool": Round2(math.Max(m.PoolTotal, 0)),
			},
			SpendStatus: map[string]float64{
				"Spent":              Round2(math.Max(m.CashSpent, 0)),
				"Unlocked Remaining": cashAvailable,
				"Locked Spend":       lockedCash,
			},
		},
	}
}

// CapRemaining returns how much EXP can still be usefully earned this
// month, clamped at zero.
func (s MonthState) CapRemaining() float64 {
	return math.Max(s.EXPCap-s.EXPEarned, 0)
}
