package core

import (
	"math"
	"testing"
)

func TestComputeState_Example(t *testing.T) {
	// income=1000, ratio=1.0: 500/300/200 split, expCap=200.
	m := LedgerMonth{
		Year: 2025, Month: 3,
		Income: 1000, Ratio: 1.0,
		NeedsPlanned: 500, SavingsPlanned: 300, PoolTotal: 200,
	}

	state := ComputeState(m)
	if state.EXPCap != 200 {
		t.Errorf("EXPCap = %v, want 200", state.EXPCap)
	}
	if state.UnlockedCash != 0 || state.CashAvailable != 0 {
		t.Errorf("fresh month should have nothing unlocked, got unlocked=%v available=%v",
			state.UnlockedCash, state.CashAvailable)
	}
	if state.LockedCash != 200 {
		t.Errorf("LockedCash = %v, want 200", state.LockedCash)
	}
	if state.ProjectedRollover != 500 {
		t.Errorf("ProjectedRollover = %v, want 500", state.ProjectedRollover)
	}

	// Earning 50 EXP unlocks 50 cash.
	m.EXPEarned = 50
	state = ComputeState(m)
	if state.UnlockedCash != 50 {
		t.Errorf("UnlockedCash = %v, want 50", state.UnlockedCash)
	}
	if state.CashAvailable != 50 {
		t.Errorf("CashAvailable = %v, want 50", state.CashAvailable)
	}

	// Spending 30 leaves 20 available.
	m.CashSpent = 30
	state = ComputeState(m)
	if state.CashAvailable != 20 {
		t.Errorf("CashAvailable = %v, want 20", state.CashAvailable)
	}
}

func TestComputeState_Clamps(t *testing.T) {
	tests := []struct {
		name              string
		month             LedgerMonth
		wantCashAvailable float64
		wantLockedCash    float64
		wantUnlockedCash  float64
	}{
		{
			name: "spending ahead of unlocking clamps cash available at zero",
			month: LedgerMonth{
				Ratio: 1, PoolTotal: 200, EXPEarned: 10, CashSpent: 50,
			},
			wantCashAvailable: 0,
			wantLockedCash:    190,
			wantUnlockedCash:  10,
		},
		{
			name: "unlocked cash caps at pool total",
			month: LedgerMonth{
				Ratio: 1, PoolTotal: 200, EXPEarned: 9999,
			},
			wantCashAvailable: 200,
			wantLockedCash:    0,
			wantUnlockedCash:  200,
		},
		{
			name: "adversarial cash spent never yields negative locked cash",
			month: LedgerMonth{
				Ratio: 2, PoolTotal: 100, EXPEarned: 500, CashSpent: 100000,
			},
			wantCashAvailable: 0,
			wantLockedCash:    0,
			wantUnlockedCash:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := ComputeState(tt.month)
			if state.CashAvailable != tt.wantCashAvailable {
				t.Errorf("CashAvailable = %v, want %v", state.CashAvailable, tt.wantCashAvailable)
			}
			if state.LockedCash != tt.wantLockedCash {
				t.Errorf("LockedCash = %v, want %v", state.LockedCash, tt.wantLockedCash)
			}
			if state.UnlockedCash != tt.wantUnlockedCash {
				t.Errorf("UnlockedCash = %v, want %v", state.UnlockedCash, tt.wantUnlockedCash)
			}
			if state.CashAvailable < 0 || state.LockedCash < 0 {
				t.Error("clamped figures must never be negative")
			}
			if state.UnlockedCash > state.PoolTotal {
				t.Errorf("UnlockedCash %v exceeds pool %v", state.UnlockedCash, state.PoolTotal)
			}
		})
	}
}

func TestComputeState_RatioFloor(t *testing.T) {
	// A non-positive ratio is floored to 1.0 instead of dividing by zero.
	m := LedgerMonth{Ratio: 0, PoolTotal: 200, EXPEarned: 50}
	state := ComputeState(m)
	if state.Ratio != 1.0 {
		t.Errorf("Ratio = %v, want floor 1.0", state.Ratio)
	}
	if state.EXPCap != 200 {
		t.Errorf("EXPCap = %v, want 200", state.EXPCap)
	}
}

func TestComputeState_EXPAvailableUnclamped(t *testing.T) {
	// exp_available has no floor; over-redemption surfaces as negative.
	m := LedgerMonth{Ratio: 1, PoolTotal: 200, EXPEarned: 10, EXPRedeemed: 25}
	state := ComputeState(m)
	if state.EXPAvailable != -15 {
		t.Errorf("EXPAvailable = %v, want -15", state.EXPAvailable)
	}
}

func TestComputeState_StepwiseRounding(t *testing.T) {
	// Each derivation rounds to 2 decimals before the next step.
	m := LedgerMonth{
		Ratio:     3,
		PoolTotal: 100,
		EXPEarned: 11.111,
	}
	state := ComputeState(m)
	// expCap = round(100/3) = 33.33; unlocked = round(11.111*3) = 33.33
	if state.EXPCap != 33.33 {
		t.Errorf("EXPCap = %v, want 33.33", state.EXPCap)
	}
	if state.UnlockedCash != 33.33 {
		t.Errorf("UnlockedCash = %v, want 33.33", state.UnlockedCash)
	}
	if state.LockedCash != 66.67 {
		t.Errorf("LockedCash = %v, want 66.67", state.LockedCash)
	}
}

func TestComputeState_PieMatchesClampedValues(t *testing.T) {
	m := LedgerMonth{
		Ratio: 1, NeedsPlanned: 500, SavingsPlanned: 300, PoolTotal: 200,
		EXPEarned: 50, CashSpent: 30,
	}
	state := ComputeState(m)
	if got := state.Pie.Planned["Spend Pool"]; got != 200 {
		t.Errorf("planned pie pool = %v, want 200", got)
	}
	if got := state.Pie.SpendStatus["Unlocked Remaining"]; got != state.CashAvailable {
		t.Errorf("spend pie unlocked remaining = %v, want %v", got, state.CashAvailable)
	}
	if got := state.Pie.SpendStatus["Locked Spend"]; got != state.LockedCash {
		t.Errorf("spend pie locked = %v, want %v", got, state.LockedCash)
	}
}

func TestPlanAllocations(t *testing.T) {
	needs, savings, pool := PlanAllocations(1000)
	if needs != 500 || savings != 300 || pool != 200 {
		t.Errorf("PlanAllocations(1000) = %v/%v/%v, want 500/300/200", needs, savings, pool)
	}

	// Odd incomes round each slice independently.
	needs, savings, pool = PlanAllocations(1234.56)
	if needs != 617.28 || savings != 370.37 || pool != 246.91 {
		t.Errorf("PlanAllocations(1234.56) = %v/%v/%v", needs, savings, pool)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.0},  // float repr of 1.005 is just below the half
		{1.015, 1.01}, // likewise
		{2.675, 2.67},
		{1.006, 1.01},
		{-1.006, -1.01},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCapRemaining(t *testing.T) {
	s := MonthState{EXPCap: 200, EXPEarned: 150}
	if got := s.CapRemaining(); got != 50 {
		t.Errorf("CapRemaining = %v, want 50", got)
	}
	s.EXPEarned = 500
	if got := s.CapRemaining(); got != 0 {
		t.Errorf("CapRemaining past cap = %v, want 0", got)
	}
}
