// Package services orchestrates the budget economy across storage, AMQP
// and the advisory layer. Every mutation runs inside a single
// transaction so balances are never observed half-applied.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"questbudget/internal/core"
	"questbudget/internal/storage"
)

// MonthService starts and reads ledger months.
type MonthService struct {
	repo *storage.Repository
	now  func() time.Time
}

func NewMonthService(repo *storage.Repository) *MonthService {
	return &MonthService{repo: repo, now: time.Now}
}

// StartMonth creates the ledger month, or re-plans it if it already
// exists. Re-planning replaces income, ratio and the planned split; the
// running totals (cash spent, EXP earned, EXP redeemed) always survive.
// Zero year/month default to the current calendar month.
func (s *MonthService) StartMonth(ctx context.Context, userID int64, year, month int, income, ratio float64) (core.MonthState, error) {
	if err := core.ValidateMonthPlan(income, ratio); err != nil {
		return core.MonthState{}, err
	}
	if year == 0 || month == 0 {
		now := s.now().UTC()
		year, month = now.Year(), int(now.Month())
	}
	if month < 1 || month > 12 {
		return core.MonthState{}, core.Validationf("month must be 1-12, got %d", month)
	}

	needs, savings, pool := core.PlanAllocations(income)

	var result core.LedgerMonth
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetMonth(ctx, userID, year, month)
		switch {
		case err == nil:
			if err := q.UpdateMonthPlan(ctx, existing.ID, income, ratio, needs, savings, pool); err != nil {
				return err
			}
			existing.Income = income
			existing.Ratio = ratio
			existing.NeedsPlanned = needs
			existing.SavingsPlanned = savings
			existing.PoolTotal = pool
			result = existing
			return nil
		case errors.Is(err, sql.ErrNoRows):
			result, err = q.CreateMonth(ctx, core.LedgerMonth{
				UserID:         userID,
				Year:           year,
				Month:          month,
				Income:         income,
				Ratio:          ratio,
				NeedsPlanned:   needs,
				SavingsPlanned: savings,
				PoolTotal:      pool,
			})
			return err
		default:
			return fmt.Errorf("load month: %w", err)
		}
	})
	if err != nil {
		return core.MonthState{}, err
	}

	slog.InfoContext(ctx, "month started",
		"user_id", userID,
		"year", year,
		"month", month,
		"income", income,
		"ratio", ratio)
	return core.ComputeState(result), nil
}

// CurrentState returns the derived state of the current calendar month.
func (s *MonthService) CurrentState(ctx context.Context, userID int64) (core.MonthState, error) {
	now := s.now().UTC()
	return s.State(ctx, userID, now.Year(), int(now.Month()))
}

// State returns the derived state of one ledger month.
func (s *MonthService) State(ctx context.Context, userID int64, year, month int) (core.MonthState, error) {
	m, err := s.repo.Queries().GetMonth(ctx, userID, year, month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthState{}, core.ErrMonthNotStarted
	}
	if err != nil {
		return core.MonthState{}, fmt.Errorf("load month: %w", err)
	}
	return core.ComputeState(m), nil
}
