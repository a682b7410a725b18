package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questbudget/internal/core"
	"questbudget/internal/storage"
)

const (
	contextNextTasks = 3
	contextTopItems  = 5
)

// ChatContext is the advisory snapshot handed to the LLM. It is a
// read-only projection; nothing in it can move money.
type ChatContext struct {
	MonthState  core.MonthState `json:"month_state"`
	TaskSummary TaskSummary     `json:"task_summary"`
	ShopSummary ShopSummary     `json:"shop_summary"`
	Settings    *core.Settings  `json:"settings"`
	Rules       ContextRules    `json:"rules"`
	// SelectedItem is set only for item-specific spend advice.
	SelectedItem *SuggestedItem `json:"selected_item,omitempty"`
}

type TaskSummary struct {
	Date           string     `json:"date"`
	PendingToday   int        `json:"pending_today"`
	CompletedToday int        `json:"completed_today"`
	NextTasks      []NextTask `json:"next_tasks"`
}

type NextTask struct {
	Title      string `json:"title"`
	EXPValue   int    `json:"exp_value"`
	InstanceID int64  `json:"instance_id"`
}

type ShopSummary struct {
	SuggestedItems []SuggestedItem `json:"suggested_items"`
}

type SuggestedItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Tier      int     `json:"tier"`
	EXPCost   int     `json:"exp_cost"`
	CashPrice float64 `json:"cash_price"`
	Category  string  `json:"category"`
}

type ContextRules struct {
	AdvisoryOnly               bool `json:"advisory_only"`
	CannotSpendMoreThanCash    bool `json:"cannot_spend_more_than_cash_available"`
	CannotSpendMoreEXPThanHeld bool `json:"cannot_spend_more_exp_than_exp_available"`
}

// ContextBuilder assembles the advisory context from storage.
type ContextBuilder struct {
	repo *storage.Repository
	now  func() time.Time
}

func NewContextBuilder(repo *storage.Repository) *ContextBuilder {
	return &ContextBuilder{repo: repo, now: time.Now}
}

// Build assembles the snapshot for the given date; an empty date means
// today. The current month must have been started.
func (b *ContextBuilder) Build(ctx context.Context, userID int64, date string) (ChatContext, error) {
	if date == "" {
		date = b.now().UTC().Format(core.DateLayout)
	} else if _, err := core.ParseDate(date); err != nil {
		return ChatContext{}, err
	}

	q := b.repo.Queries()
	now := b.now().UTC()

	month, err := q.GetMonth(ctx, userID, now.Year(), int(now.Month()))
	if errors.Is(err, sql.ErrNoRows) {
		return ChatContext{}, core.ErrMonthNotStarted
	}
	if err != nil {
		return ChatContext{}, fmt.Errorf("load month: %w", err)
	}

	instances, err := q.ListInstances(ctx, storage.ListInstancesParams{UserID: userID, Date: date})
	if err != nil {
		return ChatContext{}, fmt.Errorf("list instances: %w", err)
	}

	summary := TaskSummary{Date: date, NextTasks: []NextTask{}}
	for _, inst := range instances {
		switch inst.Status {
		case core.StatusPending:
			summary.PendingToday++
			if len(summary.NextTasks) < contextNextTasks {
				summary.NextTasks = append(summary.NextTasks, NextTask{
					Title:      inst.Title,
					EXPValue:   inst.EXPValue,
					InstanceID: inst.ID,
				})
			}
		case core.StatusCompleted:
			summary.CompletedToday++
		}
	}

	items, err := q.ListActiveShopItems(ctx, userID, contextTopItems)
	if err != nil {
		return ChatContext{}, fmt.Errorf("list shop items: %w", err)
	}
	suggested := make([]SuggestedItem, 0, len(items))
	for _, item := range items {
		suggested = append(suggested, SuggestedItem{
			ID:        item.ID,
			Name:      item.Name,
			Tier:      item.Tier,
			EXPCost:   item.EXPCost,
			CashPrice: item.CashPrice,
			Category:  item.Category,
		})
	}

	var settings *core.Settings
	if s, err := q.GetSettings(ctx, userID); err == nil {
		settings = &s
	} else if !errors.Is(err, sql.ErrNoRows) {
		return ChatContext{}, fmt.Errorf("load settings: %w", err)
	}

	return ChatContext{
		MonthState:  core.ComputeState(month),
		TaskSummary: summary,
		ShopSummary: ShopSummary{SuggestedItems: suggested},
		Settings:    settings,
		Rules: ContextRules{
			AdvisoryOnly:               true,
			CannotSpendMoreThanCash:    true,
			CannotSpendMoreEXPThanHeld: true,
		},
	}, nil
}
