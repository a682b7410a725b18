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

// PurchasePublisher notifies the export pipeline about a settled
// purchase. Publishing is best-effort; the worker backfills anything
// that was never announced.
type PurchasePublisher interface {
	PublishPurchaseExport(ctx context.Context, purchaseID int64) error
}

// ShopService manages the reward catalog and purchase settlement.
type ShopService struct {
	repo      *storage.Repository
	publisher PurchasePublisher
	now       func() time.Time
}

func NewShopService(repo *storage.Repository, publisher PurchasePublisher) *ShopService {
	return &ShopService{repo: repo, publisher: publisher, now: time.Now}
}

// ItemInput is the payload for creating a shop item. A nil EXPCost
// defaults to the tier value.
type ItemInput struct {
	Name      string
	Tier      int
	EXPCost   *int
	CashPrice float64
	Category  string
	Active    bool
}

func (s *ShopService) CreateItem(ctx context.Context, userID int64, in ItemInput) (core.ShopItem, error) {
	expCost := in.Tier
	if in.EXPCost != nil {
		expCost = *in.EXPCost
	}

	item := core.ShopItem{
		UserID:    userID,
		Name:      in.Name,
		Tier:      in.Tier,
		EXPCost:   expCost,
		CashPrice: in.CashPrice,
		Category:  in.Category,
		Active:    in.Active,
	}
	if err := item.Validate(); err != nil {
		return core.ShopItem{}, err
	}

	created, err := s.repo.Queries().CreateShopItem(ctx, item)
	if err != nil {
		return core.ShopItem{}, fmt.Errorf("create shop item: %w", err)
	}

	slog.InfoContext(ctx, "shop item created",
		"user_id", userID,
		"item_id", created.ID,
		"tier", created.Tier,
		"exp_cost", created.EXPCost)
	return created, nil
}

func (s *ShopService) ListItems(ctx context.Context, userID int64) ([]core.ShopItem, error) {
	return s.repo.Queries().ListShopItems(ctx, userID)
}

func (s *ShopService) GetItem(ctx context.Context, userID, itemID int64) (core.ShopItem, error) {
	item, err := s.repo.Queries().GetShopItem(ctx, userID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ShopItem{}, core.NotFoundf("shop item %d not found", itemID)
	}
	if err != nil {
		return core.ShopItem{}, fmt.Errorf("load shop item: %w", err)
	}
	return item, nil
}

// checkAffordable verifies the item against the current month state.
// EXP and cash are independent gates; both must pass.
func checkAffordable(item core.ShopItem, state core.MonthState) error {
	if float64(item.EXPCost) > state.EXPAvailable {
		return core.ErrInsufficientEXP
	}
	if item.CashPrice > state.CashAvailable {
		return core.ErrInsufficientCash
	}
	return nil
}

// Purchase settles an item atomically: both balances are checked and
// moved in one transaction, so two concurrent purchases can never
// overdraw. The export message is published only after commit.
func (s *ShopService) Purchase(ctx context.Context, userID, itemID int64) (core.Purchase, error) {
	now := s.now().UTC()
	var purchase core.Purchase
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		item, err := q.GetShopItem(ctx, userID, itemID)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFoundf("shop item %d not found", itemID)
		}
		if err != nil {
			return fmt.Errorf("load shop item: %w", err)
		}
		if !item.Active {
			return core.ErrItemInactive
		}

		month, err := q.GetMonth(ctx, userID, now.Year(), int(now.Month()))
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrMonthNotStarted
		}
		if err != nil {
			return fmt.Errorf("load month: %w", err)
		}

		if err := checkAffordable(item, core.ComputeState(month)); err != nil {
			return err
		}

		purchase, err = q.CreatePurchase(ctx, core.Purchase{
			UserID:      userID,
			MonthID:     month.ID,
			ItemID:      item.ID,
			EXPSpent:    float64(item.EXPCost),
			CashSpent:   item.CashPrice,
			PurchasedAt: now,
		})
		if err != nil {
			return err
		}

		return q.ApplyPurchaseTotals(ctx, month.ID,
			core.Round2(month.EXPRedeemed+float64(item.EXPCost)),
			core.Round2(month.CashSpent+item.CashPrice))
	})
	if err != nil {
		return core.Purchase{}, err
	}

	s.publishExport(ctx, purchase.ID)

	slog.InfoContext(ctx, "purchase settled",
		"user_id", userID,
		"purchase_id", purchase.ID,
		"item_id", itemID,
		"exp_spent", purchase.EXPSpent,
		"cash_spent", purchase.CashSpent)
	return purchase, nil
}

func (s *ShopService) publishExport(ctx context.Context, purchaseID int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "export publisher not available, worker will backfill",
			"purchase_id", purchaseID)
		return
	}
	if err := s.publisher.PublishPurchaseExport(ctx, purchaseID); err != nil {
		// The purchase is committed; the worker backfill picks it up.
		slog.ErrorContext(ctx, "failed to publish purchase export",
			"purchase_id", purchaseID,
			"error", err)
	}
}
