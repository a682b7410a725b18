package services

import (
	"context"
	"errors"
	"testing"

	"questbudget/internal/core"
	"questbudget/internal/storage"
)

type capturingPublisher struct {
	published []int64
	err       error
}

func (p *capturingPublisher) PublishPurchaseExport(_ context.Context, purchaseID int64) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, purchaseID)
	return nil
}

func newTestShopService(repo *storage.Repository, pub PurchasePublisher) *ShopService {
	ss := NewShopService(repo, pub)
	ss.now = fixedClock
	return ss
}

func TestCreateItemDefaultsEXPCostToTier(t *testing.T) {
	repo := newTestRepo(t)
	userID := newTestUser(t, repo)
	ss := newTestShopService(repo, nil)
	ctx := context.Background()

	item, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Pizza night", Tier: 150, CashPrice: 25, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.EXPCost != 150 {
		t.Errorf("exp cost = %d, want tier value 150", item.EXPCost)
	}

	item, err = ss.CreateItem(ctx, userID, ItemInput{
		Name: "Cheap treat", Tier: 150, EXPCost: intPtr(50), CashPrice: 5, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.EXPCost != 50 {
		t.Errorf("exp cost = %d, want explicit 50", item.EXPCost)
	}

	if _, err := ss.CreateItem(ctx, userID, ItemInput{Name: "Free", Tier: 100, CashPrice: 0, Active: true}); err == nil {
		t.Error("zero cash price should be rejected")
	}
}

// earnEXP bumps the month's earned EXP directly.
func earnEXP(t *testing.T, repo *storage.Repository, userID int64, exp float64) {
	t.Helper()
	ctx := context.Background()
	m, err := repo.Queries().GetMonth(ctx, userID, 2025, 3)
	if err != nil {
		t.Fatalf("GetMonth: %v", err)
	}
	if err := repo.Queries().SetMonthEXPEarned(ctx, m.ID, exp); err != nil {
		t.Fatalf("SetMonthEXPEarned: %v", err)
	}
}

func TestPurchaseSettlesAtomically(t *testing.T) {
	repo := newTestRepo(t)
	userID := newTestUser(t, repo)
	pub := &capturingPublisher{}
	ss := newTestShopService(repo, pub)
	ctx := context.Background()

	startTestMonth(t, repo, userID, 1000, 1) // pool 200
	earnEXP(t, repo, userID, 100)            // unlocks 100 cash

	item, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Pizza night", Tier: 100, EXPCost: intPtr(60), CashPrice: 40, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	purchase, err := ss.Purchase(ctx, userID, item.ID)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if purchase.EXPSpent != 60 || purchase.CashSpent != 40 {
		t.Errorf("got %+v, want 60 EXP / 40 cash", purchase)
	}

	m, err := repo.Queries().GetMonth(ctx, userID, 2025, 3)
	if err != nil {
		t.Fatalf("GetMonth: %v", err)
	}
	state := core.ComputeState(m)
	if state.EXPAvailable != 40 { // 100 earned - 60 redeemed
		t.Errorf("exp available = %v, want 40", state.EXPAvailable)
	}
	if state.CashAvailable != 60 { // 100 unlocked - 40 spent
		t.Errorf("cash available = %v, want 60", state.CashAvailable)
	}

	if len(pub.published) != 1 || pub.published[0] != purchase.ID {
		t.Errorf("published = %v, want [%d]", pub.published, purchase.ID)
	}
}

func TestPurchaseRejections(t *testing.T) {
	repo := newTestRepo(t)
	userID := newTestUser(t, repo)
	ss := newTestShopService(repo, nil)
	ctx := context.Background()

	startTestMonth(t, repo, userID, 1000, 1)
	earnEXP(t, repo, userID, 50) // 50 EXP, 50 unlocked cash

	expensive, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Too much EXP", Tier: 100, EXPCost: intPtr(60), CashPrice: 10, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	pricey, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Too much cash", Tier: 100, EXPCost: intPtr(10), CashPrice: 80, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	inactive, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Retired", Tier: 100, EXPCost: intPtr(10), CashPrice: 10, Active: false,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	tests := []struct {
		name    string
		itemID  int64
		wantErr error
	}{
		{"insufficient exp", expensive.ID, core.ErrInsufficientEXP},
		{"insufficient cash", pricey.ID, core.ErrInsufficientCash},
		{"inactive item", inactive.ID, core.ErrItemInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ss.Purchase(ctx, userID, tt.itemID); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("unknown item", func(t *testing.T) {
		_, err := ss.Purchase(ctx, userID, 9999)
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("got %v, want NotFoundError", err)
		}
	})

	// No balances moved and no receipts written.
	m, err := repo.Queries().GetMonth(ctx, userID, 2025, 3)
	if err != nil {
		t.Fatalf("GetMonth: %v", err)
	}
	if m.EXPRedeemed != 0 || m.CashSpent != 0 {
		t.Errorf("rejected purchases must not move balances: %+v", m)
	}
	receipts, err := repo.Queries().ListUnexportedReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnexportedReceipts: %v", err)
	}
	if len(receipts) != 0 {
		t.Errorf("rejected purchases must not write receipts, got %d", len(receipts))
	}
}

func TestPurchaseRequiresStartedMonth(t *testing.T) {
	repo := newTestRepo(t)
	userID := newTestUser(t, repo)
	ss := newTestShopService(repo, nil)
	ctx := context.Background()

	item, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Treat", Tier: 100, CashPrice: 10, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if _, err := ss.Purchase(ctx, userID, item.ID); !errors.Is(err, core.ErrMonthNotStarted) {
		t.Errorf("got %v, want ErrMonthNotStarted", err)
	}
}

func TestPurchaseSurvivesPublishFailure(t *testing.T) {
	repo := newTestRepo(t)
	userID := newTestUser(t, repo)
	pub := &capturingPublisher{err: errors.New("broker down")}
	ss := newTestShopService(repo, pub)
	ctx := context.Background()

	startTestMonth(t, repo, userID, 1000, 1)
	earnEXP(t, repo, userID, 100)

	item, err := ss.CreateItem(ctx, userID, ItemInput{
		Name: "Treat", Tier: 100, EXPCost: intPtr(10), CashPrice: 10, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	purchase, err := ss.Purchase(ctx, userID, item.ID)
	if err != nil {
		t.Fatalf("publish failure must not fail the purchase: %v", err)
	}

	// It stays queued for the backfill.
	receipts, err := repo.Queries().ListUnexportedReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnexportedReceipts: %v", err)
	}
	if len(receipts) != 1 || receipts[0].PurchaseID != purchase.ID {
		t.Errorf("got %+v, want the settled purchase pending export", receipts)
	}
}
