package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"questbudget/internal/amqp"
	"questbudget/internal/core"
	"questbudget/internal/sheets/memory"
	"questbudget/internal/storage"
)

func setupPurchase(t *testing.T) (*storage.Repository, core.Purchase) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	q := repo.Queries()
	user, err := q.CreateUser(ctx, "test@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	month, err := q.CreateMonth(ctx, core.LedgerMonth{UserID: user.ID, Year: 2025, Month: 3, Income: 1000, Ratio: 1})
	if err != nil {
		t.Fatalf("CreateMonth: %v", err)
	}
	item, err := q.CreateShopItem(ctx, core.ShopItem{
		UserID: user.ID, Name: "Movie night", Tier: 1, EXPCost: 100, CashPrice: 15, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateShopItem: %v", err)
	}
	purchase, err := q.CreatePurchase(ctx, core.Purchase{
		UserID: user.ID, MonthID: month.ID, ItemID: item.ID,
		EXPSpent: 100, CashSpent: 15, PurchasedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	return repo, purchase
}

func TestHandleMessageExportsAndMarks(t *testing.T) {
	repo, purchase := setupPurchase(t)
	store := memory.New()
	w := NewExportWorker(repo, store, 10)
	ctx := context.Background()

	msg := amqp.NewPurchaseExportMessage(purchase.ID)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	receipts := store.Receipts()
	if len(receipts) != 1 || receipts[0].ItemName != "Movie night" {
		t.Fatalf("got %+v, want one Movie night receipt", receipts)
	}

	unexported, err := repo.Queries().ListUnexportedReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnexportedReceipts: %v", err)
	}
	if len(unexported) != 0 {
		t.Errorf("purchase should be marked exported, got %d unexported", len(unexported))
	}
}

func TestHandleMessageDropsMissingPurchase(t *testing.T) {
	repo, _ := setupPurchase(t)
	w := NewExportWorker(repo, memory.New(), 10)

	msg := amqp.NewPurchaseExportMessage(9999)
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Errorf("missing purchase should be dropped without error, got %v", err)
	}
}

func TestHandleMessageKeepsUnexportedOnAppendFailure(t *testing.T) {
	repo, purchase := setupPurchase(t)
	store := memory.New()
	store.FailWith(errors.New("sheet unavailable"))
	w := NewExportWorker(repo, store, 10)
	ctx := context.Background()

	msg := amqp.NewPurchaseExportMessage(purchase.ID)
	if err := w.HandleMessage(ctx, msg); err == nil {
		t.Fatal("append failure should surface so the delivery is retried")
	}

	unexported, err := repo.Queries().ListUnexportedReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnexportedReceipts: %v", err)
	}
	if len(unexported) != 1 {
		t.Errorf("purchase must stay unexported after a failed append, got %d", len(unexported))
	}
}

func TestBackfill(t *testing.T) {
	repo, purchase := setupPurchase(t)
	store := memory.New()
	w := NewExportWorker(repo, store, 10)
	ctx := context.Background()

	if err := w.Backfill(ctx); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	receipts := store.Receipts()
	if len(receipts) != 1 || receipts[0].PurchaseID != purchase.ID {
		t.Fatalf("got %+v, want the pending purchase", receipts)
	}

	// Second run finds nothing to do.
	if err := w.Backfill(ctx); err != nil {
		t.Fatalf("Backfill repeat: %v", err)
	}
	if len(store.Receipts()) != 1 {
		t.Error("backfill must not re-export")
	}
}
