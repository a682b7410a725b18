// Package worker exports settled purchases to Google Sheets. Messages
// arrive over AMQP; a periodic backfill catches anything that was never
// announced or whose handling failed for good.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"questbudget/internal/amqp"
	"questbudget/internal/sheets"
	"questbudget/internal/storage"
)

const defaultBackfillInterval = 5 * time.Minute

// ExportWorker moves unexported purchase receipts into the sheet and
// marks them exported.
type ExportWorker struct {
	repo             *storage.Repository
	appender         sheets.ReceiptAppender
	batchSize        int
	backfillInterval time.Duration
}

func NewExportWorker(repo *storage.Repository, appender sheets.ReceiptAppender, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportWorker{
		repo:             repo,
		appender:         appender,
		batchSize:        batchSize,
		backfillInterval: defaultBackfillInterval,
	}
}

// SetBackfillInterval overrides how often the periodic backfill runs.
func (w *ExportWorker) SetBackfillInterval(d time.Duration) {
	if d > 0 {
		w.backfillInterval = d
	}
}

// HandleMessage processes one export message. A purchase that is gone
// or already exported is acknowledged without a write; append failures
// surface so the delivery is retried.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.PurchaseExportMessage) error {
	receipt, err := w.repo.Queries().GetReceipt(ctx, msg.PurchaseID)
	if errors.Is(err, sql.ErrNoRows) {
		slog.WarnContext(ctx, "purchase no longer exists, dropping message",
			"purchase_id", msg.PurchaseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}

	return w.export(ctx, receipt)
}

func (w *ExportWorker) export(ctx context.Context, receipt storage.Receipt) error {
	rowRef, err := w.appender.Append(ctx, receipt)
	if err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}
	if err := w.repo.Queries().MarkPurchaseExported(ctx, receipt.PurchaseID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "receipt exported",
		"purchase_id", receipt.PurchaseID,
		"row_ref", rowRef)
	return nil
}

// Backfill exports every unexported purchase, oldest first. It keeps
// going past individual failures so one poisoned row cannot block the
// rest of the batch.
func (w *ExportWorker) Backfill(ctx context.Context) error {
	receipts, err := w.repo.Queries().ListUnexportedReceipts(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unexported receipts: %w", err)
	}
	if len(receipts) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "backfilling unexported purchases", "count", len(receipts))
	var failed int
	for _, receipt := range receipts {
		if err := w.export(ctx, receipt); err != nil {
			slog.ErrorContext(ctx, "backfill export failed",
				"purchase_id", receipt.PurchaseID,
				"error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("backfill: %d of %d exports failed", failed, len(receipts))
	}
	return nil
}

// Run consumes export messages and backfills on a timer until ctx is
// done. Either loop failing stops the other.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumePurchaseExport(ctx, func(msg *amqp.PurchaseExportMessage) error {
			return w.HandleMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		// Catch up on anything missed while the worker was down.
		if err := w.Backfill(ctx); err != nil {
			slog.ErrorContext(ctx, "startup backfill failed", "error", err)
		}
		ticker := time.NewTicker(w.backfillInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.Backfill(ctx); err != nil {
					slog.ErrorContext(ctx, "periodic backfill failed", "error", err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
