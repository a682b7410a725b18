package sheets

import (
	"context"

	"questbudget/internal/storage"
)

// ReceiptAppender is the outbound port the export worker writes through.
type ReceiptAppender interface {
	Append(ctx context.Context, r storage.Receipt) (rowRef string, err error)
}
