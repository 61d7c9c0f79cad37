package settlement

import (
	"context"

	"github.com/Zhima-Mochi/storefront/internal/application"
	appinv "github.com/Zhima-Mochi/storefront/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/storefront/internal/application/order"
	apppay "github.com/Zhima-Mochi/storefront/internal/application/payment"
	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
)

type (
	SessionFetcher = application.UseCase[apppay.FetchSessionInput, *dompay.Session]
	OrderFinalizer = application.UseCase[apporder.FinalizeOrderInput, *apporder.FinalizeOrderResult]
	StockAdjuster  = application.UseCase[appinv.AdjustStockInput, *appinv.AdjustStockResult]
)

// OrderTracker advances the persisted status cursor of a settled order.
type OrderTracker interface {
	MarkStockAdjusted(ctx context.Context, sessionID string) error
	MarkReceipt(ctx context.Context, sessionID string, sendErr error) error
}
