package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService       = "inventory-service"
	useCaseInventoryAdjust = "inventory.adjust"
	spanPrefix             = "UC."
	publishPeer            = "outbox"
	endpointStockAdjusted  = "inventory.stock_adjusted"
	publishTimeout         = 300 * time.Millisecond
)

var ErrRepository = errors.New("inventory: repository failure")

type Line struct {
	ProductID string
	Quantity  int
}

type AdjustStockInput struct {
	SessionID string
	Items     []Line
}

type StockChange struct {
	ProductID string
	Quantity  int
	Previous  int
	Remaining int
}

type Failure struct {
	ProductID string
	Reason    string
	Err       error
}

// AdjustStockResult lists the writes that landed and the line items that were skipped.
type AdjustStockResult struct {
	Changes  []StockChange
	Failures []Failure
}

// AdjustStockUseCase decrements stock for each purchased line item, one write per item.
type AdjustStockUseCase struct {
	invRepo      dominv.Repository
	publisher    domoutbox.Publisher
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewAdjustStockUseCase(invRepo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *AdjustStockUseCase {
	baseLog, tracer, metrics := observability.Resolve(tel)

	return &AdjustStockUseCase{
		invRepo:      invRepo,
		publisher:    publisher,
		log:          baseLog.With(observability.F("service", inventoryService)),
		tracer:       tracer,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute reads the catalogue once, then writes stock-quantity for every line sequentially.
// Failures on one line are recorded and the next line is processed.
func (uc *AdjustStockUseCase) Execute(ctx context.Context, cmd AdjustStockInput) (_ *AdjustStockResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseInventoryAdjust),
		observability.F("session_id", cmd.SessionID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"AdjustStock",
		attribute.String("use_case", useCaseInventoryAdjust),
		attribute.String("order.session_id", cmd.SessionID),
		attribute.Int("inventory.line_count", len(cmd.Items)),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	result := &AdjustStockResult{}

	defer func() {
		lat := time.Since(start).Seconds()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseInventoryAdjust),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseInventoryAdjust))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
			observability.F("adjusted", len(result.Changes)),
			observability.F("skipped", len(result.Failures)),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	if len(cmd.Items) == 0 {
		status = "NO_ITEMS"
		return result, nil
	}

	products, listErr := uc.invRepo.List(ctx)
	if listErr != nil {
		outcome, status = "error", "PRODUCT_LIST_FAILED"
		return nil, fmt.Errorf("%w: list: %w", ErrRepository, listErr)
	}
	catalogue := dominv.Index(products)

	for _, line := range cmd.Items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome, status = "error", "CONTEXT_CANCELED"
			return result, ctxErr
		}

		product, ok := catalogue[line.ProductID]
		if !ok {
			result.Failures = append(result.Failures, Failure{
				ProductID: line.ProductID,
				Reason:    dominv.FailureReasonNotFound,
				Err:       dominv.ErrNotFound,
			})
			logger.Warn("inventory_product_missing", observability.F("product_id", line.ProductID))
			continue
		}

		previous := product.StockQuantity
		if derr := product.Deduct(line.Quantity); derr != nil {
			result.Failures = append(result.Failures, Failure{
				ProductID: line.ProductID,
				Reason:    dominv.FailureReasonInvalidQuantity,
				Err:       derr,
			})
			logger.Warn("inventory_quantity_invalid",
				observability.F("product_id", line.ProductID),
				observability.F("quantity", line.Quantity),
			)
			continue
		}

		if werr := uc.invRepo.UpdateStock(ctx, product.ID, product.StockQuantity); werr != nil {
			// Keep the in-memory view consistent with what was actually stored.
			product.StockQuantity = previous
			result.Failures = append(result.Failures, Failure{
				ProductID: line.ProductID,
				Reason:    dominv.FailureReasonPersistenceError,
				Err:       werr,
			})
			logger.Error("inventory_update_failed",
				observability.F("product_id", line.ProductID),
				observability.F("error", werr.Error()),
			)
			continue
		}

		if product.Oversold() {
			logger.Warn("inventory_oversold",
				observability.F("product_id", product.ID),
				observability.F("remaining", product.StockQuantity),
			)
		}

		result.Changes = append(result.Changes, StockChange{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Previous:  previous,
			Remaining: product.StockQuantity,
		})
		span.AddEvent("inventory.stock_adjusted", trace.WithAttributes(
			attribute.String("product.id", product.ID),
			attribute.Int("inventory.remaining", product.StockQuantity),
		))

		if uc.publisher != nil {
			evt := dominv.NewStockAdjustedEvent(cmd.SessionID, product.ID, line.Quantity, product.StockQuantity)
			if perr := uc.publish(ctx, evt); perr != nil {
				logger.Warn("event_publish_failed",
					observability.F("event", evt.EventName()),
					observability.F("product_id", product.ID),
					observability.F("error", perr.Error()),
				)
			}
		}
	}

	if len(result.Failures) > 0 {
		outcome, status = "partial", "ITEMS_SKIPPED"
	}
	return result, nil
}

func (uc *AdjustStockUseCase) publish(ctx context.Context, evt domoutbox.Event) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pubStart := time.Now()
	pubOutcome := "success"
	err := uc.publisher.Publish(pubCtx, evt)
	if err != nil {
		pubOutcome = "error"
	}

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpointStockAdjusted),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpointStockAdjusted),
	)
	return err
}
