package settlement

import (
	"context"
	"errors"
	"time"

	appinv "github.com/Zhima-Mochi/storefront/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/storefront/internal/application/order"
	apppay "github.com/Zhima-Mochi/storefront/internal/application/payment"
	domcart "github.com/Zhima-Mochi/storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/storefront/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	settlementService = "settlement-service"
	useCaseSettle     = "settlement.settle"
	spanPrefix        = "UC."
	cartClearTimeout  = 2 * time.Second
	sequenceTimeout   = 30 * time.Second
)

var ErrSessionIDRequired = errors.New("settlement: session id is required")

type Outcome string

const (
	OutcomeSettled     Outcome = "settled"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeNotPaid     Outcome = "not_paid"
	OutcomeNoItems     Outcome = "no_items"
	OutcomeOrderFailed Outcome = "order_failed"
	OutcomeInvalid     Outcome = "invalid"
)

type SettleInput struct {
	SessionID string
	// CartID names the cart to empty. Empty means the session ID is used.
	CartID string
}

// SettleResult describes what one page load did. Session is nil when the fetch failed.
// StockIncomplete means the adjust step returned an error; StockChanges still lists what landed.
type SettleResult struct {
	SessionID       string
	Session         *dompay.Session
	Order           *domorder.Order
	Settled         bool
	Duplicate       bool
	OrderCreated    bool
	StockChanges    []appinv.StockChange
	StockFailures   []appinv.Failure
	StockIncomplete bool
	ReceiptSent     bool
	CartCleared     bool
	Outcome         Outcome
}

// outcome of steps 2-6, shared between callers collapsed by singleflight.
type settlement struct {
	order           *domorder.Order
	created         bool
	duplicate       bool
	failed          bool
	stockChanges    []appinv.StockChange
	stockFailures   []appinv.Failure
	stockIncomplete bool
	receiptSent     bool
}

type Dependencies struct {
	Sessions SessionFetcher
	Orders   OrderFinalizer
	Stock    StockAdjuster
	Tracker  OrderTracker
	Notifier notification.Sender
	Cart     domcart.Controller
}

// SettleSessionUseCase runs the post-payment settlement sequence. Every collaborator failure
// is logged and swallowed; the caller always gets a result to render.
type SettleSessionUseCase struct {
	deps  Dependencies
	group singleflight.Group

	tracer       observability.Tracer
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	stepCounter  observability.Counter   // settlement_steps_total{step,outcome}
}

func NewSettleSessionUseCase(deps Dependencies, tel observability.Observability) *SettleSessionUseCase {
	baseLog, tracer, metrics := observability.Resolve(tel)
	return &SettleSessionUseCase{
		deps:         deps,
		tracer:       tracer,
		log:          baseLog.With(observability.F("service", settlementService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		stepCounter:  metrics.Counter(observability.MSettlementSteps),
	}
}

func (uc *SettleSessionUseCase) Execute(ctx context.Context, in SettleInput) (res *SettleResult, err error) {
	cartID := in.CartID
	if cartID == "" {
		cartID = in.SessionID
	}

	ctx, logger := logctx.Enrich(ctx, uc.log,
		observability.F("use_case", useCaseSettle),
		observability.F("session_id", in.SessionID),
	)
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"SettleSession",
		attribute.String("use_case", useCaseSettle),
		attribute.String("payment.session_id", in.SessionID),
	)
	start := time.Now()
	res = &SettleResult{SessionID: in.SessionID}

	defer func() {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil || res.Outcome == OutcomeOrderFailed || res.Outcome == OutcomeFetchFailed {
			outcome = "error"
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseSettle),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseSettle))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", string(res.Outcome)),
			observability.F("latency_seconds", lat),
			observability.F("cart_cleared", res.CartCleared),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)

		span.SetAttributes(
			attribute.String("settlement.outcome", string(res.Outcome)),
			attribute.Bool("settlement.cart_cleared", res.CartCleared),
		)
		if outcome == "error" {
			if err != nil {
				span.RecordError(err)
			}
			span.SetStatus(codes.Error, string(res.Outcome))
		} else {
			span.SetStatus(codes.Ok, string(res.Outcome))
		}
		span.End()
	}()

	// Runs on every branch, before the telemetry block above.
	defer func() {
		res.CartCleared = uc.clearCart(ctx, cartID)
	}()

	if in.SessionID == "" {
		res.Outcome = OutcomeInvalid
		return res, ErrSessionIDRequired
	}

	// Once triggered, the sequence runs to completion even if the caller goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sequenceTimeout)
	defer cancel()

	sess, ferr := uc.deps.Sessions.Execute(ctx, apppay.FetchSessionInput{SessionID: in.SessionID})
	if ferr != nil {
		uc.step("fetch_session", "error")
		logger.Warn("session_fetch_failed", observability.F("error", ferr.Error()))
		res.Outcome = OutcomeFetchFailed
		return res, nil
	}
	uc.step("fetch_session", "success")
	res.Session = sess

	// Only a paid session settles. Anything else renders the fallback view.
	if !sess.IsPaid() {
		res.Outcome = OutcomeNotPaid
		return res, nil
	}
	if len(sess.Items) == 0 {
		res.Outcome = OutcomeNoItems
		return res, nil
	}

	ran := false
	v, _, _ := uc.group.Do(sess.ID, func() (any, error) {
		ran = true
		return uc.settle(ctx, logger, sess), nil
	})
	out := v.(*settlement)

	res.Order = out.order
	switch {
	case !ran:
		// Another in-flight call for the same session did the work.
		res.Duplicate = true
		res.Outcome = OutcomeDuplicate
		span.AddEvent("settlement.collapsed")
		return res, nil
	case out.failed:
		res.Outcome = OutcomeOrderFailed
		return res, nil
	case out.duplicate:
		res.Duplicate = true
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	res.Settled = true
	res.OrderCreated = out.created
	res.StockChanges = out.stockChanges
	res.StockFailures = out.stockFailures
	res.StockIncomplete = out.stockIncomplete
	res.ReceiptSent = out.receiptSent
	res.Outcome = OutcomeSettled
	return res, nil
}

// settle runs the guard, order creation, stock adjustment and receipt steps for a paid session.
func (uc *SettleSessionUseCase) settle(ctx context.Context, logger observability.Logger, sess *dompay.Session) *settlement {
	out := &settlement{}

	finalized, err := uc.deps.Orders.Execute(ctx, apporder.FinalizeOrderInput{
		SessionID:     sess.ID,
		CustomerEmail: sess.CustomerEmail,
		Items:         orderItems(sess.Items),
		Subtotal:      sess.Subtotal,
		Shipping:      sess.Shipping,
		Total:         sess.Total,
	})
	if err != nil {
		uc.step("create_order", "error")
		logger.Error("order_create_failed", observability.F("error", err.Error()))
		out.failed = true
		return out
	}
	out.order = finalized.Order
	if !finalized.Created {
		uc.step("create_order", "duplicate")
		logger.Info("settlement_skipped_existing_order")
		out.duplicate = true
		return out
	}
	uc.step("create_order", "success")
	out.created = true

	adjusted, err := uc.deps.Stock.Execute(ctx, appinv.AdjustStockInput{
		SessionID: sess.ID,
		Items:     stockLines(sess.Items),
	})
	if adjusted != nil {
		// Writes that landed before an error still count.
		out.stockChanges = adjusted.Changes
		out.stockFailures = adjusted.Failures
	}
	switch {
	case err != nil:
		out.stockIncomplete = true
		stepOutcome := "error"
		if len(out.stockChanges) > 0 {
			stepOutcome = "partial"
		}
		uc.step("adjust_stock", stepOutcome)
		logger.Error("stock_adjust_failed",
			observability.F("adjusted", len(out.stockChanges)),
			observability.F("error", err.Error()),
		)
	default:
		if len(adjusted.Failures) > 0 {
			uc.step("adjust_stock", "partial")
		} else {
			uc.step("adjust_stock", "success")
		}
		uc.track(logger, "stock_adjusted", uc.deps.Tracker.MarkStockAdjusted(ctx, sess.ID))
	}

	sendErr := uc.deps.Notifier.SendReceipt(ctx, notification.Receipt{
		Recipient: sess.CustomerEmail,
		Session:   sess,
	})
	if sendErr != nil {
		uc.step("send_receipt", "error")
		logger.Error("receipt_send_failed",
			observability.F("recipient", sess.CustomerEmail),
			observability.F("error", sendErr.Error()),
		)
	} else {
		uc.step("send_receipt", "success")
		out.receiptSent = true
	}
	uc.track(logger, "receipt", uc.deps.Tracker.MarkReceipt(ctx, sess.ID, sendErr))

	return out
}

func (uc *SettleSessionUseCase) clearCart(ctx context.Context, cartID string) bool {
	logger := logctx.FromOr(ctx, uc.log)
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartClearTimeout)
	defer cancel()

	if err := uc.deps.Cart.Dispatch(cctx, cartID, domcart.EmptyCart()); err != nil {
		uc.step("clear_cart", "error")
		logger.Warn("cart_clear_failed",
			observability.F("cart_id", cartID),
			observability.F("error", err.Error()),
		)
		return false
	}
	uc.step("clear_cart", "success")
	trace.SpanFromContext(ctx).AddEvent("cart.cleared")
	return true
}

func (uc *SettleSessionUseCase) track(logger observability.Logger, step string, err error) {
	if err == nil {
		return
	}
	logger.Warn("order_status_update_failed",
		observability.F("step", step),
		observability.F("error", err.Error()),
	)
}

func (uc *SettleSessionUseCase) step(name, outcome string) {
	uc.stepCounter.Add(1,
		observability.L("step", name),
		observability.L("outcome", outcome),
	)
}

func orderItems(items []dompay.LineItem) []domorder.Item {
	out := make([]domorder.Item, 0, len(items))
	for _, it := range items {
		out = append(out, domorder.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return out
}

func stockLines(items []dompay.LineItem) []appinv.Line {
	out := make([]appinv.Line, 0, len(items))
	for _, it := range items {
		out = append(out, appinv.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
