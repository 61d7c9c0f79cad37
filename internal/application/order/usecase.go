package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService         = "order-service"
	useCaseOrderFinalize = "order.finalize"
	spanPrefix           = "UC."
	publishPeer          = "outbox"
	publishEndpoint      = "order.finalized"
	publishTimeout       = 300 * time.Millisecond
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
	ErrValidation = errors.New("validation")
)

// FinalizeOrderUseCase records the order for a paid session at most once.
type FinalizeOrderUseCase struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	tracer    observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewFinalizeOrderUseCase(
	repo domain.Repository,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *FinalizeOrderUseCase {
	baseLog, tracer, metrics := observability.Resolve(tel)

	return &FinalizeOrderUseCase{
		repo:         repo,
		publisher:    publisher,
		tracer:       tracer,
		log:          baseLog.With(observability.F("service", orderService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

type FinalizeOrderInput struct {
	SessionID     string
	CustomerEmail string
	Items         []domain.Item
	Subtotal      int64
	Shipping      int64
	Total         int64
}

// FinalizeOrderResult carries the stored order. Created is false when a non-empty
// order already existed for the session and nothing was written.
type FinalizeOrderResult struct {
	Order   *domain.Order
	Created bool
}

func (uc *FinalizeOrderUseCase) Execute(ctx context.Context, cmd FinalizeOrderInput) (_ *FinalizeOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseOrderFinalize),
		observability.F("session_id", cmd.SessionID),
	)

	var publishErr, lookupErr error

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"FinalizeOrder",
		attribute.String("use_case", useCaseOrderFinalize),
		attribute.String("order.session_id", cmd.SessionID),
		attribute.Int("order.item_count", len(cmd.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderFinalize),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseOrderFinalize))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if lookupErr != nil {
			fields = append(fields, observability.F("lookup_error", lookupErr.Error()))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.SessionID == "" {
		outcome, statusText = "error", "SESSION_ID_REQUIRED"
		return nil, newValidation("session id is required")
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	existing, repoErr := uc.repo.FindBySession(ctx, cmd.SessionID)
	switch {
	case repoErr == nil && !existing.IsEmpty():
		statusText = "IDEMPOTENT_REPLAY"
		uc.markReplay(span, existing)
		return &FinalizeOrderResult{Order: existing}, nil
	case repoErr == nil, errors.Is(repoErr, domain.ErrNotFound):
		// first settlement, or an empty record that may be overwritten
	default:
		// The atomic insert below still guards against duplicates.
		lookupErr = repoErr
		logger.Warn("order_lookup_failed", observability.F("error", repoErr.Error()))
	}

	entity, derr := domain.New(cmd.SessionID, cmd.CustomerEmail, cmd.Items, cmd.Subtotal, cmd.Shipping, cmd.Total)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	if err := uc.repo.CreateIfAbsent(ctx, entity); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			statusText = "IDEMPOTENT_REPLAY"
			winner, findErr := uc.repo.FindBySession(ctx, cmd.SessionID)
			if findErr != nil {
				// The conflict alone proves another caller settled the session.
				lookupErr = findErr
				winner = nil
			}
			uc.markReplay(span, winner)
			return &FinalizeOrderResult{Order: winner}, nil
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	if uc.publisher != nil {
		publishErr = uc.publish(ctx, domain.NewOrderFinalizedEvent(entity))
		if publishErr != nil {
			statusText = "EVENT_PUBLISH_FAILED"
		}
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.finalized", trace.WithAttributes(
		attribute.String("order.session_id", entity.SessionID),
	))

	return &FinalizeOrderResult{Order: entity.Clone(), Created: true}, nil
}

func (uc *FinalizeOrderUseCase) publish(ctx context.Context, evt domoutbox.Event) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pubStart := time.Now()
	pubOutcome := "success"

	err := uc.publisher.Publish(pubCtx, evt)
	if err != nil {
		pubOutcome = "error"
	} else if pubCtx.Err() != nil {
		pubOutcome = "canceled"
		err = pubCtx.Err()
	}

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
	)
	return err
}

func (uc *FinalizeOrderUseCase) markReplay(span trace.Span, existing *domain.Order) {
	attrs := []attribute.KeyValue{}
	if existing != nil {
		attrs = append(attrs, attribute.String("order.status", string(existing.Status)))
		span.SetAttributes(attrs...)
	}
	span.AddEvent("order.idempotent_replay", trace.WithAttributes(attrs...))
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
