package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	paymentService      = "payment-service"
	useCaseSessionFetch = "payment.session_fetch"
	spanPrefix          = "UC."
)

var ErrSessionIDRequired = errors.New("payment: session id is required")

type FetchSessionInput struct {
	SessionID string
}

// FetchSessionUseCase reads a checkout session from the provider and checks its shape.
type FetchSessionUseCase struct {
	provider   dompay.Provider
	tracer     observability.Tracer
	log        observability.Logger
	reqCounter observability.Counter
	durHist    observability.Histogram
}

func NewFetchSessionUseCase(provider dompay.Provider, tel observability.Observability) *FetchSessionUseCase {
	baseLog, tracer, metrics := observability.Resolve(tel)
	return &FetchSessionUseCase{
		provider:   provider,
		tracer:     tracer,
		log:        baseLog.With(observability.F("service", paymentService)),
		reqCounter: metrics.Counter(observability.MUsecaseRequests),
		durHist:    metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *FetchSessionUseCase) Execute(ctx context.Context, in FetchSessionInput) (_ *dompay.Session, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseSessionFetch),
		observability.F("session_id", in.SessionID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"FetchSession",
		attribute.String("use_case", useCaseSessionFetch),
		attribute.String("payment.session_id", in.SessionID),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	var paymentStatus dompay.Status

	defer func() {
		lat := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseSessionFetch),
			observability.L("outcome", outcome),
		)
		uc.durHist.Observe(lat, observability.L("use_case", useCaseSessionFetch))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		}
		if paymentStatus != "" {
			fields = append(fields, observability.F("payment_status", string(paymentStatus)))
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

	if in.SessionID == "" {
		outcome, status = "error", "SESSION_ID_REQUIRED"
		return nil, ErrSessionIDRequired
	}

	sess, perr := uc.provider.Retrieve(ctx, in.SessionID)
	if perr != nil {
		outcome = "error"
		switch {
		case errors.Is(perr, dompay.ErrSessionNotFound):
			status = "SESSION_NOT_FOUND"
		case errors.Is(perr, dompay.ErrMalformedSession):
			status = "SESSION_MALFORMED"
		default:
			status = "PROVIDER_UNAVAILABLE"
		}
		return nil, fmt.Errorf("payment: retrieve session: %w", perr)
	}
	if verr := sess.Validate(); verr != nil {
		outcome, status = "error", "SESSION_MALFORMED"
		return nil, verr
	}

	paymentStatus = sess.PaymentStatus
	span.SetAttributes(
		attribute.String("payment.status", string(sess.PaymentStatus)),
		attribute.Int("payment.item_count", len(sess.Items)),
	)
	if !sess.IsPaid() {
		status = "NOT_PAID"
	}
	return sess, nil
}
