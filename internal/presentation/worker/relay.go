package workerpresentation

import (
	"context"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	spanPrefix   = "Worker."
	relayService = "settlement-relay"
	relayPeer    = "event-sink"
	relayTimeout = 5 * time.Second
)

// Relay forwards settlement events from the in-process bus to an external sink.
type Relay struct {
	subscriber domoutbox.Subscriber
	sink       domoutbox.Publisher
	tracer     observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
}

func NewRelay(subscriber domoutbox.Subscriber, sink domoutbox.Publisher, tel observability.Observability) *Relay {
	logger, tracer, metrics := observability.Resolve(tel)
	return &Relay{
		subscriber:   subscriber,
		sink:         sink,
		tracer:       tracer,
		log:          logger.With(observability.F("service", relayService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
	}
}

// Events lists the event names the relay forwards.
func Events() []string {
	return []string{
		domorder.OrderFinalizedEvent{}.EventName(),
		dominv.StockAdjustedEvent{}.EventName(),
	}
}

func (r *Relay) Start() {
	if r.subscriber == nil || r.sink == nil {
		return
	}
	for _, name := range Events() {
		r.subscriber.Subscribe(name, r.forward)
	}
}

func (r *Relay) forward(ctx context.Context, e domoutbox.Event) (err error) {
	name := e.EventName()
	useCase := "relay." + name

	ctx, span := r.tracer.Start(ctx, spanPrefix+"Relay",
		attribute.String("use_case", useCase),
		attribute.String("event", name),
	)
	attrs := map[string]string{"use_case": useCase}
	if k, ok := e.(domoutbox.Keyed); ok {
		attrs["partition_key"] = k.PartitionKey()
	}
	ctx, logger := WithEventContext(ctx, r.log, name, attrs)
	start := time.Now()
	outcome, status := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()
		r.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		r.durHistogram.Observe(lat, observability.L("use_case", useCase))
		r.extCounter.Add(1,
			observability.L("peer", relayPeer),
			observability.L("endpoint", name),
			observability.L("outcome", outcome),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
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

	pubCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	if perr := r.sink.Publish(pubCtx, e); perr != nil {
		outcome, status = "error", "SINK_PUBLISH_FAILED"
		return fmt.Errorf("relay: publish %s: %w", name, perr)
	}
	return nil
}
