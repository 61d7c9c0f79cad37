package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	apporder "github.com/Zhima-Mochi/storefront/internal/application/order"
	"github.com/Zhima-Mochi/storefront/internal/application/settlement"
	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerCartID         = "X-Cart-ID"
	tracerName           = "storefront.http"
)

type Settler interface {
	Execute(ctx context.Context, in settlement.SettleInput) (*settlement.SettleResult, error)
}

type OrderReader interface {
	Get(ctx context.Context, sessionID string) (*domorder.Order, error)
}

type ProductLister interface {
	List(ctx context.Context) ([]*dominv.Product, error)
}

type Handler struct {
	settler  Settler
	orders   OrderReader
	products ProductLister
	metrics  http.Handler
	log      observability.Logger

	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

// NewHandler wires the HTTP surface. metricsHandler serves /metrics and may be nil.
func NewHandler(
	settler Settler,
	orders OrderReader,
	products ProductLister,
	metricsHandler http.Handler,
	tel observability.Observability,
) *Handler {
	logger, _, metrics := observability.Resolve(tel)
	return &Handler{
		settler:      settler,
		orders:       orders,
		products:     products,
		metrics:      metricsHandler,
		log:          logger.With(observability.F("component", componentHTTPHandler)),
		reqCounter:   metrics.Counter(observability.MHTTPRequests),
		durHistogram: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Trace -> request logger -> metrics -> access log -> handler
	h.route(r, http.MethodGet, "/success", h.handleSuccess)
	h.route(r, http.MethodGet, "/orders/{session_id}", h.handleGetOrder)
	h.route(r, http.MethodGet, "/products", h.handleListProducts)
	h.route(r, http.MethodGet, "/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

// route registers handler behind the trace, logger, metrics and access-log chain, built once.
func (h *Handler) route(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		})(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	r.With(withRoute(method+" "+pattern)).Method(method, pattern, wrapped)
}

// withRoute stores the route template on the request context.
func withRoute(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
		})
	}
}

// handleSuccess runs settlement for the session in the query string. Collaborator failures
// never surface here: the page always gets either the receipt or the fallback view.
func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	cartID := r.Header.Get(headerCartID)

	res, err := h.settler.Execute(r.Context(), settlement.SettleInput{
		SessionID: sessionID,
		CartID:    cartID,
	})
	if errors.Is(err, settlement.ErrSessionIDRequired) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Error("settlement_failed", observability.F("error", err.Error()))
	}

	view := NewReceiptView(res)
	if wantsText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(view.Text()))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type orderResponse struct {
	SessionID     string          `json:"session_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []domorder.Item `json:"items"`
	Subtotal      int64           `json:"subtotal"`
	Shipping      int64           `json:"shipping"`
	Total         int64           `json:"total"`
	Finalized     bool            `json:"finalized"`
	Status        domorder.Status `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		SessionID:     o.SessionID,
		CustomerEmail: o.CustomerEmail,
		Items:         o.Items,
		Subtotal:      o.Subtotal,
		Shipping:      o.Shipping,
		Total:         o.Total,
		Finalized:     o.Finalized,
		Status:        o.Status,
		FailureReason: o.FailureReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}

		ctx, span := tracer.Start(parentCtx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED metrics on the injected instruments.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

func wantsText(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/plain")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, apporder.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, apporder.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template so metrics and logs stay low-cardinality.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
