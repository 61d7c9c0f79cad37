package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	appinv "github.com/Zhima-Mochi/storefront/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/storefront/internal/application/order"
	apppay "github.com/Zhima-Mochi/storefront/internal/application/payment"
	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	dompay "github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/storefront/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/storefront/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*dompay.Session
	err      error
	calls    int
}

func (p *fakeProvider) Retrieve(_ context.Context, id string) (*dompay.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dompay.ErrSessionNotFound, id)
	}
	return s, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	receipts []notification.Receipt
	err      error
}

func (n *fakeNotifier) SendReceipt(ctx context.Context, r notification.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return n.err
}

func (n *fakeNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.receipts)
}

type fixture struct {
	uc       *SettleSessionUseCase
	deps     Dependencies
	provider *fakeProvider
	notifier *fakeNotifier
	orders   *memory.OrderRepository
	stock    *memory.InventoryRepository
	carts    *memory.CartStore
}

func paidSession(id string) *dompay.Session {
	return &dompay.Session{
		ID:            id,
		PaymentStatus: dompay.StatusPaid,
		CustomerEmail: "a@b.c",
		Items:         []dompay.LineItem{{ProductID: "p1", Name: "Bull Tee", Quantity: 2, UnitPrice: 2500}},
		Subtotal:      5000,
		Shipping:      500,
		Total:         5500,
	}
}

func newFixture(t *testing.T, tel observability.Observability, sessions ...*dompay.Session) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{sessions: map[string]*dompay.Session{}},
		notifier: &fakeNotifier{},
		orders:   memory.NewOrderRepository(),
		stock:    memory.NewInventoryRepository(dominv.NewProduct("p1", "Bull Tee", 10)),
		carts:    memory.NewCartStore(),
	}
	for _, s := range sessions {
		f.provider.sessions[s.ID] = s
	}
	f.deps = Dependencies{
		Sessions: apppay.NewFetchSessionUseCase(f.provider, tel),
		Orders:   apporder.NewFinalizeOrderUseCase(f.orders, nil, tel),
		Stock:    appinv.NewAdjustStockUseCase(f.stock, nil, tel),
		Tracker:  apporder.NewService(f.orders, nil),
		Notifier: f.notifier,
		Cart:     f.carts,
	}
	f.uc = NewSettleSessionUseCase(f.deps, tel)
	return f
}

// rebuild applies a change to the collaborators and recreates the use case.
func (f *fixture) rebuild(change func(*Dependencies)) {
	change(&f.deps)
	f.uc = NewSettleSessionUseCase(f.deps, nil)
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	n, ok := f.stock.Stock(id)
	require.True(t, ok)
	return n
}

func TestSettle_FirstVisit(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))
	f.carts.Add("sess_123", "p1", 2)

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.True(t, res.Settled)
	assert.True(t, res.OrderCreated)
	assert.True(t, res.ReceiptSent)
	assert.True(t, res.CartCleared)
	require.NotNil(t, res.Session)
	assert.Equal(t, int64(5500), res.Session.Total)

	o, err := f.orders.FindBySession(context.Background(), "sess_123")
	require.NoError(t, err)
	assert.True(t, o.Finalized)
	assert.Equal(t, domorder.StatusCompleted, o.Status)

	assert.Equal(t, 8, f.stockOf(t, "p1"))
	require.Equal(t, 1, f.notifier.sent())
	assert.Equal(t, "a@b.c", f.notifier.receipts[0].Recipient)
	assert.Equal(t, 1, f.carts.Dispatches("sess_123"))
	assert.Empty(t, f.carts.Items("sess_123"))
}

func TestSettle_ReloadIsDuplicate(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)

	res, err := f.uc.Execute(ctx, SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Settled)
	require.NotNil(t, res.Session, "the view still renders the session")

	assert.Equal(t, 8, f.stockOf(t, "p1"))
	assert.Equal(t, 1, f.notifier.sent())
	assert.Equal(t, 1, f.orders.Len())
	assert.Equal(t, 2, f.carts.Dispatches("sess_123"))
}

func TestSettle_FetchFailureRendersFallback(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.err = fmt.Errorf("%w: timeout", dompay.ErrProviderUnavailable)

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123", CartID: "cart_9"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetchFailed, res.Outcome)
	assert.Nil(t, res.Session)
	assert.Zero(t, f.orders.Len())
	assert.Zero(t, f.notifier.sent())
	assert.True(t, res.CartCleared)
	assert.Equal(t, 1, f.carts.Dispatches("cart_9"))
}

func TestSettle_NotificationFailureKeepsSettlement(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))
	f.notifier.err = errors.New("mailer 500")

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.False(t, res.ReceiptSent)
	assert.True(t, res.CartCleared)

	o, err := f.orders.FindBySession(context.Background(), "sess_123")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusReceiptFailed, o.Status)
	assert.Equal(t, 8, f.stockOf(t, "p1"))
}

func TestSettle_MissingProductIsSkipped(t *testing.T) {
	sess := paidSession("sess_123")
	sess.Items = append(sess.Items, dompay.LineItem{ProductID: "ghost", Name: "Ghost", Quantity: 1, UnitPrice: 100})
	f := newFixture(t, nil, sess)

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome)
	require.Len(t, res.StockFailures, 1)
	assert.Equal(t, "ghost", res.StockFailures[0].ProductID)
	require.Len(t, res.StockChanges, 1)
	assert.Equal(t, 8, f.stockOf(t, "p1"))
	assert.Equal(t, 1, f.notifier.sent())
}

func TestSettle_EmptyExistingRecordIsSettled(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))
	f.orders.Seed(&domorder.Order{SessionID: "sess_123"})

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.Equal(t, 8, f.stockOf(t, "p1"))
}

func TestSettle_UnpaidSessionSkipsSteps(t *testing.T) {
	sess := paidSession("sess_u")
	sess.PaymentStatus = dompay.StatusUnpaid
	f := newFixture(t, nil, sess)

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_u"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotPaid, res.Outcome)
	assert.Zero(t, f.orders.Len())
	assert.Equal(t, 10, f.stockOf(t, "p1"))
	assert.Zero(t, f.notifier.sent())
	assert.True(t, res.CartCleared)
}

func TestSettle_PaidWithoutItems(t *testing.T) {
	sess := paidSession("sess_e")
	sess.Items = nil
	f := newFixture(t, nil, sess)

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_e"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoItems, res.Outcome)
	assert.Zero(t, f.orders.Len())
	assert.Zero(t, f.notifier.sent())
}

func TestSettle_MissingSessionID(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.uc.Execute(context.Background(), SettleInput{CartID: "cart_1"})
	assert.ErrorIs(t, err, ErrSessionIDRequired)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Zero(t, f.provider.calls)
	assert.True(t, res.CartCleared)
}

func TestSettle_ConcurrentLoadsSettleOnce(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))

	const loads = 20
	var wg sync.WaitGroup
	results := make([]*SettleResult, loads)
	for i := 0; i < loads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	settled := 0
	for _, r := range results {
		require.NotNil(t, r)
		if r.Settled {
			settled++
		} else {
			assert.Equal(t, OutcomeDuplicate, r.Outcome)
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, f.orders.Len())
	assert.Equal(t, 1, f.notifier.sent())
	assert.Equal(t, 8, f.stockOf(t, "p1"))
}

func TestSettle_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tel := infraobs.New(infraobs.WithTracer(oteltrace.FromProvider(tp, "settlement-test")))
	f := newFixture(t, tel, paidSession("sess_123"))

	_, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)

	names := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range sr.Ended() {
		names[s.Name()] = s
	}
	require.Contains(t, names, "UC.SettleSession")
	require.Contains(t, names, "UC.FetchSession")
	require.Contains(t, names, "UC.FinalizeOrder")
	require.Contains(t, names, "UC.AdjustStock")

	root := names["UC.SettleSession"]
	assert.Equal(t, root.SpanContext().TraceID(), names["UC.FinalizeOrder"].SpanContext().TraceID())
	assert.Equal(t, root.SpanContext().SpanID(), names["UC.FinalizeOrder"].Parent().SpanID())
}

// cancelAfterCreate drops the caller's context as soon as the order row is written.
type cancelAfterCreate struct {
	*memory.OrderRepository
	cancel context.CancelFunc
}

func (r *cancelAfterCreate) CreateIfAbsent(ctx context.Context, o *domorder.Order) error {
	err := r.OrderRepository.CreateIfAbsent(ctx, o)
	r.cancel()
	return err
}

func TestSettle_CallerCancellationDoesNotAbandonSequence(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.rebuild(func(d *Dependencies) {
		d.Orders = apporder.NewFinalizeOrderUseCase(&cancelAfterCreate{OrderRepository: f.orders, cancel: cancel}, nil, nil)
	})

	res, err := f.uc.Execute(ctx, SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, OutcomeSettled, res.Outcome)
	assert.False(t, res.StockIncomplete)
	assert.True(t, res.ReceiptSent)
	assert.True(t, res.CartCleared)
	assert.Equal(t, 8, f.stockOf(t, "p1"))
	assert.Equal(t, 1, f.notifier.sent())

	o, err := f.orders.FindBySession(context.Background(), "sess_123")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCompleted, o.Status)

	res, err = f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, 8, f.stockOf(t, "p1"))
}

type interruptedStock struct{}

func (interruptedStock) Execute(context.Context, appinv.AdjustStockInput) (*appinv.AdjustStockResult, error) {
	return &appinv.AdjustStockResult{
		Changes: []appinv.StockChange{{ProductID: "p1", Quantity: 2, Previous: 10, Remaining: 8}},
	}, context.DeadlineExceeded
}

func TestSettle_InterruptedStockStepKeepsLandedWrites(t *testing.T) {
	f := newFixture(t, nil, paidSession("sess_123"))
	f.rebuild(func(d *Dependencies) { d.Stock = interruptedStock{} })

	res, err := f.uc.Execute(context.Background(), SettleInput{SessionID: "sess_123"})
	require.NoError(t, err)

	assert.True(t, res.StockIncomplete)
	require.Len(t, res.StockChanges, 1)
	assert.Equal(t, "p1", res.StockChanges[0].ProductID)
	assert.True(t, res.ReceiptSent)

	o, err := f.orders.FindBySession(context.Background(), "sess_123")
	require.NoError(t, err)
	// Stock never marked adjusted; the receipt still completes the order.
	assert.Equal(t, domorder.StatusCompleted, o.Status)
}
