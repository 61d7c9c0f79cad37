package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(t *testing.T, sessionID string) *domorder.Order {
	t.Helper()
	o, err := domorder.New(sessionID, "a@b.c", []domorder.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 100}}, 100, 0, 100)
	require.NoError(t, err)
	return o
}

func TestOrderRepository_ConcurrentCreateHasOneWinner(t *testing.T) {
	repo := NewOrderRepository()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.CreateIfAbsent(context.Background(), testOrder(t, "sess_1")); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, domorder.ErrConflict)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, repo.Len())
}

func TestOrderRepository_ReadsAreCopies(t *testing.T) {
	repo := NewOrderRepository()
	require.NoError(t, repo.CreateIfAbsent(context.Background(), testOrder(t, "sess_1")))

	got, err := repo.FindBySession(context.Background(), "sess_1")
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, err := repo.FindBySession(context.Background(), "sess_1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestOrderRepository_EmptyRecordIsReplaceable(t *testing.T) {
	repo := NewOrderRepository()
	repo.Seed(&domorder.Order{SessionID: "sess_1"})

	require.NoError(t, repo.CreateIfAbsent(context.Background(), testOrder(t, "sess_1")))
	assert.ErrorIs(t, repo.CreateIfAbsent(context.Background(), testOrder(t, "sess_1")), domorder.ErrConflict)
	assert.ErrorIs(t, repo.Update(context.Background(), testOrder(t, "missing")), domorder.ErrNotFound)
}

func TestInventoryRepository(t *testing.T) {
	repo := NewInventoryRepository(dominv.NewProduct("p2", "Bear Hoodie", 5), dominv.NewProduct("p1", "Bull Tee", 10), nil)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)

	products[0].StockQuantity = 0
	n, ok := repo.Stock("p1")
	require.True(t, ok)
	assert.Equal(t, 10, n)

	require.NoError(t, repo.UpdateStock(context.Background(), "p1", -1))
	n, _ = repo.Stock("p1")
	assert.Equal(t, -1, n)

	assert.ErrorIs(t, repo.UpdateStock(context.Background(), "ghost", 1), dominv.ErrNotFound)
	_, ok = repo.Stock("ghost")
	assert.False(t, ok)
}

func TestCartStore(t *testing.T) {
	s := NewCartStore()
	s.Add("c1", "p1", 2)
	s.Add("c1", "p1", 1)
	assert.Equal(t, map[string]int{"p1": 3}, s.Items("c1"))

	require.NoError(t, s.Dispatch(context.Background(), "c1", cart.EmptyCart()))
	assert.Empty(t, s.Items("c1"))
	assert.Equal(t, 1, s.Dispatches("c1"))

	assert.ErrorIs(t, s.Dispatch(context.Background(), "", cart.EmptyCart()), cart.ErrCartIDRequired)
	assert.ErrorIs(t, s.Dispatch(context.Background(), "c1", cart.Action{Type: "ADD"}), cart.ErrUnknownAction)
	assert.Equal(t, 1, s.Dispatches("c1"))
}
