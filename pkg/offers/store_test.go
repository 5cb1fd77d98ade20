package offers

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/philippgille/gokv/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// flakyBackend wraps a MemoryStore and fails writes on demand.
type flakyBackend struct {
	*MemoryStore
	failSet bool
}

func (f *flakyBackend) Set(k string, v interface{}) error {
	if f.failSet {
		return errBackendDown
	}
	return f.MemoryStore.Set(k, v)
}

func newTestStore(t *testing.T) (*Store, *MemoryStore) {
	t.Helper()
	backend := NewMemoryStore(encoding.JSON)
	s := NewStore(backend, "")
	require.NoError(t, s.Load())
	t.Cleanup(func() { _ = s.Close() })
	return s, backend
}

func TestStoreAddListGet(t *testing.T) {
	s, _ := newTestStore(t)

	o, err := s.Add(Offer{TokenID: "42", Price: "1.5", Maker: "0xabc"})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, DefaultCurrency, o.Currency)
	assert.False(t, o.CreatedAt.IsZero())

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, o, list[0])

	got, ok := s.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, o, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestStoreListIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Add(Offer{TokenID: "1", Price: "1"})
	require.NoError(t, err)

	list := s.List()
	list[0].Price = "999"
	assert.Equal(t, "1", s.List()[0].Price)
}

func TestStoreAddValidation(t *testing.T) {
	s, _ := newTestStore(t)

	tests := []struct {
		name  string
		offer Offer
	}{
		{"missing token", Offer{Price: "1"}},
		{"missing price", Offer{TokenID: "1"}},
		{"bad price", Offer{TokenID: "1", Price: "ten"}},
		{"negative price", Offer{TokenID: "1", Price: "-1"}},
		{"fraction price", Offer{TokenID: "1", Price: "1/3"}},
		{"hex price", Offer{TokenID: "1", Price: "0x10"}},
		{"binary price", Offer{TokenID: "1", Price: "0b101"}},
		{"exponent price", Offer{TokenID: "1", Price: "1e3"}},
		{"trailing dot", Offer{TokenID: "1", Price: "1."}},
		{"expired", Offer{TokenID: "1", Price: "1", Expiry: time.Now().Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(tt.offer)
			assert.ErrorIs(t, err, ErrInvalidOffer)
		})
	}
	assert.Equal(t, 0, s.Len())
}

func TestStoreAcceptsDecimalPrices(t *testing.T) {
	s, _ := newTestStore(t)

	for _, price := range []string{"0", "42", "0.000001", " 12.50 "} {
		o, err := s.Add(Offer{TokenID: "1", Price: price})
		require.NoError(t, err, price)
		assert.Equal(t, strings.TrimSpace(price), o.Price)
	}
	assert.Equal(t, 4, s.Len())
}

func TestStoreDuplicateID(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Add(Offer{ID: "fixed", TokenID: "1", Price: "1"})
	require.NoError(t, err)
	_, err = s.Add(Offer{ID: "fixed", TokenID: "2", Price: "2"})
	assert.ErrorIs(t, err, ErrDuplicateOffer)
	assert.Equal(t, 1, s.Len())
}

func TestStoreRemoveAndClear(t *testing.T) {
	s, _ := newTestStore(t)

	a, err := s.Add(Offer{TokenID: "1", Price: "1"})
	require.NoError(t, err)
	b, err := s.Add(Offer{TokenID: "2", Price: "2"})
	require.NoError(t, err)

	removed, err := s.Remove(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, removed)
	assert.Equal(t, []Offer{b}, s.List())

	_, err = s.Remove(a.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)

	require.NoError(t, s.Clear())
	assert.Empty(t, s.List())
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	s, backend := newTestStore(t)

	o, err := s.Add(Offer{TokenID: "7", Price: "0.25", Contract: "0x0123"})
	require.NoError(t, err)

	other := NewStore(backend, DefaultKey)
	require.NoError(t, other.Load())
	list := other.List()
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].ID)
	assert.Equal(t, "0x0123", list[0].Contract)
	assert.True(t, o.CreatedAt.Equal(list[0].CreatedAt))
}

func TestStoreRollsBackOnPersistFailure(t *testing.T) {
	backend := &flakyBackend{MemoryStore: NewMemoryStore(encoding.JSON)}
	s := NewStore(backend, DefaultKey)
	require.NoError(t, s.Load())

	o, err := s.Add(Offer{TokenID: "1", Price: "1"})
	require.NoError(t, err)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	backend.failSet = true
	_, err = s.Add(Offer{TokenID: "2", Price: "2"})
	assert.ErrorIs(t, err, errBackendDown)
	_, err = s.Remove(o.ID)
	assert.ErrorIs(t, err, errBackendDown)
	assert.ErrorIs(t, s.Clear(), errBackendDown)

	assert.Equal(t, []Offer{o}, s.List())
	assert.Empty(t, events)
}

func TestStoreEvents(t *testing.T) {
	s, _ := newTestStore(t)

	var events []Event
	id := s.Subscribe(func(e Event) { events = append(events, e) })

	o, err := s.Add(Offer{TokenID: "1", Price: "1"})
	require.NoError(t, err)
	_, err = s.Remove(o.ID)
	require.NoError(t, err)
	require.NoError(t, s.Clear())
	require.NoError(t, s.Load())

	require.Len(t, events, 4)
	assert.Equal(t, EventAdded, events[0].Type)
	require.NotNil(t, events[0].Offer)
	assert.Equal(t, o.ID, events[0].Offer.ID)
	assert.Len(t, events[0].Offers, 1)

	assert.Equal(t, EventRemoved, events[1].Type)
	assert.Empty(t, events[1].Offers)
	assert.Equal(t, EventCleared, events[2].Type)
	assert.Equal(t, EventLoaded, events[3].Type)
	assert.Equal(t, "loaded", events[3].Type.String())

	assert.True(t, s.Unsubscribe(id))
	assert.False(t, s.Unsubscribe(id))

	_, err = s.Add(Offer{TokenID: "2", Price: "2"})
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestStoreListenerOrderAndPanic(t *testing.T) {
	s, _ := newTestStore(t)

	var order []int
	s.Subscribe(func(Event) { order = append(order, 1) })
	s.Subscribe(func(Event) { panic("listener bug") })
	s.Subscribe(func(Event) { order = append(order, 3) })

	_, err := s.Add(Offer{TokenID: "1", Price: "1"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, order)
}

func TestStoreListenerMayReadStore(t *testing.T) {
	s, _ := newTestStore(t)

	var seen int
	s.Subscribe(func(Event) { seen = s.Len() })

	_, err := s.Add(Offer{TokenID: "1", Price: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestStorePrune(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Add(Offer{TokenID: "1", Price: "1", Expiry: now.Add(time.Minute)})
	require.NoError(t, err)
	keep, err := s.Add(Offer{TokenID: "2", Price: "1", Expiry: now.Add(time.Hour)})
	require.NoError(t, err)
	forever, err := s.Add(Offer{TokenID: "3", Price: "1"})
	require.NoError(t, err)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	now = now.Add(2 * time.Minute)
	n, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []Offer{keep, forever}, s.List())
	require.Len(t, events, 1)
	assert.Equal(t, EventPruned, events[0].Type)

	n, err = s.Prune()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, events, 1)
}

func TestStoreEventsFollowMutationOrder(t *testing.T) {
	s, _ := newTestStore(t)

	var sizes []int
	s.Subscribe(func(e Event) { sizes = append(sizes, len(e.Offers)) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(Offer{TokenID: "1", Price: "1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, sizes, 50)
	for i, n := range sizes {
		assert.Equal(t, i+1, n)
	}
}

func TestStoreConcurrentAdds(t *testing.T) {
	s, backend := newTestStore(t)

	var mu sync.Mutex
	var added int
	s.Subscribe(func(e Event) {
		if e.Type == EventAdded {
			mu.Lock()
			added++
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(Offer{TokenID: "1", Price: "1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
	assert.Equal(t, 20, added)

	var persisted []Offer
	found, err := backend.Get(DefaultKey, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, persisted, 20)
}
