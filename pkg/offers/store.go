// Package offers keeps the marketplace offer list. The list is owned by a
// Store that persists it through an injected gokv.Store backend and notifies
// subscribers after every change.
package offers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/gokv"
	"github.com/sirupsen/logrus"
)

const DefaultKey = "offers"

type EventType int

const (
	EventLoaded EventType = iota + 1
	EventAdded
	EventRemoved
	EventCleared
	EventPruned
)

func (t EventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventCleared:
		return "cleared"
	case EventPruned:
		return "pruned"
	default:
		return "unknown"
	}
}

// Event describes one change. Offer is set for added/removed events, Offers
// is the full list after the change.
type Event struct {
	Type   EventType
	Offer  *Offer
	Offers []Offer
}

type Listener func(Event)

type SubscriptionID uint64

type subscription struct {
	id SubscriptionID
	fn Listener
}

type Store struct {
	backend gokv.Store
	key     string
	now     func() time.Time

	mu     sync.RWMutex
	offers []Offer

	// emitMu is taken before mu is released so events go out in the
	// order the mutations happened.
	emitMu sync.Mutex

	subMu  sync.Mutex
	nextID SubscriptionID
	subs   []subscription
}

func NewStore(backend gokv.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		backend: backend,
		key:     key,
		now:     time.Now,
		offers:  []Offer{},
	}
}

// Load replaces the in-memory list with the persisted one. A missing key is
// an empty list.
func (s *Store) Load() error {
	var list []Offer
	found, err := s.backend.Get(s.key, &list)
	if err != nil {
		return fmt.Errorf("load offers: %w", err)
	}
	if !found || list == nil {
		list = []Offer{}
	}

	s.mu.Lock()
	s.offers = list
	snapshot := s.snapshotLocked()
	s.unlockAndNotify(Event{Type: EventLoaded, Offers: snapshot})
	return nil
}

// Check reads the persisted key to verify the backend answers.
func (s *Store) Check() error {
	var list []Offer
	_, err := s.backend.Get(s.key, &list)
	return err
}

func (s *Store) List() []Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offers)
}

func (s *Store) Get(id string) (Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.offers[i], true
	}
	return Offer{}, false
}

// Add validates o, fills in ID and CreatedAt and persists the new list.
func (s *Store) Add(o Offer) (Offer, error) {
	now := s.now()
	if err := o.validate(now); err != nil {
		return Offer{}, err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = now.UTC()

	s.mu.Lock()
	if s.indexLocked(o.ID) >= 0 {
		s.mu.Unlock()
		return Offer{}, fmt.Errorf("%w: %s", ErrDuplicateOffer, o.ID)
	}
	next := append(s.snapshotLocked(), o)
	if err := s.persistLocked(next); err != nil {
		s.mu.Unlock()
		return Offer{}, err
	}
	snapshot := s.snapshotLocked()
	added := o
	s.unlockAndNotify(Event{Type: EventAdded, Offer: &added, Offers: snapshot})
	return o, nil
}

func (s *Store) Remove(id string) (Offer, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Offer{}, fmt.Errorf("%w: %s", ErrOfferNotFound, id)
	}
	removed := s.offers[i]
	next := make([]Offer, 0, len(s.offers)-1)
	next = append(next, s.offers[:i]...)
	next = append(next, s.offers[i+1:]...)
	if err := s.persistLocked(next); err != nil {
		s.mu.Unlock()
		return Offer{}, err
	}
	snapshot := s.snapshotLocked()
	s.unlockAndNotify(Event{Type: EventRemoved, Offer: &removed, Offers: snapshot})
	return removed, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	if err := s.persistLocked([]Offer{}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.unlockAndNotify(Event{Type: EventCleared, Offers: []Offer{}})
	return nil
}

// Prune drops expired offers and returns how many were removed.
func (s *Store) Prune() (int, error) {
	now := s.now()

	s.mu.Lock()
	next := make([]Offer, 0, len(s.offers))
	for _, o := range s.offers {
		if !o.Expired(now) {
			next = append(next, o)
		}
	}
	pruned := len(s.offers) - len(next)
	if pruned == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	if err := s.persistLocked(next); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	snapshot := s.snapshotLocked()
	s.unlockAndNotify(Event{Type: EventPruned, Offers: snapshot})
	return pruned, nil
}

// Subscribe registers fn for change events. Listeners run synchronously on
// the goroutine that made the change, after the store lock is released, in
// subscription order.
func (s *Store) Subscribe(fn Listener) SubscriptionID {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	s.subs = append(s.subs, subscription{id: s.nextID, fn: fn})
	return s.nextID
}

// Unsubscribe removes a listener, reporting whether it was registered.
func (s *Store) Unsubscribe(id SubscriptionID) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// unlockAndNotify releases mu and delivers e. Listeners may read the store
// but must not modify it.
func (s *Store) unlockAndNotify(e Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Unlock()
	s.notify(e)
}

func (s *Store) notify(e Event) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.Errorf("offers listener %d panic on %s event: %v", sub.id, e.Type, r)
				}
			}()
			sub.fn(e)
		}()
	}
}

func (s *Store) persistLocked(next []Offer) error {
	if err := s.backend.Set(s.key, next); err != nil {
		return fmt.Errorf("persist offers: %w", err)
	}
	s.offers = next
	return nil
}

func (s *Store) snapshotLocked() []Offer {
	out := make([]Offer, len(s.offers))
	copy(out, s.offers)
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.offers {
		if s.offers[i].ID == id {
			return i
		}
	}
	return -1
}
