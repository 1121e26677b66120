package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/porast/jigman/internal/jig/entity"
)

// MemoryStore is an in-process Store and UserStore, used by tests and by
// the server when no redis endpoint is configured. Behavior mirrors
// RedisStore: whole-document replace, snapshot push on every mutation.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]entity.Jig
	users   map[string]entity.User
	subs    map[int]chan []entity.Jig
	nextSub int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]entity.Jig),
		users: make(map[string]entity.User),
		subs:  make(map[int]chan []entity.Jig),
	}
}

func (s *MemoryStore) List(ctx context.Context) ([]entity.Jig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *MemoryStore) snapshotLocked() []entity.Jig {
	jigs := make([]entity.Jig, 0, len(s.docs))
	for id, doc := range s.docs {
		jig := doc.Clone()
		jig.StoreID = id
		jigs = append(jigs, jig)
	}
	SortByReceiptDate(jigs)
	return jigs
}

func (s *MemoryStore) Subscribe(ctx context.Context) (*Subscription, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan []entity.Jig, 1)
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	done := make(chan struct{})
	cancel := func() {
		select {
		case <-done:
			return
		default:
			close(done)
		}
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return &Subscription{C: ch, cancel: cancel}, nil
}

// broadcastLocked replaces any undrained snapshot on each subscriber.
func (s *MemoryStore) broadcastLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *MemoryStore) Create(ctx context.Context, jig entity.Jig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	jig.StoreID = ""
	s.docs[id] = jig.Clone()
	s.broadcastLocked()
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, jig entity.Jig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("update jig %s: %w", id, ErrNotFound)
	}
	jig.StoreID = ""
	s.docs[id] = jig.Clone()
	s.broadcastLocked()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	s.broadcastLocked()
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	out := user
	return &out, nil
}

func (s *MemoryStore) PutUser(ctx context.Context, user entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
	return nil
}

func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

var _ Store = (*MemoryStore)(nil)
var _ UserStore = (*MemoryStore)(nil)
var _ Store = (*RedisStore)(nil)
var _ UserStore = (*RedisStore)(nil)
