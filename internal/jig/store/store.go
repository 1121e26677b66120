package store

import (
	"context"
	"errors"
	"sort"

	"github.com/porast/jigman/internal/jig/entity"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Subscription is a cancellable handle on the store's change feed. C
// delivers full ordered snapshots; the first snapshot arrives shortly
// after subscribing, subsequent ones after every committed mutation.
type Subscription struct {
	C      <-chan []entity.Jig
	cancel func()
}

// Close cancels the subscription and releases its resources. Safe to call
// more than once.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Store is the document-store contract for the JIG collection. Documents
// are keyed by an opaque generated id, distinct from the JIG code, and
// are always replaced whole on update.
type Store interface {
	// List returns the full collection, receipt date descending.
	List(ctx context.Context) ([]entity.Jig, error)
	// Subscribe registers for snapshot delivery on every change.
	Subscribe(ctx context.Context) (*Subscription, error)
	// Create stores a new document and returns its generated id.
	Create(ctx context.Context, jig entity.Jig) (string, error)
	// Update replaces the document with the given id, or ErrNotFound.
	Update(ctx context.Context, id string, jig entity.Jig) error
	// Delete removes the document. A missing id is a no-op.
	Delete(ctx context.Context, id string) error
}

// UserStore is the document-store contract for the user collection.
type UserStore interface {
	// GetUser looks a user up by username, or ErrNotFound.
	GetUser(ctx context.Context, username string) (*entity.User, error)
	// PutUser creates or replaces a user document.
	PutUser(ctx context.Context, user entity.User) error
	// CountUsers returns the number of user documents.
	CountUsers(ctx context.Context) (int64, error)
}

// SortByReceiptDate orders jigs by receipt date descending, code ascending
// on ties. This is the canonical collection order; everything downstream
// (cache, filtered view, exports) inherits it.
func SortByReceiptDate(jigs []entity.Jig) {
	sort.SliceStable(jigs, func(i, j int) bool {
		if !jigs[i].DateOfReceive.Equal(jigs[j].DateOfReceive) {
			return jigs[i].DateOfReceive.After(jigs[j].DateOfReceive)
		}
		return jigs[i].Code < jigs[j].Code
	})
}
