// Package items holds the working set of reviewable items and reconciles it
// against freshly fetched snapshots from the hosting platform.
package items

import (
	"sort"
	"sync"
	"time"

	"github.com/reva-dev/reva/internal/model"
)

// Delta describes what a sync changed relative to the previous working set.
// Added, Updated, and Removed partition the union of both sets with no
// overlap.
type Delta struct {
	Added   []string
	Updated []string
	Removed []string
}

// Store manages one ItemState per item identity.
type Store struct {
	mu     sync.RWMutex
	states map[string]*model.ItemState
	now    func() time.Time
}

// NewStore creates an empty item store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*model.ItemState),
		now:    time.Now,
	}
}

// Sync reconciles the working set against a snapshot of currently-open items.
// Present items are upserted with fresh item data, preserving lifecycle
// status and timestamps; absent items are removed. Syncing the same snapshot
// twice yields an empty Added/Removed the second time.
func (s *Store) Sync(snapshot []model.Item, needsAttention map[string]bool) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delta Delta
	present := make(map[string]bool, len(snapshot))

	for _, item := range snapshot {
		id := item.ID()
		present[id] = true

		if st, ok := s.states[id]; ok {
			st.Item = item
			st.NeedsReviewerAttention = needsAttention[id]
			delta.Updated = append(delta.Updated, id)
			continue
		}

		s.states[id] = &model.ItemState{
			Item:                   item,
			Status:                 model.StatusNew,
			NeedsReviewerAttention: needsAttention[id],
		}
		delta.Added = append(delta.Added, id)
	}

	for id := range s.states {
		if !present[id] {
			delta.Removed = append(delta.Removed, id)
		}
	}
	for _, id := range delta.Removed {
		delete(s.states, id)
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Updated)
	sort.Strings(delta.Removed)
	return delta
}

// UpdateStatus transitions an item's lifecycle status and stamps the matching
// timestamp the first time that status is reached. Unknown ids are a no-op.
func (s *Store) UpdateStatus(id string, status model.LifecycleStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		return false
	}
	st.Status = status

	t := s.now()
	switch status {
	case model.StatusSeen:
		if st.SeenAt == nil {
			st.SeenAt = &t
		}
	case model.StatusReviewing:
		if st.ReviewStartedAt == nil {
			st.ReviewStartedAt = &t
		}
	case model.StatusReviewed:
		if st.ReviewCompletedAt == nil {
			st.ReviewCompletedAt = &t
		}
	}
	return true
}

// Get returns a copy of the state for id.
func (s *Store) Get(id string) (model.ItemState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[id]
	if !ok {
		return model.ItemState{}, false
	}
	return *st, true
}

// List returns copies of all item states, ordered by identity.
func (s *Store) List() []model.ItemState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ItemState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Item.ID() < out[j].Item.ID()
	})
	return out
}

// Count returns the size of the working set.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.states)
}
