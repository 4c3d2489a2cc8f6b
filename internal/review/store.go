// Package review holds the lifecycle state of AI review attempts, one per
// reviewable item. All transitions are total: an operation against a missing
// or wrong-status entry is a no-op, since stale callbacks from a cancelled or
// superseded run are expected and harmless.
package review

import (
	"sync"
	"time"

	"github.com/reva-dev/reva/internal/model"
)

// Store manages one ReviewState per item identity.
type Store struct {
	mu     sync.RWMutex
	states map[string]*model.ReviewState
	now    func() time.Time
}

// NewStore creates an empty review store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*model.ReviewState),
		now:    time.Now,
	}
}

// TryStart atomically claims the review slot for id by creating or resetting
// its entry to pending. It fails when a review is already pending or in
// progress, so two callers racing to start a review cannot both win the slot.
// Terminal entries (completed, failed, cancelled) are replaced.
func (s *Store) TryStart(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		if st.Status == model.ReviewPending || st.Status == model.ReviewInProgress {
			return false
		}
	}
	s.states[id] = &model.ReviewState{
		ItemID: id,
		Status: model.ReviewPending,
	}
	return true
}

// SetInProgress marks the review as running at the given stage. StartedAt is
// preserved if already set so restarts within a run keep the original clock.
func (s *Store) SetInProgress(id string, stage model.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil {
		st = &model.ReviewState{ItemID: id}
		s.states[id] = st
	}

	st.Status = model.ReviewInProgress
	st.Stage = stage
	st.Progress = StageProgress(stage)
	if st.StartedAt == nil {
		t := s.now()
		st.StartedAt = &t
	}
}

// UpdateStage advances the stage of an in-progress review. A no-op for any
// other status: a concurrently running task may report progress after the
// review was cancelled or superseded.
func (s *Store) UpdateStage(id string, stage model.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil || st.Status != model.ReviewInProgress {
		return
	}
	st.Stage = stage
	st.Progress = StageProgress(stage)
}

// SetCompleted records a terminal successful review and stops the clock.
func (s *Store) SetCompleted(id string, result *model.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil {
		return
	}
	st.Status = model.ReviewCompleted
	st.Stage = ""
	st.Progress = 100
	st.Result = result
	st.Error = ""
	t := s.now()
	st.CompletedAt = &t
}

// SetFailed records a terminal failure with its message.
func (s *Store) SetFailed(id string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil {
		return
	}
	st.Status = model.ReviewFailed
	st.Stage = ""
	st.Error = errMsg
	t := s.now()
	st.CompletedAt = &t
}

// SetCancelled marks an in-progress review as cancelled and reports whether
// it did so. Reviews in any other status are left untouched.
func (s *Store) SetCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil || st.Status != model.ReviewInProgress {
		return false
	}
	st.Status = model.ReviewCancelled
	st.Stage = ""
	t := s.now()
	st.CompletedAt = &t
	return true
}

// SetInlineAnnotations replaces the annotations derived for id's review.
func (s *Store) SetInlineAnnotations(id string, annotations []model.InlineAnnotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil {
		return
	}
	st.InlineAnnotations = annotations
}

// SelectAnnotation flips the selected flag on one annotation by issue index.
func (s *Store) SelectAnnotation(id string, issueIndex int, selected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[id]
	if st == nil {
		return false
	}
	for i := range st.InlineAnnotations {
		if st.InlineAnnotations[i].IssueIndex == issueIndex {
			st.InlineAnnotations[i].Selected = selected
			return true
		}
	}
	return false
}

// Get returns a copy of the review state for id.
func (s *Store) Get(id string) (model.ReviewState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.states[id]
	if st == nil {
		return model.ReviewState{}, false
	}
	return *st, true
}

// Delete removes the review state for id, if any.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, id)
}

// Count returns the number of tracked reviews.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.states)
}

// StageProgress maps a stage to its progress percentage; unknown stages
// report zero progress.
func StageProgress(stage model.Stage) int {
	return model.StageProgress[stage]
}
