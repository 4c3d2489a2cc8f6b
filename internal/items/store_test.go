package items

import (
	"reflect"
	"testing"

	"github.com/reva-dev/reva/internal/model"
)

func makeItem(repo string, number int, title string) model.Item {
	return model.Item{
		Owner:  "acme",
		Repo:   repo,
		Number: number,
		Title:  title,
	}
}

func TestSyncAddsNewItems(t *testing.T) {
	s := NewStore()

	delta := s.Sync([]model.Item{
		makeItem("api", 1, "one"),
		makeItem("api", 2, "two"),
	}, nil)

	if !reflect.DeepEqual(delta.Added, []string{"acme/api#1", "acme/api#2"}) {
		t.Errorf("Added = %v", delta.Added)
	}
	if len(delta.Removed) != 0 || len(delta.Updated) != 0 {
		t.Errorf("delta = %+v", delta)
	}

	st, ok := s.Get("acme/api#1")
	if !ok || st.Status != model.StatusNew {
		t.Errorf("state = %+v, ok=%v", st, ok)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	s := NewStore()
	snapshot := []model.Item{makeItem("api", 1, "one")}

	s.Sync(snapshot, nil)
	delta := s.Sync(snapshot, nil)

	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Errorf("second sync not idempotent: %+v", delta)
	}
	if !reflect.DeepEqual(delta.Updated, []string{"acme/api#1"}) {
		t.Errorf("Updated = %v", delta.Updated)
	}
}

func TestSyncRemovesAbsentItems(t *testing.T) {
	s := NewStore()
	s.Sync([]model.Item{makeItem("api", 1, "one"), makeItem("api", 2, "two")}, nil)

	delta := s.Sync([]model.Item{makeItem("api", 2, "two")}, nil)

	if !reflect.DeepEqual(delta.Removed, []string{"acme/api#1"}) {
		t.Errorf("Removed = %v", delta.Removed)
	}
	if _, ok := s.Get("acme/api#1"); ok {
		t.Error("removed item still present")
	}
}

func TestSyncPartitionsWithoutOverlap(t *testing.T) {
	s := NewStore()
	s.Sync([]model.Item{makeItem("api", 1, ""), makeItem("api", 2, "")}, nil)

	delta := s.Sync([]model.Item{makeItem("api", 2, ""), makeItem("api", 3, "")}, nil)

	seen := map[string]int{}
	for _, id := range delta.Added {
		seen[id]++
	}
	for _, id := range delta.Updated {
		seen[id]++
	}
	for _, id := range delta.Removed {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s appears %d times across the delta", id, n)
		}
	}
	if len(seen) != 3 {
		t.Errorf("partition covers %d ids, want 3", len(seen))
	}
}

func TestSyncPreservesStatusAndTimestamps(t *testing.T) {
	s := NewStore()
	s.Sync([]model.Item{makeItem("api", 1, "old title")}, nil)
	s.UpdateStatus("acme/api#1", model.StatusSeen)

	before, _ := s.Get("acme/api#1")

	s.Sync([]model.Item{makeItem("api", 1, "new title")}, nil)
	after, _ := s.Get("acme/api#1")

	if after.Item.Title != "new title" {
		t.Errorf("item data not refreshed: %q", after.Item.Title)
	}
	if after.Status != model.StatusSeen {
		t.Errorf("status not preserved: %q", after.Status)
	}
	if after.SeenAt == nil || !after.SeenAt.Equal(*before.SeenAt) {
		t.Error("SeenAt not preserved across sync")
	}
}

func TestSyncAttentionFlag(t *testing.T) {
	s := NewStore()
	s.Sync([]model.Item{makeItem("api", 1, "")}, map[string]bool{"acme/api#1": true})

	st, _ := s.Get("acme/api#1")
	if !st.NeedsReviewerAttention {
		t.Error("attention flag not set")
	}

	s.Sync([]model.Item{makeItem("api", 1, "")}, nil)
	st, _ = s.Get("acme/api#1")
	if st.NeedsReviewerAttention {
		t.Error("attention flag not cleared on resync")
	}
}

func TestUpdateStatusStampsOnce(t *testing.T) {
	s := NewStore()
	s.Sync([]model.Item{makeItem("api", 1, "")}, nil)

	s.UpdateStatus("acme/api#1", model.StatusReviewing)
	first, _ := s.Get("acme/api#1")

	s.UpdateStatus("acme/api#1", model.StatusSeen)
	s.UpdateStatus("acme/api#1", model.StatusReviewing)
	second, _ := s.Get("acme/api#1")

	if second.ReviewStartedAt == nil || !second.ReviewStartedAt.Equal(*first.ReviewStartedAt) {
		t.Error("ReviewStartedAt restamped on repeat transition")
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	s := NewStore()
	if s.UpdateStatus("nope#1", model.StatusSeen) {
		t.Error("UpdateStatus succeeded for unknown id")
	}
}
