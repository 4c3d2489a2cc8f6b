// Package model contains domain types for the reva engine.
// These types are independent of any external GitHub library.
package model

import (
	"fmt"
	"time"
)

// LifecycleStatus tracks where an item sits in the reviewer workflow,
// independent of any AI review attached to it.
type LifecycleStatus string

const (
	StatusNew       LifecycleStatus = "new"
	StatusSeen      LifecycleStatus = "seen"
	StatusReviewing LifecycleStatus = "reviewing"
	StatusReviewed  LifecycleStatus = "reviewed"
	StatusDismissed LifecycleStatus = "dismissed"
)

// FileChange is one changed file in a reviewable item, with its per-file
// unified-diff patch as supplied by the hosting platform.
type FileChange struct {
	Filename  string `json:"filename"`
	Patch     string `json:"patch,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Item is one reviewable unit of change (a pull request). Immutable once
// fetched; replaced wholesale on resync.
type Item struct {
	Owner     string       `json:"owner"`
	Repo      string       `json:"repo"`
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	Author    string       `json:"author"`
	BaseRef   string       `json:"baseRef"`
	HeadRef   string       `json:"headRef"`
	HTMLURL   string       `json:"htmlUrl"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Diff      string       `json:"-"`
	Files     []FileChange `json:"files,omitempty"`
}

// ID returns the stable identity key for the item: "{owner}/{repo}#{number}".
func (i *Item) ID() string {
	return fmt.Sprintf("%s/%s#%d", i.Owner, i.Repo, i.Number)
}

// ItemState pairs an item with its lifecycle bookkeeping. Exactly one exists
// per identity at any time.
type ItemState struct {
	Item                   Item            `json:"item"`
	Status                 LifecycleStatus `json:"status"`
	NeedsReviewerAttention bool            `json:"needsReviewerAttention"`
	SeenAt                 *time.Time      `json:"seenAt,omitempty"`
	ReviewStartedAt        *time.Time      `json:"reviewStartedAt,omitempty"`
	ReviewCompletedAt      *time.Time      `json:"reviewCompletedAt,omitempty"`
}
