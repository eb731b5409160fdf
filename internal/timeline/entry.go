// Package timeline orchestrates concurrent per-account fetches and merges
// the results into one ordered, deduplicated feed.
package timeline

import (
	"sort"
	"time"

	"github.com/ppiankov/onefeed/internal/normalize"
)

// Kind classifies how an entry presents its post.
type Kind string

const (
	KindNormal Kind = "normal"
	KindBoost  Kind = "boost"
	KindReply  Kind = "reply"
)

// Entry is the display wrapper the merge step produces. Its ID is a
// deterministic function of kind plus the underlying post id, so identical
// remote events reached through different accounts collapse to one entry.
// Entries are recomputed on every merge and never persisted.
type Entry struct {
	ID        string
	Kind      Kind
	Post      normalize.Post
	CreatedAt time.Time

	// BoostedBy is the booster's handle when Kind is KindBoost.
	BoostedBy string

	// ParentID is the parent post reference when Kind is KindReply.
	ParentID string
}

// EntryOf wraps a normalized post in its display entry.
func EntryOf(post normalize.Post) Entry {
	switch {
	case post.IsBoost():
		return Entry{
			ID:        "boost:" + post.Original.ID,
			Kind:      KindBoost,
			Post:      post,
			CreatedAt: post.CreatedAt,
			BoostedBy: post.Author.Handle,
		}
	case post.IsReply():
		return Entry{
			ID:        "reply:" + post.ID,
			Kind:      KindReply,
			Post:      post,
			CreatedAt: post.CreatedAt,
			ParentID:  post.InReplyToID,
		}
	default:
		return Entry{
			ID:        "post:" + post.ID,
			Kind:      KindNormal,
			Post:      post,
			CreatedAt: post.CreatedAt,
		}
	}
}

// mergeEntries unions the per-account post lists into one feed: newest
// first, ties broken by post id for determinism, one entry per entry id.
// Merging the same input twice yields the same result.
func mergeEntries(byAccount map[string][]normalize.Post) []Entry {
	var all []Entry
	for _, posts := range byAccount {
		for _, p := range posts {
			all = append(all, EntryOf(p))
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Post.Subject().ID < all[j].Post.Subject().ID
	})

	seen := make(map[string]bool, len(all))
	merged := all[:0]
	for _, e := range all {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		merged = append(merged, e)
	}
	return merged
}
