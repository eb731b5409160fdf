package timeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/ppiankov/onefeed/internal/readpos"
)

// Engine is the public surface of the aggregation engine: the aggregator's
// fetch cycle plus the read-position tracker, kept in sync so the unread
// count always reflects the current merged list.
type Engine struct {
	agg     *Aggregator
	tracker *readpos.Tracker
}

// NewEngine wires an aggregator to a read-position tracker.
func NewEngine(agg *Aggregator, tracker *readpos.Tracker) (*Engine, error) {
	if agg == nil {
		return nil, errors.New("timeline: aggregator is required")
	}
	if tracker == nil {
		return nil, errors.New("timeline: read tracker is required")
	}
	return &Engine{agg: agg, tracker: tracker}, nil
}

// Refresh runs one fetch cycle and recomputes the unread bookkeeping.
func (e *Engine) Refresh(ctx context.Context, force bool) Outcome {
	out := e.agg.Refresh(ctx, force)
	e.syncTracker()
	return out
}

// LoadNextPage extends the feed with older pages and recomputes the unread
// bookkeeping.
func (e *Engine) LoadNextPage(ctx context.Context) Outcome {
	out := e.agg.LoadNextPage(ctx)
	e.syncTracker()
	return out
}

// CurrentEntries returns the merged feed, newest first.
func (e *Engine) CurrentEntries() []Entry {
	return e.agg.Entries()
}

// UnreadCount returns the number of posts newer than the last visit that
// have not been seen.
func (e *Engine) UnreadCount() int {
	return e.tracker.UnreadCount()
}

// MarkVisible records that a post entered the viewport.
func (e *Engine) MarkVisible(postID string) {
	e.tracker.MarkVisible(postID)
}

// MarkHidden records that a post left the viewport.
func (e *Engine) MarkHidden(postID string) {
	e.tracker.MarkHidden(postID)
}

// MarkReadThrough marks the given post and everything older as seen.
func (e *Engine) MarkReadThrough(postID string) error {
	return e.tracker.MarkReadThrough(postID)
}

// JumpToFirstUnread returns the oldest unread entry.
func (e *Engine) JumpToFirstUnread() (Entry, bool) {
	id, ok := e.tracker.FirstUnread()
	if !ok {
		return Entry{}, false
	}
	for _, entry := range e.agg.Entries() {
		if entry.Post.Subject().ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// RestoreAnchor resolves the saved scroll anchor against freshly fetched
// pages, loading further pages with bounded backoff while the anchor has
// not yet arrived.
func (e *Engine) RestoreAnchor(ctx context.Context, bo backoff.BackOff) (Entry, bool, error) {
	fetched := false
	fetch := func(ctx context.Context) ([]readpos.Item, error) {
		var out Outcome
		if fetched {
			out = e.LoadNextPage(ctx)
		} else {
			out = e.Refresh(ctx, false)
			fetched = true
		}
		if out.Status == StatusFailure {
			return nil, fmt.Errorf("refresh failed for all %d accounts", len(out.Reports))
		}
		return trackerItems(e.agg.Entries()), nil
	}

	id, ok, err := e.tracker.ResolveAnchor(ctx, fetch, bo)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	for _, entry := range e.agg.Entries() {
		if entry.Post.Subject().ID == id {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// LoadState restores the persisted read state.
func (e *Engine) LoadState(ctx context.Context) error {
	if err := e.tracker.Load(ctx); err != nil {
		return fmt.Errorf("load read state: %w", err)
	}
	e.syncTracker()
	return nil
}

// SaveState persists the read state; call at session end.
func (e *Engine) SaveState(ctx context.Context) error {
	if err := e.tracker.Save(ctx); err != nil {
		return fmt.Errorf("save read state: %w", err)
	}
	return nil
}

func (e *Engine) syncTracker() {
	e.tracker.SetItems(trackerItems(e.agg.Entries()))
}

// trackerItems projects entries onto the post ids behind them. A post
// reached both directly and through a boost appears once.
func trackerItems(entries []Entry) []readpos.Item {
	seen := make(map[string]bool, len(entries))
	items := make([]readpos.Item, 0, len(entries))
	for _, entry := range entries {
		id := entry.Post.Subject().ID
		if seen[id] {
			continue
		}
		seen[id] = true
		items = append(items, readpos.Item{ID: id, CreatedAt: entry.CreatedAt})
	}
	return items
}
