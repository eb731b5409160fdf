// Package readpos tracks which posts the viewer has seen. The tracker is the
// single owner of the read state: viewport visibility events arrive as
// method calls, and a dwell-time rule decides when a visible post counts as
// read, so a fast scroll-through never marks anything.
package readpos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMinDwell is how long a post must stay visible before it is
	// promoted into the seen set.
	DefaultMinDwell = 2 * time.Second

	anchorRetryInterval = 500 * time.Millisecond
	anchorRetryCap      = 10 * time.Second
)

// Item is the slice of a timeline entry the tracker needs: identity and
// position in time.
type Item struct {
	ID        string
	CreatedAt time.Time
}

// State is the persisted read position: the seen set, the watermark, the
// last visit, and the scroll anchor.
type State struct {
	Seen       map[string]time.Time // post id -> when it was marked seen
	LastReadID string
	LastVisit  time.Time
	AnchorID   string
}

// Persister stores the read state durably.
type Persister interface {
	LoadReadState(ctx context.Context) (State, error)
	SaveReadState(ctx context.Context, st State) error
}

// Tracker owns the seen set and the unread count. All mutation goes through
// its methods; other components only read the values it hands out.
type Tracker struct {
	mu      sync.Mutex
	persist Persister

	minDwell time.Duration
	now      func() time.Time

	items      []Item // current merged list, newest first
	visible    map[string]time.Time
	seen       map[string]time.Time
	lastReadID string
	lastVisit  time.Time
	anchorID   string

	unread      int
	unreadValid bool
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithMinDwell overrides the dwell time required before a visible post
// counts as seen.
func WithMinDwell(d time.Duration) Option {
	return func(t *Tracker) { t.minDwell = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker. persist may be nil for an in-memory tracker.
func NewTracker(persist Persister, opts ...Option) *Tracker {
	t := &Tracker{
		persist:  persist,
		minDwell: DefaultMinDwell,
		now:      time.Now,
		visible:  make(map[string]time.Time),
		seen:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load restores the persisted read state.
func (t *Tracker) Load(ctx context.Context) error {
	if t.persist == nil {
		return nil
	}
	st, err := t.persist.LoadReadState(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen = st.Seen
	if t.seen == nil {
		t.seen = make(map[string]time.Time)
	}
	t.lastReadID = st.LastReadID
	t.lastVisit = st.LastVisit
	t.anchorID = st.AnchorID
	t.unreadValid = false
	return nil
}

// Save persists the read state and stamps the visit time. Call it at session
// end; the next session's unread count is computed against this visit.
func (t *Tracker) Save(ctx context.Context) error {
	if t.persist == nil {
		return nil
	}

	t.mu.Lock()
	now := t.now()
	t.promoteLocked(now)
	if anchor, ok := t.anchorFromVisibleLocked(); ok {
		t.anchorID = anchor
	}
	st := State{
		Seen:       copySeen(t.seen),
		LastReadID: t.lastReadID,
		LastVisit:  now,
		AnchorID:   t.anchorID,
	}
	t.mu.Unlock()

	return t.persist.SaveReadState(ctx, st)
}

// SetItems installs the current merged list, newest first. Invalidates the
// cached unread count.
func (t *Tracker) SetItems(items []Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make([]Item, len(items))
	copy(t.items, items)
	t.unreadValid = false
}

// MarkVisible records that the post entered the viewport.
func (t *Tracker) MarkVisible(id string) {
	if id == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.promoteLocked(now)
	if _, ok := t.visible[id]; !ok {
		t.visible[id] = now
	}
}

// MarkHidden records that the post left the viewport. If it stayed visible
// past the dwell threshold it is promoted into the seen set.
func (t *Tracker) MarkHidden(id string) {
	if id == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	appeared, ok := t.visible[id]
	if !ok {
		return
	}
	delete(t.visible, id)
	if now.Sub(appeared) >= t.minDwell {
		t.markSeenLocked(id, now)
	}
	t.promoteLocked(now)
}

// MarkReadThrough marks the given post and every older post in the current
// list as seen, and moves the watermark to it.
func (t *Tracker) MarkReadThrough(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	found := false
	for _, item := range t.items {
		if item.ID == id {
			found = true
		}
		if found {
			t.markSeenLocked(item.ID, now)
		}
	}
	if !found {
		return errors.New("post not in current timeline")
	}
	t.lastReadID = id
	t.unreadValid = false
	return nil
}

// UnreadCount returns how many posts arrived after the last visit and have
// not been seen. The value is cached between list and seen-set changes.
func (t *Tracker) UnreadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.promoteLocked(t.now())
	if t.unreadValid {
		return t.unread
	}

	count := 0
	for _, item := range t.items {
		if !item.CreatedAt.After(t.lastVisit) {
			continue
		}
		if _, ok := t.seen[item.ID]; ok {
			continue
		}
		count++
	}
	t.unread = count
	t.unreadValid = true
	return count
}

// FirstUnread returns the oldest unread post id, the one a reader jumping to
// "first unread" wants to land on.
func (t *Tracker) FirstUnread() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.promoteLocked(t.now())
	for i := len(t.items) - 1; i >= 0; i-- {
		item := t.items[i]
		if !item.CreatedAt.After(t.lastVisit) {
			continue
		}
		if _, ok := t.seen[item.ID]; ok {
			continue
		}
		return item.ID, true
	}
	return "", false
}

// Anchor returns the saved scroll anchor post id, if any.
func (t *Tracker) Anchor() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.anchorID
}

// ResolveAnchor finds the saved anchor in a freshly fetched list, retrying
// with bounded backoff while the anchor post has not yet arrived. Returns
// false without error when no anchor is saved.
func (t *Tracker) ResolveAnchor(ctx context.Context, fetch func(context.Context) ([]Item, error), bo backoff.BackOff) (string, bool, error) {
	anchor := t.Anchor()
	if anchor == "" {
		return "", false, nil
	}
	if bo == nil {
		bo = defaultAnchorBackoff()
	}

	err := backoff.Retry(func() error {
		items, err := fetch(ctx)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.ID == anchor {
				return nil
			}
		}
		return errors.New("anchor not yet present")
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return "", false, err
	}
	return anchor, true, nil
}

func defaultAnchorBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = anchorRetryInterval
	bo.MaxElapsedTime = anchorRetryCap
	return bo
}

// promoteLocked moves every visible post past the dwell threshold into the
// seen set.
func (t *Tracker) promoteLocked(now time.Time) {
	for id, appeared := range t.visible {
		if now.Sub(appeared) >= t.minDwell {
			delete(t.visible, id)
			t.markSeenLocked(id, now)
		}
	}
}

func (t *Tracker) markSeenLocked(id string, now time.Time) {
	if _, ok := t.seen[id]; ok {
		return
	}
	t.seen[id] = now
	t.unreadValid = false
}

// anchorFromVisibleLocked picks the earliest-index visible post as the
// scroll anchor.
func (t *Tracker) anchorFromVisibleLocked() (string, bool) {
	for _, item := range t.items {
		if _, ok := t.visible[item.ID]; ok {
			return item.ID, true
		}
	}
	return "", false
}

func copySeen(seen map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(seen))
	for id, at := range seen {
		out[id] = at
	}
	return out
}
