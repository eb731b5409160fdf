// Package filter drops posts that match muted keywords or fail the
// reply-visibility policy. Filters run after normalization and before the
// merge, so a dropped post never reaches cursor or read-state bookkeeping.
package filter

import (
	"strings"

	"github.com/ppiankov/onefeed/internal/normalize"
)

// Config is an immutable snapshot of the filtering policy for one refresh
// cycle. Build a fresh snapshot per cycle instead of reading live settings
// mid-merge.
type Config struct {
	mutedKeywords  []string
	replyFiltering bool
	followed       map[string]bool
}

// NewConfig builds a filter snapshot. Keywords are matched as
// case-insensitive substrings. followed lists the handles the viewer follows
// across all accounts; it only matters while reply filtering is enabled.
func NewConfig(mutedKeywords []string, replyFiltering bool, followed []string) Config {
	cfg := Config{replyFiltering: replyFiltering}

	for _, kw := range mutedKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			cfg.mutedKeywords = append(cfg.mutedKeywords, kw)
		}
	}

	if len(followed) > 0 {
		cfg.followed = make(map[string]bool, len(followed))
		for _, handle := range followed {
			handle = strings.ToLower(strings.TrimSpace(handle))
			if handle != "" {
				cfg.followed[handle] = true
			}
		}
	}

	return cfg
}

// Allow reports whether the post survives every filter.
func (c Config) Allow(post normalize.Post) bool {
	if c.muted(post) {
		return false
	}
	if !c.replyVisible(post) {
		return false
	}
	return true
}

// Apply returns the posts that survive every filter, preserving order.
func (c Config) Apply(posts []normalize.Post) []normalize.Post {
	kept := make([]normalize.Post, 0, len(posts))
	for _, p := range posts {
		if c.Allow(p) {
			kept = append(kept, p)
		}
	}
	return kept
}

// muted matches keywords as case-insensitive substrings of the displayed
// content. For a boost wrapper that is the boosted original's content.
func (c Config) muted(post normalize.Post) bool {
	if len(c.mutedKeywords) == 0 {
		return false
	}
	content := strings.ToLower(post.Subject().Content)
	for _, kw := range c.mutedKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// replyVisible keeps a reply only when at least two distinct participants in
// its thread are handles the viewer follows. Non-replies always pass, and so
// does everything while the policy is disabled.
func (c Config) replyVisible(post normalize.Post) bool {
	if !c.replyFiltering || !post.IsReply() {
		return true
	}

	followed := 0
	seen := make(map[string]bool, len(post.Participants))
	for _, handle := range post.Participants {
		handle = strings.ToLower(handle)
		if seen[handle] {
			continue
		}
		seen[handle] = true
		if c.followed[handle] {
			followed++
			if followed >= 2 {
				return true
			}
		}
	}
	return false
}
