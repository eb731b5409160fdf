// Package platform defines the types shared by all backend adapters: the
// account identity, the intermediate post representation, and the paginated
// fetch contract every backend must satisfy.
package platform

import (
	"context"
	"time"
)

// Platform tags a backend protocol family.
type Platform string

const (
	PlatformMastodon Platform = "mastodon"
	PlatformBluesky  Platform = "bluesky"
)

// Known reports whether p is a supported platform tag.
func (p Platform) Known() bool {
	return p == PlatformMastodon || p == PlatformBluesky
}

// Account identifies one authenticated identity on one platform. Credentials
// are referenced by name only; the engine never owns or inspects tokens.
type Account struct {
	ID       string   // stable local identifier, e.g. "mastodon-main"
	Platform Platform // backend protocol family
	Username string   // handle on the backend
	Server   string   // instance hostname or service base URL
	TokenRef string   // opaque credential reference (env var name)
	Selected bool     // whether this account participates in the merged feed
}

// TokenSource resolves an account's credential reference into a bearer token.
// Implementations live outside the engine (env, keychain, token files).
type TokenSource func(Account) (string, error)

// RawAuthor is the author shape adapters emit before normalization.
type RawAuthor struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
}

// RawMedia is one media attachment on a raw item.
type RawMedia struct {
	URL         string
	Kind        string // "image", "video", ...
	Description string
}

// RawItem is the intermediate post representation produced by adapters.
// URI, when set, is the backend's globally canonical identifier for the
// remote object (ActivityPub URI, AT-URI); ID is the server-local identifier
// used by the backend's pagination idiom.
type RawItem struct {
	ID          string
	URI         string
	Author      RawAuthor
	ContentHTML string // set by HTML backends; plain-text backends leave empty
	ContentText string
	URL         string
	CreatedAt   time.Time
	Media       []RawMedia

	Likes   int64
	Reposts int64
	Replies int64

	Liked    bool
	Reposted bool

	// InReplyToID references the parent by canonical id when this item is a
	// reply. Participants lists the thread handles adapters could see
	// (author first, then the addressee chain).
	InReplyToID  string
	Participants []string

	// Boosted is non-nil when this item republishes another item. The chain
	// may nest when a backend reports a boost of a boost.
	Boosted *RawItem
}

// Page is one fetched page of a timeline plus its continuation cursor.
type Page struct {
	Items      []RawItem
	NextCursor string
	HasMore    bool
}

// Adapter talks to one backend's pagination idiom. Implementations bound
// every call with their own timeout; exceeding it is a TransportError.
type Adapter interface {
	// Platform returns the backend tag this adapter serves.
	Platform() Platform

	// FetchPage returns one page of the account's home timeline. An empty
	// cursor means the top of the timeline. Fails with *AuthError,
	// *RateLimitError, or *TransportError.
	FetchPage(ctx context.Context, account Account, cursor string, pageSize int) (Page, error)
}
