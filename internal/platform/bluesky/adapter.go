// Package bluesky implements the platform adapter for Bluesky-compatible
// services. Pagination uses an opaque cursor token returned with every page;
// an absent token on a response means the timeline is exhausted.
package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/onefeed/internal/platform"
)

const (
	fetchTimeout = 15 * time.Second
	userAgent    = "onefeed/1.0"
	reasonRepost = "app.bsky.feed.defs#reasonRepost"
)

// HTTPClient allows injecting a client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(a *Adapter) { a.client = c }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// Adapter fetches home timelines from Bluesky-compatible services.
type Adapter struct {
	tokens  platform.TokenSource
	client  HTTPClient
	timeout time.Duration
}

// New creates a Bluesky adapter. tokens resolves account credentials.
func New(tokens platform.TokenSource, opts ...Option) (*Adapter, error) {
	if tokens == nil {
		return nil, errors.New("bluesky: token source is required")
	}
	a := &Adapter{
		tokens:  tokens,
		client:  &http.Client{Timeout: fetchTimeout},
		timeout: fetchTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) Platform() platform.Platform {
	return platform.PlatformBluesky
}

// FetchPage requests one page of the account's timeline. The cursor is the
// opaque token from the previous page; empty means the top.
func (a *Adapter) FetchPage(ctx context.Context, account platform.Account, cursor string, pageSize int) (platform.Page, error) {
	if pageSize <= 0 {
		return platform.Page{}, &platform.TransportError{AccountID: account.ID, Err: fmt.Errorf("invalid page size %d", pageSize)}
	}

	token, err := a.tokens(account)
	if err != nil {
		return platform.Page{}, &platform.AuthError{AccountID: account.ID, Reason: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/xrpc/app.bsky.feed.getTimeline?limit=%d", baseURL(account.Server), pageSize)
	if cursor != "" {
		endpoint += "&cursor=" + url.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return platform.Page{}, &platform.TransportError{AccountID: account.ID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return platform.Page{}, &platform.TransportError{AccountID: account.ID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return platform.Page{}, &platform.AuthError{AccountID: account.ID, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.Page{}, &platform.RateLimitError{AccountID: account.ID, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode != http.StatusOK:
		return platform.Page{}, &platform.TransportError{AccountID: account.ID, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var timeline apiTimeline
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		return platform.Page{}, &platform.TransportError{AccountID: account.ID, Err: fmt.Errorf("decode timeline: %w", err)}
	}

	items := make([]platform.RawItem, 0, len(timeline.Feed))
	for _, entry := range timeline.Feed {
		items = append(items, rawFromFeedEntry(entry))
	}

	return platform.Page{
		Items:      items,
		NextCursor: timeline.Cursor,
		HasMore:    timeline.Cursor != "",
	}, nil
}

func baseURL(server string) string {
	if strings.Contains(server, "://") {
		return strings.TrimRight(server, "/")
	}
	return "https://" + strings.TrimRight(server, "/")
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func rawFromFeedEntry(entry apiFeedEntry) platform.RawItem {
	item := rawFromPost(entry.Post)

	if entry.Reply != nil && entry.Reply.Parent.URI != "" {
		item.InReplyToID = entry.Reply.Parent.URI
		if entry.Reply.Parent.Author.Handle != "" {
			item.Participants = append(item.Participants, entry.Reply.Parent.Author.Handle)
		}
	}

	// A repost reason wraps the post in a synthetic item authored by the
	// reposting account, dated at the repost time.
	if entry.Reason != nil && entry.Reason.Type == reasonRepost {
		inner := item
		repostedAt, _ := time.Parse(time.RFC3339, entry.Reason.IndexedAt)
		return platform.RawItem{
			Author: platform.RawAuthor{
				ID:          entry.Reason.By.DID,
				Handle:      entry.Reason.By.Handle,
				DisplayName: entry.Reason.By.DisplayName,
				AvatarURL:   entry.Reason.By.Avatar,
			},
			CreatedAt:    repostedAt.UTC(),
			Boosted:      &inner,
			Participants: []string{entry.Reason.By.Handle},
		}
	}

	return item
}

func rawFromPost(post apiPost) platform.RawItem {
	createdAt, _ := time.Parse(time.RFC3339, post.Record.CreatedAt)

	item := platform.RawItem{
		ID:  post.URI,
		URI: post.URI,
		Author: platform.RawAuthor{
			ID:          post.Author.DID,
			Handle:      post.Author.Handle,
			DisplayName: post.Author.DisplayName,
			AvatarURL:   post.Author.Avatar,
		},
		ContentText: post.Record.Text,
		CreatedAt:   createdAt.UTC(),
		Likes:       post.LikeCount,
		Reposts:     post.RepostCount,
		Replies:     post.ReplyCount,
		Liked:       post.Viewer.Like != "",
		Reposted:    post.Viewer.Repost != "",
	}

	if post.Record.Reply != nil && post.Record.Reply.Parent.URI != "" {
		item.InReplyToID = post.Record.Reply.Parent.URI
	}

	if post.Embed != nil {
		for _, img := range post.Embed.Images {
			item.Media = append(item.Media, platform.RawMedia{
				URL:         img.Fullsize,
				Kind:        "image",
				Description: img.Alt,
			})
		}
	}

	item.Participants = append(item.Participants, post.Author.Handle)

	return item
}

type apiTimeline struct {
	Cursor string         `json:"cursor"`
	Feed   []apiFeedEntry `json:"feed"`
}

type apiFeedEntry struct {
	Post   apiPost      `json:"post"`
	Reply  *apiReplyRef `json:"reply"`
	Reason *apiReason   `json:"reason"`
}

type apiReason struct {
	Type      string    `json:"$type"`
	By        apiAuthor `json:"by"`
	IndexedAt string    `json:"indexedAt"`
}

type apiPost struct {
	URI         string    `json:"uri"`
	CID         string    `json:"cid"`
	Author      apiAuthor `json:"author"`
	Record      apiRecord `json:"record"`
	Embed       *apiEmbed `json:"embed"`
	ReplyCount  int64     `json:"replyCount"`
	RepostCount int64     `json:"repostCount"`
	LikeCount   int64     `json:"likeCount"`
	Viewer      apiViewer `json:"viewer"`
}

type apiAuthor struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type apiRecord struct {
	Text      string       `json:"text"`
	CreatedAt string       `json:"createdAt"`
	Reply     *apiReplyRef `json:"reply"`
}

type apiReplyRef struct {
	Parent apiPostRef `json:"parent"`
}

type apiPostRef struct {
	URI    string    `json:"uri"`
	Author apiAuthor `json:"author"`
}

type apiEmbed struct {
	Images []apiImage `json:"images"`
}

type apiImage struct {
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

type apiViewer struct {
	Like   string `json:"like"`
	Repost string `json:"repost"`
}
