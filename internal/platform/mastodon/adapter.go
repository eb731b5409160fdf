// Package mastodon implements the platform adapter for Mastodon-compatible
// federated servers. Pagination uses the sequential max_id idiom: the cursor
// is the server-local id of the oldest status on the previous page.
package mastodon

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

// Adapter fetches home timelines from Mastodon-compatible servers.
type Adapter struct {
	tokens  platform.TokenSource
	client  HTTPClient
	timeout time.Duration
}

// New creates a Mastodon adapter. tokens resolves account credentials.
func New(tokens platform.TokenSource, opts ...Option) (*Adapter, error) {
	if tokens == nil {
		return nil, errors.New("mastodon: token source is required")
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
	return platform.PlatformMastodon
}

// FetchPage requests one page of the account's home timeline. An empty
// cursor starts at the top; otherwise the page starts below the status the
// cursor names.
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

	endpoint := fmt.Sprintf("%s/api/v1/timelines/home?limit=%d", baseURL(account.Server), pageSize)
	if cursor != "" {
		endpoint += "&max_id=" + url.QueryEscape(cursor)
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

	var statuses []apiStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return platform.Page{}, &platform.TransportError{AccountID: account.ID, Err: fmt.Errorf("decode timeline: %w", err)}
	}

	items := make([]platform.RawItem, 0, len(statuses))
	for _, st := range statuses {
		items = append(items, rawFromStatus(st))
	}

	page := platform.Page{Items: items}
	if len(statuses) > 0 {
		page.NextCursor = statuses[len(statuses)-1].ID
		page.HasMore = len(statuses) >= pageSize
	}
	return page, nil
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

func rawFromStatus(st apiStatus) platform.RawItem {
	createdAt, _ := time.Parse(time.RFC3339, st.CreatedAt)

	item := platform.RawItem{
		ID:  st.ID,
		URI: st.URI,
		Author: platform.RawAuthor{
			ID:          st.Account.ID,
			Handle:      st.Account.Acct,
			DisplayName: st.Account.DisplayName,
			AvatarURL:   st.Account.Avatar,
		},
		ContentHTML: st.Content,
		URL:         st.URL,
		CreatedAt:   createdAt.UTC(),
		Likes:       st.FavouritesCount,
		Reposts:     st.ReblogsCount,
		Replies:     st.RepliesCount,
		Liked:       st.Favourited,
		Reposted:    st.Reblogged,
		InReplyToID: st.InReplyToID,
	}

	for _, m := range st.MediaAttachments {
		item.Media = append(item.Media, platform.RawMedia{
			URL:         m.URL,
			Kind:        m.Type,
			Description: m.Description,
		})
	}

	item.Participants = append(item.Participants, st.Account.Acct)
	for _, mention := range st.Mentions {
		item.Participants = append(item.Participants, mention.Acct)
	}

	if st.Reblog != nil {
		inner := rawFromStatus(*st.Reblog)
		item.Boosted = &inner
	}

	return item
}

type apiStatus struct {
	ID               string        `json:"id"`
	URI              string        `json:"uri"`
	URL              string        `json:"url"`
	CreatedAt        string        `json:"created_at"`
	Content          string        `json:"content"`
	InReplyToID      string        `json:"in_reply_to_id"`
	FavouritesCount  int64         `json:"favourites_count"`
	ReblogsCount     int64         `json:"reblogs_count"`
	RepliesCount     int64         `json:"replies_count"`
	Favourited       bool          `json:"favourited"`
	Reblogged        bool          `json:"reblogged"`
	Account          apiAccount    `json:"account"`
	Reblog           *apiStatus    `json:"reblog"`
	MediaAttachments []apiMedia    `json:"media_attachments"`
	Mentions         []apiMention  `json:"mentions"`
}

type apiAccount struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

type apiMedia struct {
	URL         string `json:"url"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type apiMention struct {
	ID   string `json:"id"`
	Acct string `json:"acct"`
}
