// Package normalize maps adapter raw items into the unified Post entity.
// Normalization is deterministic and side-effect free: the same raw item
// always yields the same Post, which is what makes dedup keys stable across
// accounts and retries.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/onefeed/internal/platform"
)

// Author is the normalized post author.
type Author struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
}

// Media is one normalized media attachment.
type Media struct {
	URL         string
	Kind        string
	Description string
}

// Counts holds engagement counters, clamped to non-negative values.
type Counts struct {
	Likes   int64
	Reposts int64
	Replies int64
}

// Post is the unified entity shared by every component downstream of the
// adapters. ID is platform-qualified and globally unique: the same remote
// object fetched through different accounts normalizes to the same ID.
type Post struct {
	ID        string
	Platform  platform.Platform
	Author    Author
	Content   string // plain text, extracted from HTML backends
	URL       string
	CreatedAt time.Time
	Media     []Media
	Counts    Counts
	Liked     bool
	Reposted  bool

	// Original is set when this Post is a boost wrapper. Multiply nested
	// boosts are flattened so Original always names the innermost post.
	Original *Post

	// InReplyToID is a weak reference to the parent post, never ownership.
	InReplyToID string

	// Participants lists the thread handles visible to the adapter, the
	// author first. Used by the reply-visibility filter.
	Participants []string
}

// IsBoost reports whether the post is a wrapper around someone else's post.
func (p *Post) IsBoost() bool {
	return p.Original != nil
}

// IsReply reports whether the post references a parent.
func (p *Post) IsReply() bool {
	return p.InReplyToID != ""
}

// Subject returns the post whose content should be displayed: the boosted
// original for a wrapper, the post itself otherwise.
func (p *Post) Subject() *Post {
	if p.Original != nil {
		return p.Original
	}
	return p
}

// Normalize converts one raw adapter item into a Post. The source account
// supplies the platform tag and the server used to qualify ids when the
// backend reported no canonical URI.
func Normalize(raw platform.RawItem, account platform.Account) (Post, error) {
	if raw.Boosted != nil {
		inner := innermost(raw.Boosted)
		original, err := normalizeOne(*inner, account)
		if err != nil {
			return Post{}, fmt.Errorf("normalize boosted post: %w", err)
		}

		wrapper, err := normalizeWrapper(raw, account, original)
		if err != nil {
			return Post{}, err
		}
		return wrapper, nil
	}
	return normalizeOne(raw, account)
}

// innermost follows the boost chain to the post that was originally written.
// Backends occasionally report a boost of a boost; the intermediate wrappers
// carry no content of their own and are dropped.
func innermost(raw *platform.RawItem) *platform.RawItem {
	for raw.Boosted != nil {
		raw = raw.Boosted
	}
	return raw
}

func normalizeWrapper(raw platform.RawItem, account platform.Account, original Post) (Post, error) {
	if raw.Author.Handle == "" && raw.Author.ID == "" {
		return Post{}, errors.New("boost wrapper has no author")
	}

	boosterID := raw.Author.ID
	if boosterID == "" {
		boosterID = raw.Author.Handle
	}

	createdAt := raw.CreatedAt
	if createdAt.IsZero() {
		createdAt = original.CreatedAt
	}

	orig := original
	return Post{
		ID:        original.ID + "/boost/" + boosterID,
		Platform:  account.Platform,
		Author:    authorFrom(raw.Author),
		Content:   original.Content,
		URL:       original.URL,
		CreatedAt: createdAt,
		Counts:    clampCounts(raw.Likes, raw.Reposts, raw.Replies),
		Liked:     raw.Liked,
		Reposted:  raw.Reposted,
		Original:  &orig,
	}, nil
}

func normalizeOne(raw platform.RawItem, account platform.Account) (Post, error) {
	id := canonicalID(raw, account)
	if id == "" {
		return Post{}, errors.New("raw item has no identifier")
	}

	content := raw.ContentText
	if content == "" && raw.ContentHTML != "" {
		content = textFromHTML(raw.ContentHTML)
	}

	post := Post{
		ID:          id,
		Platform:    account.Platform,
		Author:      authorFrom(raw.Author),
		Content:     content,
		URL:         raw.URL,
		CreatedAt:   raw.CreatedAt,
		Counts:      clampCounts(raw.Likes, raw.Reposts, raw.Replies),
		Liked:       raw.Liked,
		Reposted:    raw.Reposted,
		InReplyToID: raw.InReplyToID,
	}

	for _, m := range raw.Media {
		post.Media = append(post.Media, Media{URL: m.URL, Kind: m.Kind, Description: m.Description})
	}

	seen := make(map[string]bool, len(raw.Participants))
	for _, handle := range raw.Participants {
		if handle == "" || seen[handle] {
			continue
		}
		seen[handle] = true
		post.Participants = append(post.Participants, handle)
	}

	return post, nil
}

// canonicalID qualifies the post id with its platform. The backend's global
// URI is preferred; server-local ids are qualified with the server name so
// they stay unique across accounts without colliding.
func canonicalID(raw platform.RawItem, account platform.Account) string {
	if raw.URI != "" {
		return string(account.Platform) + ":" + raw.URI
	}
	if raw.ID != "" {
		return fmt.Sprintf("%s:%s/%s", account.Platform, account.Server, raw.ID)
	}
	return ""
}

func authorFrom(raw platform.RawAuthor) Author {
	return Author{
		ID:          raw.ID,
		Handle:      raw.Handle,
		DisplayName: raw.DisplayName,
		AvatarURL:   raw.AvatarURL,
	}
}

func clampCounts(likes, reposts, replies int64) Counts {
	return Counts{
		Likes:   clamp(likes),
		Reposts: clamp(reposts),
		Replies: clamp(replies),
	}
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// textFromHTML extracts readable text from federated post markup. Paragraphs
// become blank-line separated blocks and <br> becomes a newline, matching
// how servers render the same markup.
func textFromHTML(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}

	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})

	paragraphs := doc.Find("p")
	if paragraphs.Length() == 0 {
		return strings.TrimSpace(doc.Text())
	}

	var b strings.Builder
	paragraphs.Each(func(i int, s *goquery.Selection) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(s.Text()))
	})

	return strings.TrimSpace(blankLinesRe.ReplaceAllString(b.String(), "\n\n"))
}
