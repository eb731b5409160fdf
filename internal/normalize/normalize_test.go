package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/onefeed/internal/platform"
)

func mastodonAccount() platform.Account {
	return platform.Account{
		ID:       "m1",
		Platform: platform.PlatformMastodon,
		Server:   "mastodon.test",
	}
}

func blueskyAccount() platform.Account {
	return platform.Account{
		ID:       "b1",
		Platform: platform.PlatformBluesky,
		Server:   "bsky.social",
	}
}

func rawPost(id string) platform.RawItem {
	return platform.RawItem{
		ID:          id,
		URI:         "https://mastodon.test/statuses/" + id,
		Author:      platform.RawAuthor{ID: "a1", Handle: "alice@mastodon.test", DisplayName: "Alice"},
		ContentHTML: "<p>hello</p>",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNormalize_CanonicalIDPrefersURI(t *testing.T) {
	post, err := Normalize(rawPost("42"), mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if post.ID != "mastodon:https://mastodon.test/statuses/42" {
		t.Errorf("id = %q", post.ID)
	}
}

func TestNormalize_LocalIDQualifiedByServer(t *testing.T) {
	raw := rawPost("42")
	raw.URI = ""
	post, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if post.ID != "mastodon:mastodon.test/42" {
		t.Errorf("id = %q", post.ID)
	}
}

func TestNormalize_SameURISameIDAcrossAccounts(t *testing.T) {
	raw := rawPost("42")
	other := mastodonAccount()
	other.ID = "m2"
	other.Server = "fedi.example"

	a, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := Normalize(raw, other)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("same URI produced different ids: %q vs %q", a.ID, b.ID)
	}
}

func TestNormalize_MissingIdentifier(t *testing.T) {
	raw := rawPost("42")
	raw.ID = ""
	raw.URI = ""
	if _, err := Normalize(raw, mastodonAccount()); err == nil {
		t.Fatal("expected error for item with no identifier")
	}
}

func TestNormalize_HTMLToText(t *testing.T) {
	raw := rawPost("1")
	raw.ContentHTML = `<p>first line<br>second line</p><p>next <a href="https://x.test">paragraph</a></p>`

	post, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "first line\nsecond line\n\nnext paragraph"
	if post.Content != want {
		t.Errorf("content = %q, want %q", post.Content, want)
	}
}

func TestNormalize_PlainTextPassedThrough(t *testing.T) {
	raw := platform.RawItem{
		ID:          "at://did:plc:alice/app.bsky.feed.post/1",
		URI:         "at://did:plc:alice/app.bsky.feed.post/1",
		Author:      platform.RawAuthor{Handle: "alice.bsky.social"},
		ContentText: "already <plain> text",
		CreatedAt:   time.Now().UTC(),
	}
	post, err := Normalize(raw, blueskyAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if post.Content != "already <plain> text" {
		t.Errorf("content = %q, markup extraction should not touch plain text", post.Content)
	}
}

func TestNormalize_ClampsNegativeCounts(t *testing.T) {
	raw := rawPost("1")
	raw.Likes = -3
	raw.Reposts = 7
	raw.Replies = -1

	post, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if post.Counts.Likes != 0 || post.Counts.Replies != 0 {
		t.Errorf("negative counts not clamped: %+v", post.Counts)
	}
	if post.Counts.Reposts != 7 {
		t.Errorf("reposts = %d, want 7", post.Counts.Reposts)
	}
}

func TestNormalize_BoostWrapper(t *testing.T) {
	inner := rawPost("50")
	inner.Author = platform.RawAuthor{ID: "b2", Handle: "bob@elsewhere.test"}

	raw := platform.RawItem{
		ID:        "300",
		URI:       "https://mastodon.test/statuses/300",
		Author:    platform.RawAuthor{ID: "a1", Handle: "alice@mastodon.test"},
		CreatedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Boosted:   &inner,
	}

	post, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if !post.IsBoost() {
		t.Fatal("wrapper should report IsBoost")
	}
	if post.Original == nil || post.Original.Author.Handle != "bob@elsewhere.test" {
		t.Fatalf("original = %+v", post.Original)
	}
	if post.ID != post.Original.ID+"/boost/a1" {
		t.Errorf("wrapper id = %q", post.ID)
	}
	if post.Subject() != post.Original {
		t.Error("Subject of a boost should be the original")
	}
	if post.Content != post.Original.Content {
		t.Error("wrapper should surface the original content")
	}
	if !post.CreatedAt.Equal(raw.CreatedAt) {
		t.Errorf("wrapper time = %s, want boost time", post.CreatedAt)
	}
}

func TestNormalize_NestedBoostFlattens(t *testing.T) {
	original := rawPost("10")
	original.Author = platform.RawAuthor{ID: "c1", Handle: "carol@mastodon.test"}

	middle := platform.RawItem{
		ID:      "20",
		URI:     "https://mastodon.test/statuses/20",
		Author:  platform.RawAuthor{ID: "b1", Handle: "bob@mastodon.test"},
		Boosted: &original,
	}
	outer := platform.RawItem{
		ID:        "30",
		URI:       "https://mastodon.test/statuses/30",
		Author:    platform.RawAuthor{ID: "a1", Handle: "alice@mastodon.test"},
		CreatedAt: time.Now().UTC(),
		Boosted:   &middle,
	}

	post, err := Normalize(outer, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if post.Original.IsBoost() {
		t.Fatal("flattened original must not itself be a boost")
	}
	if post.Original.Author.Handle != "carol@mastodon.test" {
		t.Errorf("original author = %q, want the innermost author", post.Original.Author.Handle)
	}
	if post.Author.Handle != "alice@mastodon.test" {
		t.Errorf("wrapper author = %q, want the outermost booster", post.Author.Handle)
	}
}

func TestNormalize_BoostWrapperWithoutAuthor(t *testing.T) {
	inner := rawPost("50")
	raw := platform.RawItem{ID: "300", Boosted: &inner}
	if _, err := Normalize(raw, mastodonAccount()); err == nil {
		t.Fatal("expected error for wrapper with no author")
	}
}

func TestNormalize_ParticipantsDeduped(t *testing.T) {
	raw := rawPost("1")
	raw.InReplyToID = "0"
	raw.Participants = []string{"alice@mastodon.test", "bob@mastodon.test", "alice@mastodon.test", ""}

	post, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !post.IsReply() {
		t.Error("post with a parent should report IsReply")
	}
	if len(post.Participants) != 2 {
		t.Fatalf("participants = %v, want deduped pair", post.Participants)
	}
	if post.Participants[0] != "alice@mastodon.test" {
		t.Errorf("author should stay first, got %v", post.Participants)
	}
}

func TestTextFromHTML_NoParagraphs(t *testing.T) {
	got := textFromHTML("just <b>bold</b> text")
	if got != "just bold text" {
		t.Errorf("text = %q", got)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := rawPost("77")
	a, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := Normalize(raw, mastodonAccount())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if a.ID != b.ID || a.Content != b.Content || !strings.EqualFold(a.Author.Handle, b.Author.Handle) {
		t.Error("normalization should be deterministic")
	}
}
