package mastodon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/onefeed/internal/platform"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testAccount() platform.Account {
	return platform.Account{
		ID:       "mastodon-main",
		Platform: platform.PlatformMastodon,
		Username: "viewer",
		Server:   "mastodon.test",
		TokenRef: "TEST_TOKEN",
		Selected: true,
	}
}

func adapterWithTransport(t *testing.T, rt roundTripFunc) *Adapter {
	t.Helper()
	a, err := New(
		func(platform.Account) (string, error) { return "tok-123", nil },
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("create adapter: %v", err)
	}
	return a
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return string(b)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func status(id string, createdAt time.Time) apiStatus {
	return apiStatus{
		ID:        id,
		URI:       "https://mastodon.test/users/alice/statuses/" + id,
		CreatedAt: createdAt.Format(time.RFC3339),
		Content:   "<p>post " + id + "</p>",
		Account:   apiAccount{ID: "a1", Acct: "alice@mastodon.test", DisplayName: "Alice"},
	}
}

func TestNew_RequiresTokenSource(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil token source")
	}
}

func TestFetchPage_FirstPage(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	statuses := []apiStatus{status("300", now), status("200", now.Add(-time.Minute))}

	a := adapterWithTransport(t, func(r *http.Request) (*http.Response, error) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		if r.URL.Path != "/api/v1/timelines/home" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("max_id") != "" {
			t.Errorf("first page should not send max_id, got %q", r.URL.Query().Get("max_id"))
		}
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("limit = %q, want 2", r.URL.Query().Get("limit"))
		}
		return response(http.StatusOK, mustJSON(t, statuses)), nil
	})

	page, err := a.FetchPage(context.Background(), testAccount(), "", 2)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}
	if page.NextCursor != "200" {
		t.Errorf("next cursor = %q, want oldest status id", page.NextCursor)
	}
	if !page.HasMore {
		t.Error("full page should report has more")
	}
	if page.Items[0].URI == "" {
		t.Error("items should carry their canonical URI")
	}
}

func TestFetchPage_SendsCursor(t *testing.T) {
	a := adapterWithTransport(t, func(r *http.Request) (*http.Response, error) {
		if got := r.URL.Query().Get("max_id"); got != "200" {
			t.Errorf("max_id = %q, want 200", got)
		}
		return response(http.StatusOK, "[]"), nil
	})

	page, err := a.FetchPage(context.Background(), testAccount(), "200", 2)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if page.HasMore {
		t.Error("empty page should report no more")
	}
	if page.NextCursor != "" {
		t.Errorf("empty page cursor = %q, want empty", page.NextCursor)
	}
}

func TestFetchPage_ShortPageMeansNoMore(t *testing.T) {
	now := time.Now().UTC()
	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, mustJSON(t, []apiStatus{status("100", now)})), nil
	})

	page, err := a.FetchPage(context.Background(), testAccount(), "", 5)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if page.HasMore {
		t.Error("short page should report no more")
	}
	if page.NextCursor != "100" {
		t.Errorf("next cursor = %q, want 100", page.NextCursor)
	}
}

func TestFetchPage_AuthError(t *testing.T) {
	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		return response(http.StatusUnauthorized, `{"error":"The access token is invalid"}`), nil
	})

	_, err := a.FetchPage(context.Background(), testAccount(), "", 10)
	if !platform.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestFetchPage_TokenResolutionFailureIsAuthError(t *testing.T) {
	a, err := New(func(acct platform.Account) (string, error) {
		return "", &platform.AuthError{AccountID: acct.ID, Reason: "env var not set"}
	})
	if err != nil {
		t.Fatalf("create adapter: %v", err)
	}

	_, err = a.FetchPage(context.Background(), testAccount(), "", 10)
	if !platform.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestFetchPage_RateLimited(t *testing.T) {
	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		resp := response(http.StatusTooManyRequests, `{"error":"Too many requests"}`)
		resp.Header.Set("Retry-After", "30")
		return resp, nil
	})

	_, err := a.FetchPage(context.Background(), testAccount(), "", 10)
	after, ok := platform.IsRateLimit(err)
	if !ok {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if after != 30*time.Second {
		t.Errorf("retry after = %s, want 30s", after)
	}
}

func TestFetchPage_ServerErrorIsTransport(t *testing.T) {
	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		return response(http.StatusInternalServerError, "oops"), nil
	})

	_, err := a.FetchPage(context.Background(), testAccount(), "", 10)
	if !platform.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchPage_MalformedJSONIsTransport(t *testing.T) {
	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, "{not json"), nil
	})

	_, err := a.FetchPage(context.Background(), testAccount(), "", 10)
	if !platform.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchPage_ReblogBecomesBoostedItem(t *testing.T) {
	now := time.Now().UTC()
	inner := status("50", now.Add(-time.Hour))
	inner.Account = apiAccount{ID: "b1", Acct: "bob@elsewhere.test", DisplayName: "Bob"}

	wrapper := status("300", now)
	wrapper.Content = ""
	wrapper.Reblog = &inner

	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, mustJSON(t, []apiStatus{wrapper})), nil
	})

	page, err := a.FetchPage(context.Background(), testAccount(), "", 10)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}

	item := page.Items[0]
	if item.Boosted == nil {
		t.Fatal("reblog should populate Boosted")
	}
	if item.Boosted.Author.Handle != "bob@elsewhere.test" {
		t.Errorf("boosted author = %q", item.Boosted.Author.Handle)
	}
	if item.Author.Handle != "alice@mastodon.test" {
		t.Errorf("wrapper author = %q", item.Author.Handle)
	}
}

func TestFetchPage_ReplyAndMentions(t *testing.T) {
	now := time.Now().UTC()
	st := status("10", now)
	st.InReplyToID = "9"
	st.Mentions = []apiMention{{ID: "c1", Acct: "carol@mastodon.test"}}

	a := adapterWithTransport(t, func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, mustJSON(t, []apiStatus{st})), nil
	})

	page, err := a.FetchPage(context.Background(), testAccount(), "", 10)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}

	item := page.Items[0]
	if item.InReplyToID != "9" {
		t.Errorf("in reply to = %q, want 9", item.InReplyToID)
	}
	if len(item.Participants) != 2 {
		t.Fatalf("participants = %v, want author plus mention", item.Participants)
	}
	if item.Participants[0] != "alice@mastodon.test" || item.Participants[1] != "carol@mastodon.test" {
		t.Errorf("participants = %v", item.Participants)
	}
}

func TestBaseURL(t *testing.T) {
	if got := baseURL("mastodon.test"); got != "https://mastodon.test" {
		t.Errorf("baseURL = %q", got)
	}
	if got := baseURL("http://127.0.0.1:8080/"); got != "http://127.0.0.1:8080" {
		t.Errorf("baseURL = %q", got)
	}
}
