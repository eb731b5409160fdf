package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/onefeed/internal/cursor"
	"github.com/ppiankov/onefeed/internal/filter"
	"github.com/ppiankov/onefeed/internal/normalize"
	"github.com/ppiankov/onefeed/internal/platform"
)

const (
	DefaultPageSize     = 40
	DefaultFetchTimeout = 20 * time.Second
)

// State is the aggregator's position in the refresh cycle.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateMerging  State = "merging"
	StateSettled  State = "settled"
)

// Settings supplies the filtering policy. Implementations live outside the
// engine; a snapshot is taken once per cycle.
type Settings interface {
	MutedKeywords() []string
	ReplyFilteringEnabled() bool
	FollowedHandles() []string
}

// Registry supplies the configured accounts. The engine only reads account
// identity; credentials stay with their owner.
type Registry interface {
	ListAccounts() []platform.Account
}

// Options tunes the aggregator.
type Options struct {
	PageSize     int
	FetchTimeout time.Duration
}

// Aggregator fans out one fetch per selected account, normalizes and
// filters the results, and merges them into the entry list it owns. Cycles
// that start while another is in flight are coalesced: the late caller joins
// the running cycle and receives its outcome.
type Aggregator struct {
	adapters map[platform.Platform]platform.Adapter
	registry Registry
	settings Settings
	cursors  *cursor.Store
	pageSize int
	timeout  time.Duration

	mu        sync.Mutex
	state     State
	byAccount map[string][]normalize.Post
	entries   []Entry
	inflight  *cycleCall
}

type cycleCall struct {
	done    chan struct{}
	outcome Outcome
}

// NewAggregator creates an aggregator over the given adapters.
func NewAggregator(adapters []platform.Adapter, registry Registry, settings Settings, cursors *cursor.Store, opts Options) (*Aggregator, error) {
	if len(adapters) == 0 {
		return nil, errors.New("timeline: at least one adapter is required")
	}
	if registry == nil {
		return nil, errors.New("timeline: account registry is required")
	}
	if settings == nil {
		return nil, errors.New("timeline: settings are required")
	}
	if cursors == nil {
		return nil, errors.New("timeline: cursor store is required")
	}

	byPlatform := make(map[platform.Platform]platform.Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := byPlatform[a.Platform()]; dup {
			return nil, fmt.Errorf("timeline: duplicate adapter for platform %q", a.Platform())
		}
		byPlatform[a.Platform()] = a
	}

	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}

	return &Aggregator{
		adapters:  byPlatform,
		registry:  registry,
		settings:  settings,
		cursors:   cursors,
		pageSize:  opts.PageSize,
		timeout:   opts.FetchTimeout,
		state:     StateIdle,
		byAccount: make(map[string][]normalize.Post),
	}, nil
}

// State returns the aggregator's current cycle state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Entries returns the current merged feed, newest first.
func (a *Aggregator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Refresh runs one fetch cycle over the selected accounts. force resets
// their cursors to the top first and replaces each account's posts;
// otherwise the cycle resumes from the stored cursors and extends them.
func (a *Aggregator) Refresh(ctx context.Context, force bool) Outcome {
	return a.run(ctx, cycleSpec{force: force})
}

// LoadNextPage advances only the accounts whose cursor still reports more
// pages; exhausted accounts are skipped. Results extend the merged list.
func (a *Aggregator) LoadNextPage(ctx context.Context) Outcome {
	return a.run(ctx, cycleSpec{nextPage: true})
}

type cycleSpec struct {
	force    bool
	nextPage bool
}

func (a *Aggregator) run(ctx context.Context, spec cycleSpec) Outcome {
	a.mu.Lock()
	if a.inflight != nil {
		call := a.inflight
		a.mu.Unlock()
		<-call.done
		return call.outcome
	}
	call := &cycleCall{done: make(chan struct{})}
	a.inflight = call
	a.state = StateFetching
	a.mu.Unlock()

	outcome := a.cycle(ctx, spec)

	a.mu.Lock()
	a.inflight = nil
	a.state = StateSettled
	a.mu.Unlock()

	call.outcome = outcome
	close(call.done)
	return outcome
}

type fetchResult struct {
	account    platform.Account
	posts      []normalize.Post
	nextCursor string
	hasMore    bool
	err        error
}

func (a *Aggregator) cycle(ctx context.Context, spec cycleSpec) Outcome {
	accounts := selectedAccounts(a.registry.ListAccounts())
	if len(accounts) == 0 {
		return Outcome{Status: StatusSuccess}
	}

	cfg := filter.NewConfig(
		a.settings.MutedKeywords(),
		a.settings.ReplyFilteringEnabled(),
		a.settings.FollowedHandles(),
	)

	results := make(chan fetchResult, len(accounts))
	var wg sync.WaitGroup

	for _, acct := range accounts {
		if spec.force {
			if err := a.cursors.Reset(ctx, acct.ID); err != nil {
				results <- fetchResult{account: acct, err: &platform.TransportError{AccountID: acct.ID, Err: err}}
				continue
			}
		}

		rec := a.cursors.Get(acct.ID)
		if spec.nextPage && !rec.HasMore {
			continue
		}

		adapter, ok := a.adapters[acct.Platform]
		if !ok {
			results <- fetchResult{account: acct, err: &platform.TransportError{
				AccountID: acct.ID,
				Err:       fmt.Errorf("no adapter for platform %q", acct.Platform),
			}}
			continue
		}

		wg.Add(1)
		go func(acct platform.Account, cur string) {
			defer wg.Done()

			fctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			page, err := adapter.FetchPage(fctx, acct, cur, a.pageSize)
			if err != nil {
				results <- fetchResult{account: acct, err: err}
				return
			}

			posts := make([]normalize.Post, 0, len(page.Items))
			for _, raw := range page.Items {
				post, err := normalize.Normalize(raw, acct)
				if err != nil {
					continue // one malformed item never sinks the page
				}
				if !cfg.Allow(post) {
					continue
				}
				posts = append(posts, post)
			}

			results <- fetchResult{
				account:    acct,
				posts:      posts,
				nextCursor: page.NextCursor,
				hasMore:    page.HasMore,
			}
		}(acct, rec.Value)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		reports   []AccountReport
		successes []fetchResult
	)
	for r := range results {
		if r.err == nil {
			// The cursor only advances on success, and never rewinds to
			// the top because a page ran empty.
			nextCursor := r.nextCursor
			if nextCursor == "" {
				nextCursor = a.cursors.Get(r.account.ID).Value
			}
			if err := a.cursors.Advance(ctx, r.account.ID, nextCursor, r.hasMore); err != nil {
				r.err = &platform.TransportError{AccountID: r.account.ID, Err: err}
			}
		}

		if r.err != nil {
			status, after := classify(r.err)
			reports = append(reports, AccountReport{
				AccountID:  r.account.ID,
				Platform:   r.account.Platform,
				Status:     status,
				Err:        r.err,
				RetryAfter: after,
			})
			continue
		}

		successes = append(successes, r)
		reports = append(reports, AccountReport{
			AccountID: r.account.ID,
			Platform:  r.account.Platform,
			Status:    AccountOK,
			Fetched:   len(r.posts),
		})
	}

	a.setState(StateMerging)

	outcome := summarize(reports)
	if outcome.Status == StatusFailure {
		// Total failure leaves the previously merged list untouched.
		return outcome
	}

	a.mu.Lock()
	for _, s := range successes {
		if spec.force {
			a.byAccount[s.account.ID] = s.posts
		} else {
			a.byAccount[s.account.ID] = append(a.byAccount[s.account.ID], s.posts...)
		}
	}
	a.entries = mergeEntries(a.byAccount)
	a.mu.Unlock()

	return outcome
}

func (a *Aggregator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func selectedAccounts(accounts []platform.Account) []platform.Account {
	var out []platform.Account
	for _, acct := range accounts {
		if acct.Selected {
			out = append(out, acct)
		}
	}
	return out
}
