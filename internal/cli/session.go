package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/onefeed/internal/config"
	"github.com/ppiankov/onefeed/internal/cursor"
	"github.com/ppiankov/onefeed/internal/platform"
	"github.com/ppiankov/onefeed/internal/platform/bluesky"
	"github.com/ppiankov/onefeed/internal/platform/mastodon"
	"github.com/ppiankov/onefeed/internal/readpos"
	"github.com/ppiankov/onefeed/internal/store"
	"github.com/ppiankov/onefeed/internal/timeline"
)

// session wires config, store, adapters, and the engine for one command
// invocation. Close persists the read state and prunes stale seen markers.
type session struct {
	cfg    *config.Config
	db     *store.Store
	engine *timeline.Engine
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	accounts := cfg.ListAccounts()
	ids := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		if err := db.UpsertAccount(ctx, acct); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("record account %s: %w", acct.ID, err)
		}
		ids = append(ids, acct.ID)
	}

	tokens := config.EnvTokenSource()
	timeout := cfg.Engine.FetchTimeout.Duration

	mast, err := mastodon.New(tokens, mastodon.WithTimeout(timeout))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create mastodon adapter: %w", err)
	}
	bsky, err := bluesky.New(tokens, bluesky.WithTimeout(timeout))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bluesky adapter: %w", err)
	}

	cursors := cursor.NewStore(db)
	if err := cursors.Hydrate(ctx, ids); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hydrate cursors: %w", err)
	}

	agg, err := timeline.NewAggregator(
		[]platform.Adapter{mast, bsky},
		cfg, cfg, cursors,
		timeline.Options{PageSize: cfg.Engine.PageSize, FetchTimeout: timeout},
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	tracker := readpos.NewTracker(db, readpos.WithMinDwell(cfg.Engine.MinDwell.Duration))
	engine, err := timeline.NewEngine(agg, tracker)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := engine.LoadState(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &session{cfg: cfg, db: db, engine: engine}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.engine.SaveState(ctx); err != nil {
		fmt.Printf("warning: save read state: %v\n", err)
	}
	if _, err := s.db.PruneSeen(ctx, s.cfg.Storage.RetainDays); err != nil {
		fmt.Printf("warning: prune seen posts: %v\n", err)
	}
	_ = s.db.Close()
}
