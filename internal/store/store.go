// Package store persists the engine's durable state in sqlite: accounts,
// per-account pagination cursors, and the read position. It implements the
// narrow persistence contracts the cursor store and read tracker consume;
// no component reaches into the database directly.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/onefeed/internal/cursor"
	"github.com/ppiankov/onefeed/internal/platform"
	"github.com/ppiankov/onefeed/internal/readpos"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertAccount records an account identity. Credentials stay outside the
// store; token_ref is the opaque reference only.
func (s *Store) UpsertAccount(ctx context.Context, acct platform.Account) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if strings.TrimSpace(acct.ID) == "" {
		return errors.New("account id is required")
	}
	if !acct.Platform.Known() {
		return fmt.Errorf("unknown platform %q", acct.Platform)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, platform, username, server, token_ref, selected)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			platform = excluded.platform,
			username = excluded.username,
			server = excluded.server,
			token_ref = excluded.token_ref,
			selected = excluded.selected
	`, acct.ID, string(acct.Platform), acct.Username, acct.Server, acct.TokenRef, boolInt(acct.Selected))
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// ListAccounts returns all recorded accounts, ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]platform.Account, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform, username, server, token_ref, selected
		FROM accounts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []platform.Account
	for rows.Next() {
		var (
			acct     platform.Account
			plat     string
			selected int
		)
		if err := rows.Scan(&acct.ID, &plat, &acct.Username, &acct.Server, &acct.TokenRef, &selected); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		acct.Platform = platform.Platform(plat)
		acct.Selected = selected != 0
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// DeleteAccount removes an account; its cursor row cascades.
func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// LoadCursor implements cursor.Persister. Returns nil when the account has
// no persisted cursor.
func (s *Store) LoadCursor(ctx context.Context, accountID string) (*cursor.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT cursor, has_more FROM cursors WHERE account_id = ?", accountID)

	var (
		rec     cursor.Record
		hasMore int
	)
	err := row.Scan(&rec.Value, &hasMore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	rec.HasMore = hasMore != 0
	return &rec, nil
}

// SaveCursor implements cursor.Persister.
func (s *Store) SaveCursor(ctx context.Context, accountID string, rec cursor.Record) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if strings.TrimSpace(accountID) == "" {
		return errors.New("account id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (account_id, cursor, has_more, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			cursor = excluded.cursor,
			has_more = excluded.has_more,
			updated_at = excluded.updated_at
	`, accountID, rec.Value, boolInt(rec.HasMore), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// DeleteCursor implements cursor.Persister.
func (s *Store) DeleteCursor(ctx context.Context, accountID string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cursors WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("delete cursor: %w", err)
	}
	return nil
}

// LoadReadState implements readpos.Persister.
func (s *Store) LoadReadState(ctx context.Context) (readpos.State, error) {
	if s == nil || s.db == nil {
		return readpos.State{}, errors.New("store is not initialized")
	}

	st := readpos.State{Seen: make(map[string]time.Time)}

	row := s.db.QueryRowContext(ctx,
		"SELECT last_read_id, last_visit, anchor_id FROM read_state WHERE id = 1")
	var lastVisit string
	err := row.Scan(&st.LastReadID, &lastVisit, &st.AnchorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return readpos.State{}, fmt.Errorf("load read state: %w", err)
	}
	if lastVisit != "" {
		st.LastVisit, err = parseTime(lastVisit)
		if err != nil {
			return readpos.State{}, fmt.Errorf("parse last_visit: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT post_id, seen_at FROM seen_posts")
	if err != nil {
		return readpos.State{}, fmt.Errorf("load seen posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, seenAt string
		if err := rows.Scan(&id, &seenAt); err != nil {
			return readpos.State{}, fmt.Errorf("scan seen post: %w", err)
		}
		at, err := parseTime(seenAt)
		if err != nil {
			return readpos.State{}, fmt.Errorf("parse seen_at: %w", err)
		}
		st.Seen[id] = at
	}
	if err := rows.Err(); err != nil {
		return readpos.State{}, fmt.Errorf("iterate seen posts: %w", err)
	}

	return st, nil
}

// SaveReadState implements readpos.Persister. The seen set is replaced
// wholesale inside one transaction.
func (s *Store) SaveReadState(ctx context.Context, st readpos.State) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO read_state (id, last_read_id, last_visit, anchor_id)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_read_id = excluded.last_read_id,
			last_visit = excluded.last_visit,
			anchor_id = excluded.anchor_id
	`, st.LastReadID, formatTime(st.LastVisit), st.AnchorID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save read state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM seen_posts"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear seen posts: %w", err)
	}
	for id, at := range st.Seen {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO seen_posts (post_id, seen_at) VALUES (?, ?)", id, formatTime(at)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save seen post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit read state: %w", err)
	}
	return nil
}

// PruneSeen deletes seen markers older than retainDays. Posts that old have
// aged out of every fetchable page, so their markers only grow the database.
// Returns the number of markers removed.
func (s *Store) PruneSeen(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM seen_posts WHERE seen_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen posts: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
