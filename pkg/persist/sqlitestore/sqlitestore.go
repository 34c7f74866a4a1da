// Package sqlitestore is a persist.Store backed by a SQLite file.
package sqlitestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/persist"
)

const schema = `
CREATE TABLE IF NOT EXISTS magazines (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	issue_number     TEXT NOT NULL DEFAULT '',
	publication_date TEXT NOT NULL DEFAULT '',
	page_ratio       TEXT NOT NULL DEFAULT '',
	is_shared        INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	state            TEXT NOT NULL
);
`

const columns = `id, title, issue_number, publication_date, page_ratio, is_shared, created_at, updated_at, state`

// Store keeps magazines in one SQLite database. A single connection is shared
// and serialized.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	now  func() time.Time
}

var _ persist.Store = (*Store)(nil)

// Open opens or creates the database at path. Use ":memory:" for a throwaway
// database.
func Open(path string) (*Store, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == ":memory:" {
		flags = append(flags, sqlite.OpenMemory)
	} else {
		flags = append(flags, sqlite.OpenWAL)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{conn: conn, now: time.Now}, nil
}

// WithClock sets the clock used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// with runs fn on the connection, interrupting it when ctx is done.
func (s *Store) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return constants.ErrClosed
	}
	prev := s.conn.SetInterrupt(ctx.Done())
	defer s.conn.SetInterrupt(prev)
	return fn(s.conn)
}

func (s *Store) List(ctx context.Context) ([]persist.Magazine, error) {
	var out []persist.Magazine
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+columns+` FROM magazines`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				m, err := scan(stmt)
				if err != nil {
					return err
				}
				out = append(out, m)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list magazines: %w", err)
	}
	persist.Sort(out)
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (persist.Magazine, error) {
	var (
		m     persist.Magazine
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+columns+` FROM magazines WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				m, err = scan(stmt)
				found = err == nil
				return err
			},
		})
	})
	if err != nil {
		return persist.Magazine{}, fmt.Errorf("get magazine %s: %w", id, err)
	}
	if !found {
		return persist.Magazine{}, fmt.Errorf("%w: %s", constants.ErrMagazineNotFound, id)
	}
	return m, nil
}

func (s *Store) Create(ctx context.Context, settings models.Settings) (persist.Magazine, error) {
	m := persist.New(settings, s.now())
	state, err := json.Marshal(m.State)
	if err != nil {
		return persist.Magazine{}, fmt.Errorf("encode magazine: %w", err)
	}
	err = s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO magazines (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				m.ID, m.Title, m.IssueNumber, m.PublicationDate, m.PageRatio, boolInt(m.IsShared),
				formatTime(m.CreatedAt), formatTime(m.UpdatedAt), string(state),
			}})
	})
	if err != nil {
		return persist.Magazine{}, fmt.Errorf("create magazine: %w", err)
	}
	return m, nil
}

func (s *Store) Save(ctx context.Context, id string, saved document.Saved) error {
	var m persist.Magazine
	m.Apply(saved, s.now())
	state, err := json.Marshal(m.State)
	if err != nil {
		return fmt.Errorf("encode magazine: %w", err)
	}

	var changed int
	err = s.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE magazines SET title = ?, issue_number = ?, publication_date = ?,
			page_ratio = ?, is_shared = ?, updated_at = ?, state = ? WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{
				m.Title, m.IssueNumber, m.PublicationDate, m.PageRatio, boolInt(m.IsShared),
				formatTime(m.UpdatedAt), string(state), id,
			}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("save magazine %s: %w", id, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w: %s", constants.ErrMagazineNotFound, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var changed int
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `DELETE FROM magazines WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete magazine %s: %w", id, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w: %s", constants.ErrMagazineNotFound, id)
	}
	return nil
}

// Close closes the database. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func scan(stmt *sqlite.Stmt) (persist.Magazine, error) {
	m := persist.Magazine{
		ID:              stmt.ColumnText(0),
		Title:           stmt.ColumnText(1),
		IssueNumber:     stmt.ColumnText(2),
		PublicationDate: stmt.ColumnText(3),
		PageRatio:       stmt.ColumnText(4),
		IsShared:        stmt.ColumnInt64(5) != 0,
	}
	var err error
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, stmt.ColumnText(6)); err != nil {
		return m, fmt.Errorf("magazine %s: created_at: %w", m.ID, err)
	}
	if m.UpdatedAt, err = time.Parse(time.RFC3339Nano, stmt.ColumnText(7)); err != nil {
		return m, fmt.Errorf("magazine %s: updated_at: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(stmt.ColumnText(8)), &m.State); err != nil {
		return m, fmt.Errorf("magazine %s: state: %w", m.ID, err)
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
