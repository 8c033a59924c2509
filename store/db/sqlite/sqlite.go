package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	//
	// References:
	// - https://pkg.go.dev/modernc.org/sqlite#Driver.Open
	// - https://www.sqlite.org/pragma.html
	separator := "?"
	if strings.Contains(profile.DSN, "?") {
		separator = "&"
	}
	sqliteDB, err := sql.Open("sqlite", profile.DSN+separator+"_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite: single connection is optimal with WAL
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_turn (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turn_session ON conversation_turn (session_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate sqlite schema")
		}
	}
	return nil
}

func (d *DB) AppendConversationTurn(ctx context.Context, create *store.AppendConversationTurn) error {
	turn := create.NewTurn()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_turn (session_id, question, answer, created_ts) VALUES (?, ?, ?, ?)`,
		turn.SessionID, turn.Question, turn.Answer, turn.CreatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to insert conversation turn")
	}

	if create.Limit > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM conversation_turn
			WHERE session_id = ? AND id NOT IN (
				SELECT id FROM conversation_turn WHERE session_id = ? ORDER BY id DESC LIMIT ?
			)`,
			turn.SessionID, turn.SessionID, create.Limit,
		); err != nil {
			return errors.Wrap(err, "failed to trim conversation")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit conversation turn")
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurns) ([]*store.ConversationTurn, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT session_id, question, answer, created_ts FROM (
			SELECT id, session_id, question, answer, created_ts
			FROM conversation_turn WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		find.SessionID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation turns")
	}
	defer rows.Close()

	list := []*store.ConversationTurn{}
	for rows.Next() {
		turn := &store.ConversationTurn{}
		if err := rows.Scan(&turn.SessionID, &turn.Question, &turn.Answer, &turn.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation turn")
		}
		list = append(list, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate conversation turns")
	}
	return list, nil
}

func (d *DB) DeleteConversation(ctx context.Context, del *store.DeleteConversation) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM conversation_turn WHERE session_id = ?`, del.SessionID); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	return nil
}
