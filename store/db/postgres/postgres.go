package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/store"
)

// undefinedTable is the PostgreSQL error code for a missing relation.
const undefinedTable = "42P01"

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the PostgreSQL database named by profile.DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	return &DB{db: db, profile: profile}, nil
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
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turn_session ON conversation_turn (session_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate postgres schema")
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
		`INSERT INTO conversation_turn (session_id, question, answer, created_ts) VALUES (`+placeholders(4)+`)`,
		turn.SessionID, turn.Question, turn.Answer, turn.CreatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to insert conversation turn")
	}

	if create.Limit > 0 {
		// Keep the newest Limit ids of the session.
		var keep []int64
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM conversation_turn WHERE session_id = $1 ORDER BY id DESC LIMIT $2`,
			turn.SessionID, create.Limit,
		)
		if err != nil {
			return errors.Wrap(err, "failed to select kept turns")
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return errors.Wrap(err, "failed to scan turn id")
			}
			keep = append(keep, id)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM conversation_turn WHERE session_id = $1 AND NOT (id = ANY($2))`,
			turn.SessionID, pq.Array(keep),
		); err != nil {
			return errors.Wrap(err, "failed to trim conversation")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit conversation turn")
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurns) ([]*store.ConversationTurn, error) {
	query := `SELECT session_id, question, answer, created_ts FROM (
		SELECT id, session_id, question, answer, created_ts
		FROM conversation_turn WHERE session_id = $1 ORDER BY id DESC`
	args := []any{find.SessionID}
	if find.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}
	query += `) AS recent ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isUndefinedTable(err) {
			slog.Warn("postgres: conversation_turn table missing, run migrations")
			return []*store.ConversationTurn{}, nil
		}
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
	if _, err := d.db.ExecContext(ctx, `DELETE FROM conversation_turn WHERE session_id = $1`, del.SessionID); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable
}
