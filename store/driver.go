package store

import (
	"context"
	"database/sql"
)

// Driver is the session history persistence backend.
type Driver interface {
	AppendConversationTurn(ctx context.Context, create *AppendConversationTurn) error
	ListConversationTurns(ctx context.Context, find *FindConversationTurns) ([]*ConversationTurn, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// Migrate creates the schema when needed.
	Migrate(ctx context.Context) error
	Close() error
}

// SQLDriver is implemented by drivers backed by database/sql.
type SQLDriver interface {
	Driver
	GetDB() *sql.DB
}
