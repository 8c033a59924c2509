package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/virtualclone/internal/profile"
)

// ErrEmptySessionID is returned for calls without a session id.
var ErrEmptySessionID = errors.New("session id is required")

// Store provides access to per-session conversation history.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return errors.Wrap(s.driver.Migrate(ctx), "migrate")
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// AppendTurn records a turn and keeps only the session's last
// SessionHistoryLimit turns.
func (s *Store) AppendTurn(ctx context.Context, sessionID, question, answer string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return s.driver.AppendConversationTurn(ctx, &AppendConversationTurn{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Limit:     s.historyLimit(),
	})
}

// ListTurns returns the last limit turns of a session, oldest first. limit
// <= 0 returns the whole stored history.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]*ConversationTurn, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	return s.driver.ListConversationTurns(ctx, &FindConversationTurns{SessionID: sessionID, Limit: limit})
}

// ResetSession forgets a session's history.
func (s *Store) ResetSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return s.driver.DeleteConversation(ctx, &DeleteConversation{SessionID: sessionID})
}

func (s *Store) historyLimit() int {
	if s.profile == nil || s.profile.SessionHistoryLimit <= 0 {
		return 10
	}
	return s.profile.SessionHistoryLimit
}
