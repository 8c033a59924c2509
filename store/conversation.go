package store

import "time"

// ConversationTurn is one stored question/answer exchange of a session.
type ConversationTurn struct {
	SessionID string
	Question  string
	Answer    string
	CreatedTs int64
}

// AppendConversationTurn appends a turn and trims the session to Limit turns.
type AppendConversationTurn struct {
	SessionID string
	Question  string
	Answer    string
	// Limit is the number of most recent turns kept; <= 0 keeps everything.
	Limit int
}

// FindConversationTurns lists the turns of a session, oldest first.
type FindConversationTurns struct {
	SessionID string
	// Limit returns only the most recent turns when > 0.
	Limit int
}

// DeleteConversation removes every turn of a session.
type DeleteConversation struct {
	SessionID string
}

// NewTurn builds a turn stamped with the current time.
func (a *AppendConversationTurn) NewTurn() *ConversationTurn {
	return &ConversationTurn{
		SessionID: a.SessionID,
		Question:  a.Question,
		Answer:    a.Answer,
		CreatedTs: time.Now().UnixMilli(),
	}
}
