// Package redis stores session histories as Redis lists, one JSON-encoded
// turn per element, expiring after the session idle timeout.
package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/store"
)

const keyPrefix = "virtualclone:conversation:"

type turnRecord struct {
	Question  string `json:"q"`
	Answer    string `json:"a"`
	CreatedTs int64  `json:"ts"`
}

type DB struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewDB connects to the Redis server named by profile.DSN, a redis:// URL.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	opts, err := goredis.ParseURL(profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis dsn")
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	ttl := profile.SessionIdleTimeout
	if ttl <= 0 {
		ttl = time.Hour
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, ttl time.Duration) *DB {
	return &DB{client: client, ttl: ttl}
}

func (d *DB) Migrate(context.Context) error {
	return nil
}

func (d *DB) Close() error {
	return d.client.Close()
}

func (d *DB) AppendConversationTurn(ctx context.Context, create *store.AppendConversationTurn) error {
	turn := create.NewTurn()
	data, err := json.Marshal(turnRecord{Question: turn.Question, Answer: turn.Answer, CreatedTs: turn.CreatedTs})
	if err != nil {
		return errors.Wrap(err, "failed to encode turn")
	}

	key := keyPrefix + create.SessionID
	_, err = d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if create.Limit > 0 {
			pipe.LTrim(ctx, key, int64(-create.Limit), -1)
		}
		pipe.Expire(ctx, key, d.ttl)
		return nil
	})
	return errors.Wrap(err, "failed to append conversation turn")
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurns) ([]*store.ConversationTurn, error) {
	start := int64(0)
	if find.Limit > 0 {
		start = int64(-find.Limit)
	}

	items, err := d.client.LRange(ctx, keyPrefix+find.SessionID, start, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation turns")
	}

	list := make([]*store.ConversationTurn, 0, len(items))
	for _, item := range items {
		var rec turnRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			slog.Warn("redis store: skipping undecodable turn", "session", find.SessionID, "error", err)
			continue
		}
		list = append(list, &store.ConversationTurn{
			SessionID: find.SessionID,
			Question:  rec.Question,
			Answer:    rec.Answer,
			CreatedTs: rec.CreatedTs,
		})
	}
	return list, nil
}

func (d *DB) DeleteConversation(ctx context.Context, del *store.DeleteConversation) error {
	return errors.Wrap(d.client.Del(ctx, keyPrefix+del.SessionID).Err(), "failed to delete conversation")
}
