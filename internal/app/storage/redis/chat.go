// Package redis keeps AI consultant chat history in Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/chat"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "studio_layer:chat:"

// ChatStore implements storage.ChatHistoryStore.
type ChatStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

var _ storage.ChatHistoryStore = (*ChatStore)(nil)

// NewChatStore wraps an existing client. ttl <= 0 keeps histories forever.
func NewChatStore(rdb goredis.UniversalClient, ttl time.Duration) *ChatStore {
	return &ChatStore{rdb: rdb, ttl: ttl}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func key(studioID, username string) string {
	return keyPrefix + studioID + ":" + username
}

func (s *ChatStore) AppendChatMessages(ctx context.Context, studioID, username string, limit int, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode chat message: %w", err)
		}
		values = append(values, raw)
	}

	k := key(studioID, username)
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, k, values...)
		if limit > 0 {
			p.LTrim(ctx, k, int64(-limit), -1)
		}
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	return err
}

func (s *ChatStore) ListChatMessages(ctx context.Context, studioID, username string) ([]chat.Message, error) {
	raw, err := s.rdb.LRange(ctx, key(studioID, username), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var m chat.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *ChatStore) ClearChatMessages(ctx context.Context, studioID, username string) error {
	return s.rdb.Del(ctx, key(studioID, username)).Err()
}
