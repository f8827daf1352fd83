package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const notifyChannel = "sketchsync:appends"

var _ Notifier = (*RedisNotifier)(nil)

// RedisNotifier fans append positions out across server instances, so
// a session holding a WebSocket to one instance still hears about
// appends handled by another.
type RedisNotifier struct {
	rdb *redis.Client
	log *zap.Logger
}

type appendEvent struct {
	DocumentID string `json:"documentId"`
	Position   int64  `json:"position"`
}

func NewRedisNotifier(addr, password string, db int, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{
		rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		log: logger,
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, documentID string, position int64) error {
	payload, err := json.Marshal(appendEvent{DocumentID: documentID, Position: position})
	if err != nil {
		return fmt.Errorf("encode append event: %w", err)
	}
	if err := n.rdb.Publish(ctx, notifyChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish append event: %w", err)
	}
	return nil
}

// Subscribe blocks, delivering append events to fn until ctx is done.
func (n *RedisNotifier) Subscribe(ctx context.Context, fn AppendHook) error {
	sub := n.rdb.Subscribe(ctx, notifyChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev appendEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				n.log.Warn("dropping malformed append event", zap.Error(err))
				continue
			}
			fn(ev.DocumentID, ev.Position)
		}
	}
}

func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
