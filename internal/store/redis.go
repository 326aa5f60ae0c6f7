package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cipherroom/cipherroom/internal/models"
)

// RedisLog stores encrypted message records in Redis: one JSON record per
// message plus a per-room sorted set of message IDs scored by timestamp.
// Records carry no TTL; this log is the durability layer for history.
type RedisLog struct {
	client *redis.Client
}

// NewRedisLog creates a Redis-backed message log.
func NewRedisLog(ctx context.Context, redisURL string) (*RedisLog, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisLog{client: client}, nil
}

// Client exposes the underlying connection for components that share it,
// like the rate limiter.
func (l *RedisLog) Client() *redis.Client {
	return l.client
}

// Close closes the Redis connection.
func (l *RedisLog) Close() error {
	return l.client.Close()
}

// Ping checks the Redis connection.
func (l *RedisLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// roomLogKey returns the key for a room's message-ID sorted set.
func roomLogKey(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s:log", roomID)
}

// messageKey returns the key holding one message record.
func messageKey(id string) string {
	return fmt.Sprintf("msg:%s", id)
}

// Append persists a new record and indexes it in the room's log.
func (l *RedisLog) Append(ctx context.Context, msg *models.StoredMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, messageKey(msg.ID), data, 0)
	pipe.ZAdd(ctx, roomLogKey(msg.RoomID), redis.Z{
		Score:  float64(msg.Timestamp),
		Member: msg.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Page returns up to limit records for the room, newest first.
func (l *RedisLog) Page(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.StoredMessage, error) {
	ids, err := l.client.ZRevRange(ctx, roomLogKey(roomID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.StoredMessage{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = messageKey(id)
	}

	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.StoredMessage, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue // index entry without a record, skip
		}
		var msg models.StoredMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Get retrieves a record by message ID.
func (l *RedisLog) Get(ctx context.Context, id string) (*models.StoredMessage, error) {
	data, err := l.client.Get(ctx, messageKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msg models.StoredMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Update overwrites an existing record. The log index is untouched: the
// message keeps its position and timestamp score.
func (l *RedisLog) Update(ctx context.Context, msg *models.StoredMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return l.client.Set(ctx, messageKey(msg.ID), data, 0).Err()
}

// Delete removes a record and its index entry.
func (l *RedisLog) Delete(ctx context.Context, roomID uuid.UUID, id string) (bool, error) {
	pipe := l.client.TxPipeline()
	zrem := pipe.ZRem(ctx, roomLogKey(roomID), id)
	pipe.Del(ctx, messageKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return zrem.Val() > 0, nil
}
