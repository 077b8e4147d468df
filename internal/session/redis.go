package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spigell/vkinder/internal/profile"
)

const (
	sessionPrefix = "vkinder:session:"

	fieldCandidates = "candidates"
	fieldCursor     = "cursor"
	fieldLength     = "length"
)

// advanceScript increments the cursor only while it is below the list length,
// so concurrent advances can never push it past the end.
var advanceScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local cursor = tonumber(redis.call('HGET', KEYS[1], 'cursor')) or 0
local length = tonumber(redis.call('HGET', KEYS[1], 'length')) or 0
if cursor < length then
	cursor = redis.call('HINCRBY', KEYS[1], 'cursor', 1)
end
local ttl = tonumber(ARGV[1])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return {cursor, redis.call('HGET', KEYS[1], 'candidates')}
`)

// RedisStore keeps sessions in Redis hashes so several bot processes can share them.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store whose sessions expire after ttl of inactivity.
// A non-positive ttl keeps sessions forever.
func NewRedisStore(client *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (Session, bool, error) {
	if r.client == nil {
		return Session{}, false, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, sessionKey(userID)).Result()
	if err != nil {
		return Session{}, false, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return Session{}, false, nil
	}

	cursor, err := strconv.Atoi(values[fieldCursor])
	if err != nil {
		return Session{}, false, fmt.Errorf("parse session cursor: %w", err)
	}

	return decodeSession(userID, cursor, values[fieldCandidates])
}

func (r *RedisStore) Put(ctx context.Context, s Session) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	s = s.normalize()
	payload, err := json.Marshal(s.Candidates)
	if err != nil {
		return fmt.Errorf("marshal session candidates: %w", err)
	}

	key := sessionKey(s.UserID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		fieldCandidates: string(payload),
		fieldCursor:     s.Cursor,
		fieldLength:     len(s.Candidates),
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put redis session: %w", err)
	}

	return nil
}

func (r *RedisStore) Advance(ctx context.Context, userID int64) (Session, bool, error) {
	if r.client == nil {
		return Session{}, false, fmt.Errorf("redis client is nil")
	}

	res, err := advanceScript.Run(ctx, r.client, []string{sessionKey(userID)}, r.ttl.Milliseconds()).Result()
	if err == goredis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("advance redis session: %w", err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return Session{}, false, fmt.Errorf("unexpected advance result %T", res)
	}

	cursor, ok := parts[0].(int64)
	if !ok {
		return Session{}, false, fmt.Errorf("unexpected cursor type %T", parts[0])
	}
	payload, _ := parts[1].(string)

	return decodeSession(userID, int(cursor), payload)
}

func decodeSession(userID int64, cursor int, payload string) (Session, bool, error) {
	var candidates []profile.Candidate
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &candidates); err != nil {
			return Session{}, false, fmt.Errorf("unmarshal session candidates: %w", err)
		}
	}

	s := Session{UserID: userID, Candidates: candidates, Cursor: cursor}
	return s.normalize(), true, nil
}

func sessionKey(userID int64) string {
	return sessionPrefix + strconv.FormatInt(userID, 10)
}
