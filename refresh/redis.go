package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound  int64 = 0
	rotateStatusExpired   int64 = 1
	rotateStatusRevoked   int64 = 2
	rotateStatusDuplicate int64 = 3
	rotateStatusRotated   int64 = 4
)

const createTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "user", ARGV[2], "issued", ARGV[3], "expires", ARGV[4], "revoked", "0")
redis.call("PEXPIREAT", KEYS[1], ARGV[4])
redis.call("SADD", KEYS[2], ARGV[5])
return 1
`

var createTokenLua = redis.NewScript(createTokenScript)

const rotateTokenScript = `
local current_key = KEYS[1]
local next_key = KEYS[2]
local user_prefix = ARGV[1]
local now_ms = tonumber(ARGV[2])

local fields = redis.call("HMGET", current_key, "user", "expires", "revoked")
local user_id = fields[1]
local expires_at = tonumber(fields[2])
if not user_id or not expires_at then
  return {0}
end
if fields[3] == "1" then
  return {2}
end
if expires_at <= now_ms then
  return {1}
end
if redis.call("EXISTS", next_key) == 1 then
  return {3}
end

redis.call("HSET", current_key, "revoked", "1")
redis.call("HSET", next_key, "id", ARGV[3], "user", user_id, "issued", ARGV[4], "expires", ARGV[5], "revoked", "0")
redis.call("PEXPIREAT", next_key, ARGV[5])
redis.call("SADD", user_prefix .. user_id, ARGV[6])

return {4, user_id}
`

var rotateTokenLua = redis.NewScript(rotateTokenScript)

const revokeTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

var revokeTokenLua = redis.NewScript(revokeTokenScript)

const revokeUserScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, hash in ipairs(members) do
  local key = ARGV[1] .. hash
  local state = redis.call("HGET", key, "revoked")
  if not state then
    redis.call("SREM", KEYS[1], hash)
  elseif state == "0" then
    redis.call("HSET", key, "revoked", "1")
    revoked = revoked + 1
  end
end
return revoked
`

var revokeUserLua = redis.NewScript(revokeUserScript)

// RedisStore keeps each token as a hash that expires with the token, plus a
// set of token hashes per user.
//
// Revoked tokens stay readable until their natural expiry so a replay is
// classified the same as any other invalid presentation.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store under prefix (default "arf").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "arf"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) tokenPrefix() string { return s.prefix + ":t:" }
func (s *RedisStore) userPrefix() string  { return s.prefix + ":u:" }

func (s *RedisStore) tokenKey(hash string) string { return s.tokenPrefix() + hash }
func (s *RedisStore) userKey(userID int64) string {
	return s.userPrefix() + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Create(ctx context.Context, t Token) error {
	res, err := createTokenLua.Run(ctx, s.redis,
		[]string{s.tokenKey(t.Hash), s.userKey(t.UserID)},
		t.ID, t.UserID, t.IssuedAt.UnixMilli(), t.ExpiresAt.UnixMilli(), t.Hash,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Rotate(ctx context.Context, presentedHash string, next Token, now time.Time) (Token, error) {
	raw, err := rotateTokenLua.Run(ctx, s.redis,
		[]string{s.tokenKey(presentedHash), s.tokenKey(next.Hash)},
		s.userPrefix(), now.UnixMilli(),
		next.ID, next.IssuedAt.UnixMilli(), next.ExpiresAt.UnixMilli(), next.Hash,
	).Slice()
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(raw) == 0 {
		return Token{}, fmt.Errorf("%w: empty rotate reply", ErrUnavailable)
	}
	status, ok := raw[0].(int64)
	if !ok {
		return Token{}, fmt.Errorf("%w: unexpected rotate reply", ErrUnavailable)
	}

	switch status {
	case rotateStatusNotFound, rotateStatusExpired, rotateStatusRevoked:
		return Token{}, ErrInvalid
	case rotateStatusDuplicate:
		return Token{}, ErrDuplicate
	case rotateStatusRotated:
		if len(raw) < 2 {
			return Token{}, fmt.Errorf("%w: rotate reply missing user", ErrUnavailable)
		}
		userStr, _ := raw[1].(string)
		userID, err := strconv.ParseInt(userStr, 10, 64)
		if err != nil {
			return Token{}, fmt.Errorf("%w: corrupt user id %q", ErrUnavailable, userStr)
		}
		next.UserID = userID
		next.Revoked = false
		return next, nil
	default:
		return Token{}, fmt.Errorf("%w: unknown rotate status %d", ErrUnavailable, status)
	}
}

func (s *RedisStore) Revoke(ctx context.Context, hash string) error {
	if err := revokeTokenLua.Run(ctx, s.redis, []string{s.tokenKey(hash)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID int64) (int, error) {
	n, err := revokeUserLua.Run(ctx, s.redis, []string{s.userKey(userID)}, s.tokenPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// DeleteExpired drops index entries whose token hash has already expired.
// Token hashes expire on their own, so the count reports stale index entries.
func (s *RedisStore) DeleteExpired(ctx context.Context, _ time.Time) (int, error) {
	removed := 0
	iter := s.redis.Scan(ctx, 0, s.userPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		members, err := s.redis.SMembers(ctx, userKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		for _, h := range members {
			exists, err := s.redis.Exists(ctx, s.tokenKey(h)).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if exists == 0 {
				if err := s.redis.SRem(ctx, userKey, h).Err(); err != nil {
					return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed, nil
}
