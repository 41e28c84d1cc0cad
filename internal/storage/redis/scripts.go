package redis

import "github.com/redis/go-redis/v9"

// Timestamps are stored as unix microseconds taken from the Redis server clock,
// so every writer shares one clock.

// createScript inserts the link hash and its index entry unless the code is taken.
// KEYS[1] = link hash, KEYS[2] = created index
// ARGV[1] = id, ARGV[2] = code, ARGV[3] = target url
// Returns 1 and the stored created_at on insert, 0 when the code exists.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {0, ''}
end
local t = redis.call('TIME')
local now = t[1] .. string.format('%06d', tonumber(t[2]))
redis.call('HSET', KEYS[1],
  'id', ARGV[1],
  'code', ARGV[2],
  'target_url', ARGV[3],
  'clicks', 0,
  'last_clicked', '',
  'created_at', now)
redis.call('ZADD', KEYS[2], now, ARGV[2])
return {1, now}
`)

// resolveScript increments clicks and stamps last_clicked, never earlier than created_at.
// KEYS[1] = link hash
// Returns the link fields in hashFields order, or nil when the code is absent.
var resolveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
redis.call('HINCRBY', KEYS[1], 'clicks', 1)
local t = redis.call('TIME')
local now = t[1] .. string.format('%06d', tonumber(t[2]))
local created = redis.call('HGET', KEYS[1], 'created_at')
if tonumber(created) > tonumber(now) then
  now = created
end
redis.call('HSET', KEYS[1], 'last_clicked', now)
return redis.call('HMGET', KEYS[1], 'id', 'code', 'target_url', 'clicks', 'last_clicked', 'created_at')
`)

// deleteScript removes the link hash and its index entry.
// KEYS[1] = link hash, KEYS[2] = created index, ARGV[1] = code
// Returns the number of hashes removed.
var deleteScript = redis.NewScript(`
local n = redis.call('DEL', KEYS[1])
if n == 1 then
  redis.call('ZREM', KEYS[2], ARGV[1])
end
return n
`)
