package queue

import "github.com/redis/go-redis/v9"

// All queue state transitions run as Lua scripts so that promotion, claim,
// completion and retry never race between workers. Timestamps come in as
// arguments; the scripts never read the Redis clock.

// claimScript promotes due delayed jobs into the waiting set, then pops the
// lowest-scored waiting job and marks it active.
// KEYS: delayed, waiting, active. ARGV: nowMs, jobKeyPrefix, promoteLimit.
// Returns {id, data, attempts} or nil when no job is ready.
const claimScript = `
local now = tonumber(ARGV[1])
local prefix = ARGV[2]
local limit = tonumber(ARGV[3])

local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", now, "LIMIT", 0, limit)
for _, id in ipairs(due) do
    local wscore = redis.call("HGET", prefix .. id, "wscore")
    if wscore then
        redis.call("ZADD", KEYS[2], tonumber(wscore), id)
        redis.call("HSET", prefix .. id, "state", "waiting")
    end
    redis.call("ZREM", KEYS[1], id)
end

local popped = redis.call("ZPOPMIN", KEYS[2], 1)
if #popped == 0 then
    return nil
end
local id = popped[1]
local data = redis.call("HGET", prefix .. id, "data")
if not data then
    return nil
end
redis.call("ZADD", KEYS[3], now, id)
redis.call("HSET", prefix .. id, "state", "active", "claimed_at", ARGV[1])
local attempts = redis.call("HGET", prefix .. id, "attempts") or "0"
return {id, data, attempts}
`

// completeScript finishes an active job and applies completed-set retention
// (age and count limits). Returns 0 when the job was removed mid-flight.
// KEYS: active, completed.
// ARGV: id, nowMs, retentionMs, maxCompleted, jobKeyPrefix, campaignKeyPrefix.
const completeScript = `
local id = ARGV[1]
local now = tonumber(ARGV[2])
local retention = tonumber(ARGV[3])
local maxKeep = tonumber(ARGV[4])
local jobPrefix = ARGV[5]
local campaignPrefix = ARGV[6]

if redis.call("ZREM", KEYS[1], id) == 0 then
    return 0
end
redis.call("HSET", jobPrefix .. id, "state", "completed", "finished_at", ARGV[2])
redis.call("ZADD", KEYS[2], now, id)

local drop = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", now - retention)
local excess = redis.call("ZCARD", KEYS[2]) - maxKeep
if excess > 0 then
    local extra = redis.call("ZRANGE", KEYS[2], 0, excess - 1)
    for _, e in ipairs(extra) do
        table.insert(drop, e)
    end
end
for _, d in ipairs(drop) do
    local cid = redis.call("HGET", jobPrefix .. d, "campaign_id")
    if cid then
        redis.call("SREM", campaignPrefix .. cid, d)
    end
    redis.call("DEL", jobPrefix .. d)
    redis.call("ZREM", KEYS[2], d)
end
return 1
`

// failScript records a failed attempt: re-delays the job with exponential
// backoff while attempts remain, otherwise moves it to the failed set and
// applies failed-set retention. Returns the attempt count, or -1 when the
// job was removed mid-flight.
// KEYS: active, delayed, failed.
// ARGV: id, error, nowMs, maxAttempts, backoffBaseMs, failedRetentionMs,
//       jobKeyPrefix, campaignKeyPrefix.
const failScript = `
local id = ARGV[1]
local errmsg = ARGV[2]
local now = tonumber(ARGV[3])
local maxAttempts = tonumber(ARGV[4])
local backoff = tonumber(ARGV[5])
local retention = tonumber(ARGV[6])
local jobPrefix = ARGV[7]
local campaignPrefix = ARGV[8]

if redis.call("ZREM", KEYS[1], id) == 0 then
    return -1
end
local attempts = redis.call("HINCRBY", jobPrefix .. id, "attempts", 1)
redis.call("HSET", jobPrefix .. id, "error", errmsg)

if attempts >= maxAttempts then
    redis.call("HSET", jobPrefix .. id, "state", "failed", "finished_at", ARGV[3])
    redis.call("ZADD", KEYS[3], now, id)
    local drop = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", now - retention)
    for _, d in ipairs(drop) do
        local cid = redis.call("HGET", jobPrefix .. d, "campaign_id")
        if cid then
            redis.call("SREM", campaignPrefix .. cid, d)
        end
        redis.call("DEL", jobPrefix .. d)
        redis.call("ZREM", KEYS[3], d)
    end
    return attempts
end

local delay = backoff * 2 ^ (attempts - 1)
local ready = now + delay
redis.call("HSET", jobPrefix .. id, "state", "delayed", "ready_at", string.format("%.0f", ready))
redis.call("ZADD", KEYS[2], ready, id)
return attempts
`

// removeScript drops every waiting, active and delayed job of one campaign.
// Completed and failed history stays until retention. Returns the count.
// KEYS: waiting, active, delayed, campaignSet. ARGV: jobKeyPrefix.
const removeScript = `
local removed = 0
local ids = redis.call("SMEMBERS", KEYS[4])
for _, id in ipairs(ids) do
    local state = redis.call("HGET", ARGV[1] .. id, "state")
    if state == "waiting" or state == "active" or state == "delayed" then
        redis.call("ZREM", KEYS[1], id)
        redis.call("ZREM", KEYS[2], id)
        redis.call("ZREM", KEYS[3], id)
        redis.call("DEL", ARGV[1] .. id)
        redis.call("SREM", KEYS[4], id)
        removed = removed + 1
    end
end
return removed
`

// stalledScript requeues active jobs claimed before the cutoff. A stall
// counts as an attempt; jobs out of attempts go to the failed set.
// KEYS: active, waiting, failed.
// ARGV: nowMs, cutoffMs, maxAttempts, jobKeyPrefix.
// Returns {requeued, failed}.
const stalledScript = `
local now = tonumber(ARGV[1])
local cutoff = tonumber(ARGV[2])
local maxAttempts = tonumber(ARGV[3])
local prefix = ARGV[4]

local requeued = 0
local dead = 0
local stalled = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", cutoff)
for _, id in ipairs(stalled) do
    redis.call("ZREM", KEYS[1], id)
    local attempts = redis.call("HINCRBY", prefix .. id, "attempts", 1)
    if attempts >= maxAttempts then
        redis.call("HSET", prefix .. id, "state", "failed", "error", "stalled", "finished_at", ARGV[1])
        redis.call("ZADD", KEYS[3], now, id)
        dead = dead + 1
    else
        local wscore = redis.call("HGET", prefix .. id, "wscore") or "0"
        redis.call("HSET", prefix .. id, "state", "waiting")
        redis.call("ZADD", KEYS[2], tonumber(wscore), id)
        requeued = requeued + 1
    end
end
return {requeued, dead}
`

// rateLimitScript reserves one slot in a sliding window, or reports how
// long until the oldest reservation ages out.
// KEYS: window. ARGV: nowMs, windowMs, limit, member.
// Returns {1, 0} when allowed, {0, waitMs} when the window is full.
const rateLimitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count < limit then
    redis.call("ZADD", key, now, ARGV[4])
    redis.call("PEXPIRE", key, window * 2)
    return {1, 0}
end
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
return {0, math.max(tonumber(oldest[2]) + window - now, 0)}
`

var (
	claimCmd     = redis.NewScript(claimScript)
	completeCmd  = redis.NewScript(completeScript)
	failCmd      = redis.NewScript(failScript)
	removeCmd    = redis.NewScript(removeScript)
	stalledCmd   = redis.NewScript(stalledScript)
	rateLimitCmd = redis.NewScript(rateLimitScript)
)
