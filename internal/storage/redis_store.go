package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"plug-herald/internal/model"

	"github.com/redis/go-redis/v9"
)

// renewScript re-arms the TTL only if the lock still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "plug"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) seenKey() string {
	return fmt.Sprintf("%s:seen_post_ids", s.prefix)
}

func (s *RedisStore) destinationsKey() string {
	return fmt.Sprintf("%s:destinations", s.prefix)
}

func (s *RedisStore) lockKey(name string) string {
	return fmt.Sprintf("%s:lock:%s", s.prefix, name)
}

// SeenIDs reads the seen sorted set from the highest id down.
func (s *RedisStore) SeenIDs(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.ZRevRange(ctx, s.seenKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("storage: corrupt seen id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AddSeen adds ids to the sorted set scored by the id itself, so the set
// stays duplicate-free and ordered.
func (s *RedisStore) AddSeen(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(ids))
	for _, id := range ids {
		zs = append(zs, redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
	}
	return s.rdb.ZAdd(ctx, s.seenKey(), zs...).Err()
}

func (s *RedisStore) SetTarget(ctx context.Context, group string, channelID int64) error {
	return s.rdb.HSet(ctx, s.destinationsKey(), group, strconv.FormatInt(channelID, 10)).Err()
}

func (s *RedisStore) ClearTarget(ctx context.Context, group string) error {
	return s.rdb.HSet(ctx, s.destinationsKey(), group, "").Err()
}

func (s *RedisStore) Destinations(ctx context.Context) ([]model.Destination, error) {
	m, err := s.rdb.HGetAll(ctx, s.destinationsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Destination, 0, len(m))
	for group, raw := range m {
		d := model.Destination{Group: group}
		if raw != "" {
			ch, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: corrupt target for group %s: %w", group, err)
			}
			d.ChannelID = ch
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out, nil
}

// AcquireLock implements Locker with SET NX PX and a random token. The
// returned lease re-arms the TTL every ttl/3 until released.
func (s *RedisStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	if ttl < 3*time.Millisecond {
		ttl = 3 * time.Millisecond
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := s.lockKey(name)
	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	l := &redisLease{
		rdb:   s.rdb,
		key:   key,
		token: token,
		ttl:   ttl,
		lost:  make(chan struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.renew()
	return l, nil
}

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration

	lost     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (l *redisLease) Lost() <-chan struct{} { return l.lost }

func (l *redisLease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

// renew extends the lock until stopped. A lock found under another token is
// lost at once; transport errors are retried until the last granted TTL
// would have run out.
func (l *redisLease) renew() {
	defer close(l.done)
	every := l.ttl / 3
	t := time.NewTicker(every)
	defer t.Stop()
	deadline := time.Now().Add(l.ttl)
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err == nil && n == 1:
			deadline = time.Now().Add(l.ttl)
			continue
		case err == nil:
			slog.Warn("storage: lock taken over", "key", l.key)
		case time.Now().Add(every).Before(deadline):
			slog.Warn("storage: renew lock", "key", l.key, "error", err)
			continue
		default:
			slog.Error("storage: lock expired before renewal", "key", l.key, "error", err)
		}
		close(l.lost)
		return
	}
}

// Counts reports the size of the seen set and of the destination registry.
func (s *RedisStore) Counts(ctx context.Context) (seen, destinations int64, err error) {
	pipe := s.rdb.Pipeline()
	zc := pipe.ZCard(ctx, s.seenKey())
	hl := pipe.HLen(ctx, s.destinationsKey())
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}
	return zc.Val(), hl.Val(), nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
