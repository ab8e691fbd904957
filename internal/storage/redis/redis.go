// redis хранит маркер последнего sweep и даёт распределённую блокировку,
// когда агрегатор запущен в нескольких экземплярах.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/storage"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "aggregator:"

// releaseScript удаляет ключ блокировки, только если он всё ещё принадлежит владельцу.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Store struct {
	rdb     *goredis.Client
	prefix  string
	lockTTL time.Duration
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// lockTTL ограничивает время жизни блокировки, если владелец упал, не сняв её.
func New(ctx context.Context, redisURL string, lockTTL time.Duration) (*Store, error) {
	const op = "storage.redis.New"

	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := goredis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb, prefix: defaultPrefix, lockTTL: lockTTL}, nil
}

func (s *Store) markerKey(name string) string { return s.prefix + "last_run:" + name }
func (s *Store) lockKey(name string) string   { return s.prefix + "lock:" + name }

func (s *Store) LastRun(ctx context.Context, name string) (time.Time, bool, error) {
	const op = "storage.redis.LastRun"

	raw, err := s.rdb.Get(ctx, s.markerKey(name)).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storage.Wrap(op, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, storage.Wrap(op, fmt.Errorf("parse marker %q: %w", raw, err))
	}
	return t.UTC(), true, nil
}

func (s *Store) SetLastRun(ctx context.Context, name string, at time.Time) error {
	const op = "storage.redis.SetLastRun"

	err := s.rdb.Set(ctx, s.markerKey(name), at.UTC().Format(time.RFC3339Nano), 0).Err()
	return storage.Wrap(op, err)
}

// TryLock пытается захватить блокировку через SET NX PX. Возвращает ok=false,
// если блокировка уже занята. unlock снимает её только для текущего владельца.
func (s *Store) TryLock(ctx context.Context, name string) (func(), bool, error) {
	const op = "storage.redis.TryLock"

	token := uuid.NewString()
	key := s.lockKey(name)

	ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, false, storage.Wrap(op, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, s.rdb, []string{key}, token).Err()
	}
	return unlock, true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

var _ storage.MarkerStore = (*Store)(nil)
