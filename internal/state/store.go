package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// KeyCity holds the last successfully queried cityKey.
const KeyCity = "city"

// Store is durable key-value state that survives restarts. Entries never
// expire and are never deleted.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

type Options struct {
	Backend   string
	Path      string
	DSN       string
	RedisAddr string
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "sqlite":
		db, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", opts.Path, err)
		}
		return newGormStore(db)
	case "postgres":
		db, err := OpenPostgres(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return newGormStore(db)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis %s: %w", opts.RedisAddr, err)
		}
		return NewRedis(rdb), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", opts.Backend)
	}
}

func newGormStore(db *gorm.DB) (Store, error) {
	s, err := NewGorm(db)
	if err != nil {
		return nil, fmt.Errorf("migrate state: %w", err)
	}
	return s, nil
}
