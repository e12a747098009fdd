package storage

import (
	"context"
	"fmt"
	"io"
)

// Options selects and configures a backend for Open.
type Options struct {
	Driver        string // memory, sqlite, postgres or redis
	DSN           string // sqlite path or postgres connection string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open builds the Store named by opts.Driver. The returned closer releases
// the backend and is never nil.
func Open(ctx context.Context, opts Options) (Store, io.Closer, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemory(), io.NopCloser(nil), nil
	case "sqlite":
		path := opts.DSN
		if path == "" {
			path = "reztau.db"
		}
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		s := NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
