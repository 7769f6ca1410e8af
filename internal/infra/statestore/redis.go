package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/bryanwahyu/palmview/internal/domain/session"
)

const maxTxAttempts = 8

// Redis stores view states as JSON under prefix+id so several instances can
// serve the same browser session.
type Redis struct {
	Rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Redis{Rdb: rdb, prefix: "palmview:session:", ttl: ttl}
}

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Ping(ctx context.Context) error {
	return r.Rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.Rdb.Close() }

func (r *Redis) Get(ctx context.Context, id string) (domain.ViewState, error) {
	return load(ctx, r.Rdb, r.key(id))
}

// Update applies fn inside a WATCH/MULTI transaction and retries when another
// writer touched the key first.
func (r *Redis) Update(ctx context.Context, id string, fn domain.UpdateFunc) (domain.ViewState, error) {
	key := r.key(id)
	var result domain.ViewState

	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := fn(&next); err != nil {
			if errors.Is(err, domain.ErrNoChange) {
				result = current
				return nil
			}
			return err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, r.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := r.Rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.ViewState{}, err
	}
	return domain.ViewState{}, fmt.Errorf("session %s: too much contention", id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) (domain.ViewState, error) {
	var s domain.ViewState
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.ViewState{}, fmt.Errorf("decode session state: %w", err)
	}
	return s, nil
}
