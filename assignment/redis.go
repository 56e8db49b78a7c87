package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	vc "github.com/unkn0wn-root/variantcache"
	"github.com/unkn0wn-root/variantcache/codec"
)

var ErrNilClient = errors.New("assignment: nil redis client")

const maxReplaceAttempts = 10

// RedisOptions configure a Redis assignment store.
type RedisOptions struct {
	Client    redis.UniversalClient
	Namespace string              // key prefix; "" => "default"
	TTL       time.Duration       // session lifetime, refreshed on write; <= 0 => no expiry
	Codec     codec.Codec[Record] // nil => msgpack
	MaxDecode int                 // 0 => DefaultMaxDecode
	Policy    Policy
}

// Redis keeps one hash per session: field = test name, value = encoded record.
// First-write-wins uses HSETNX so concurrent replicas agree on one decision;
// an unreadable record is replaced under WATCH for the same reason.
type Redis struct {
	rdb   redis.UniversalClient
	ns    string
	ttl   time.Duration
	codec codec.Codec[Record]
	pol   Policy
}

func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.MaxDecode <= 0 {
		opts.MaxDecode = DefaultMaxDecode
	}
	inner := opts.Codec
	if inner == nil {
		inner = codec.Msgpack[Record]{}
	}
	return &Redis{
		rdb:   opts.Client,
		ns:    opts.Namespace,
		ttl:   opts.TTL,
		codec: codec.Limit[Record]{Inner: inner, MaxDecode: opts.MaxDecode},
		pol:   opts.Policy,
	}, nil
}

func (s *Redis) key(session string) string { return "asg:" + s.ns + ":" + session }

// For returns the store scoped to session.
func (s *Redis) For(session string) vc.AssignmentStore {
	return redisScope{s: s, key: s.key(session)}
}

type redisScope struct {
	s   *Redis
	key string
}

func (r redisScope) Get(ctx context.Context, test string) (vc.Assignment, error) {
	b, err := r.s.rdb.HGet(ctx, r.key, test).Bytes()
	if errors.Is(err, redis.Nil) {
		return vc.Assignment{}, nil
	}
	if err != nil {
		return vc.Assignment{}, err
	}
	rec, err := r.s.codec.Decode(b)
	if err != nil {
		return vc.Assignment{Seen: true}, nil
	}
	return toAssignment(rec), nil
}

func (r redisScope) SetVariant(ctx context.Context, test, variant string) error {
	return r.set(ctx, test, Record{Variant: variant})
}

func (r redisScope) SetExcluded(ctx context.Context, test string) error {
	return r.set(ctx, test, Record{Excluded: true})
}

func (r redisScope) set(ctx context.Context, test string, rec Record) error {
	b, err := r.s.codec.Encode(rec)
	if err != nil {
		return err
	}
	if r.s.pol == LastWriteWins {
		return r.write(ctx, func(p redis.Pipeliner) { p.HSet(ctx, r.key, test, b) })
	}

	var nx *redis.BoolCmd
	if err := r.write(ctx, func(p redis.Pipeliner) { nx = p.HSetNX(ctx, r.key, test, b) }); err != nil {
		return err
	}
	if nx.Val() {
		return nil
	}
	return r.replaceUndecided(ctx, test, b)
}

// replaceUndecided overwrites the record for test only while it is unreadable
// or undecided. WATCH aborts the write if another replica touched the session
// in between; the retry then sees that replica's decision and keeps it.
func (r redisScope) replaceUndecided(ctx context.Context, test string, b []byte) error {
	for i := 0; i < maxReplaceAttempts; i++ {
		err := r.s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.HGet(ctx, r.key, test).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if rec, derr := r.s.codec.Decode(raw); derr == nil && toAssignment(rec).Decided() {
					return nil
				}
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, r.key, test, b)
				r.expire(ctx, p)
				return nil
			})
			return err
		}, r.key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// write runs fn and refreshes the session TTL in one round-trip.
func (r redisScope) write(ctx context.Context, fn func(redis.Pipeliner)) error {
	_, err := r.s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(p)
		r.expire(ctx, p)
		return nil
	})
	return err
}

func (r redisScope) expire(ctx context.Context, p redis.Pipeliner) {
	if r.s.ttl > 0 {
		p.Expire(ctx, r.key, r.s.ttl)
	}
}
