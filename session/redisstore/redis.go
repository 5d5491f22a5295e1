// Package redisstore implements session.Store on Redis so that a fleet of
// client processes sharing one logical identity also share session
// consistency state: a write acknowledged to one process raises the watermark
// every process attaches to its next request.
//
// Layout: one string key per collection name path holding the current rid,
// and one hash per collection rid mapping partition key range id to the
// highest token seen. Merges run under WATCH so that two processes absorbing
// responses concurrently still converge on the element-wise maximum.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/docstore/docstore-go/internal/resourceid"
	"github.com/docstore/docstore-go/session"
)

// Merges retry on WATCH conflicts; the merge is monotonic so losing a race
// only means redoing a cheap read-merge-write round.
const maxTxRetries = 64

// Config for the Redis-backed Store. Defaults can be loaded via envdecode.
type Config struct {
	// Client, when set, is used as-is and not closed by Close.
	Client *redis.Client

	// RedisAddr like "localhost:6379", used when Client is nil. ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: SESSION_KEY_PREFIX
	KeyPrefix string `env:"SESSION_KEY_PREFIX,default=docstore:session:"`
	// TTL applied to session state; zero keeps state until cleared.
	// ENV: SESSION_TTL
	TTL time.Duration `env:"SESSION_TTL,default=0"`

	// StrictHeaderParsing makes Merge fail on headers containing malformed
	// pairs instead of dropping them.
	StrictHeaderParsing bool
}

// Store is a Redis-backed session.Store.
type Store struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
	ttl        time.Duration
	strict     bool
}

var _ session.Store = (*Store)(nil)

// New builds a Store from cfg, dialing Redis when no client is supplied.
func New(cfg Config) (*Store, error) {
	client := cfg.Client
	owns := false
	if client == nil {
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		owns = true
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "docstore:session:"
	}
	return &Store{
		client:     client,
		ownsClient: owns,
		keyPrefix:  prefix,
		ttl:        cfg.TTL,
		strict:     cfg.StrictHeaderParsing,
	}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv() (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("redisstore: decode environment: %w", err)
	}
	return New(cfg)
}

// Close releases the Redis client if the store dialed it itself.
func (s *Store) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

func (s *Store) ridKey(path string) string { return s.keyPrefix + "rid:" + path }
func (s *Store) tokenKey(rid string) string { return s.keyPrefix + "tok:" + rid }

// Get resolves resourcePath to its collection and renders the stored tokens.
// Unknown collections yield "", never an error.
func (s *Store) Get(ctx context.Context, resourcePath string) (string, error) {
	collPath := resourceid.CollectionPath(resourcePath)
	if collPath == "" {
		return "", nil
	}

	var rid string
	if resourceid.IsNameBased(resourcePath) {
		val, err := s.client.Get(ctx, s.ridKey(collPath)).Result()
		if err == redis.Nil {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("redisstore: resolve collection rid: %w", err)
		}
		rid = val
	} else {
		r, err := resourceid.CollectionRid(resourcePath)
		if err != nil {
			return "", nil
		}
		rid = r
	}

	fields, err := s.client.HGetAll(ctx, s.tokenKey(rid)).Result()
	if err != nil {
		return "", fmt.Errorf("redisstore: read tokens: %w", err)
	}
	if len(fields) == 0 {
		return "", nil
	}
	tokens := make(map[string]session.Token, len(fields))
	for rangeID, raw := range fields {
		token, err := session.Parse(raw)
		if err != nil {
			// A corrupt stored token is dropped the same way a malformed wire
			// pair is: that partition loses its guarantee, nothing else does.
			continue
		}
		tokens[rangeID] = token
	}
	return session.FormatHeader(tokens), nil
}

// Merge absorbs a response header for the collection identified by rid and
// path, joining tokens element-wise under an optimistic transaction.
func (s *Store) Merge(ctx context.Context, rid, path, header string) error {
	if rid == "" || header == "" {
		return nil
	}
	var incoming map[string]session.Token
	if s.strict {
		parsed, err := session.ParseHeader(header)
		if err != nil {
			return err
		}
		incoming = parsed
	} else {
		incoming = session.ParseHeaderBestEffort(header)
	}
	if len(incoming) == 0 {
		return nil
	}

	tokenKey := s.tokenKey(rid)
	watched := []string{tokenKey}
	var ridKey string
	if path != "" {
		ridKey = s.ridKey(path)
		watched = append(watched, ridKey)
	}

	txn := func(tx *redis.Tx) error {
		staleRid := ""
		if ridKey != "" {
			old, err := tx.Get(ctx, ridKey).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			if old != "" && old != rid {
				staleRid = old
			}
		}

		stored, err := tx.HGetAll(ctx, tokenKey).Result()
		if err != nil {
			return err
		}
		merged := make(map[string]string, len(incoming))
		for rangeID, token := range incoming {
			current := session.Token{}
			if raw, ok := stored[rangeID]; ok {
				if parsed, err := session.Parse(raw); err == nil {
					current = parsed
				}
			}
			merged[rangeID] = current.Merge(token).String()
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if staleRid != "" {
				pipe.Del(ctx, s.tokenKey(staleRid))
			}
			if ridKey != "" {
				pipe.Set(ctx, ridKey, rid, s.ttl)
			}
			for rangeID, raw := range merged {
				pipe.HSet(ctx, tokenKey, rangeID, raw)
			}
			if s.ttl > 0 {
				pipe.Expire(ctx, tokenKey, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, watched...)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("redisstore: merge: %w", err)
		}
		return nil
	}
	return fmt.Errorf("redisstore: merge: conflict persisted after %d attempts", maxTxRetries)
}

// Clear forgets the collection at path.
func (s *Store) Clear(ctx context.Context, path string) error {
	collPath := resourceid.CollectionPath(path)
	if collPath == "" {
		collPath = path
	}
	ridKey := s.ridKey(collPath)
	rid, err := s.client.Get(ctx, ridKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redisstore: resolve collection rid: %w", err)
	}
	if err := s.client.Del(ctx, ridKey, s.tokenKey(rid)).Err(); err != nil {
		return fmt.Errorf("redisstore: clear: %w", err)
	}
	return nil
}
