// sieve/pkg/store/redis_store.go

package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rgehrsitz/sieve/pkg/logging"
)

var ctx = context.Background()

const (
	rulesetKeyPrefix = "sieve:ruleset:"
	// MatchChannel carries one JSON document per rule match.
	MatchChannel = "sieve:matches"
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at the given address and
// returns a store backed by it. Connection failure is fatal: the daemon
// cannot run without its store.
func NewRedisStore(addr, password string, db int) *RedisStore {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	logging.Logger.Info().Msg("Successfully connected to Redis")

	return &RedisStore{client: client}
}

// NewRedisStoreFromClient wraps an existing client. Used by tests and
// by callers that manage their own connection options.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveRuleset stores a ruleset document under its name. The document is
// the raw JSON; parsing and compilation stay with the engine.
func (s *RedisStore) SaveRuleset(name string, doc []byte) error {
	err := s.client.Set(ctx, rulesetKeyPrefix+name, doc, 0).Err()
	if err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", name).Msg("Failed to save ruleset")
		return err
	}
	logging.Logger.Debug().Str("ruleset", name).Int("bytes", len(doc)).Msg("Saved ruleset")
	return nil
}

func (s *RedisStore) LoadRuleset(name string) ([]byte, error) {
	data, err := s.client.Get(ctx, rulesetKeyPrefix+name).Bytes()
	if err == redis.Nil {
		logging.Logger.Debug().Str("ruleset", name).Msg("Ruleset not found in Redis")
		return nil, fmt.Errorf("ruleset %q not found", name)
	} else if err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", name).Msg("Failed to load ruleset")
		return nil, err
	}
	return data, nil
}

// ScanRulesets returns the names of stored rulesets matching the glob
// pattern, "*" for all.
func (s *RedisStore) ScanRulesets(pattern string) ([]string, error) {
	var names []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, rulesetKeyPrefix+pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			names = append(names, key[len(rulesetKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return names, nil
		}
	}
}

// PublishEvent pushes one event document to a channel the engine
// subscribes to.
func (s *RedisStore) PublishEvent(channel string, event []byte) error {
	err := s.client.Publish(ctx, channel, event).Err()
	if err != nil {
		logging.Logger.Error().Err(err).Str("channel", channel).Msg("Failed to publish event")
		return err
	}
	return nil
}

// PublishMatch announces a rule match on the shared match channel so
// downstream consumers can react without polling the engine.
func (s *RedisStore) PublishMatch(ruleName string, payload []byte) error {
	err := s.client.Publish(ctx, MatchChannel, payload).Err()
	if err != nil {
		logging.Logger.Error().Err(err).Str("rule", ruleName).Msg("Failed to publish match")
		return err
	}
	logging.Logger.Debug().Str("rule", ruleName).Msg("Published match")
	return nil
}

func (s *RedisStore) Subscribe(channels ...string) *redis.PubSub {
	logging.Logger.Info().Strs("channels", channels).Msg("Subscribing to Redis channels")

	pubsub := s.client.Subscribe(ctx, channels...)

	// Verify the subscription was successful
	_, err := pubsub.Receive(ctx)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to subscribe to Redis channels")
		return nil
	}

	logging.Logger.Info().Strs("channels", channels).Msg("Successfully subscribed to Redis channels")
	return pubsub
}

// ReceiveEvents subscribes to the given event channels and returns the
// merged message stream.
func (s *RedisStore) ReceiveEvents(channels ...string) <-chan *redis.Message {
	logging.Logger.Info().Strs("channels", channels).Msg("Setting up event reception from Redis")
	pubsub := s.client.Subscribe(ctx, channels...)

	_, err := pubsub.Receive(ctx)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to subscribe to Redis channels")
		return nil
	}

	return pubsub.Channel()
}
