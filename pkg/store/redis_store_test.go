// sieve/pkg/store/redis_store_test.go

package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	return &RedisStore{client: redisClient}, s
}

func TestSaveAndLoadRuleset(t *testing.T) {
	store, _ := newTestStore(t)

	doc := []byte(`{"name":"edge","scheme":[],"rules":[]}`)
	require.NoError(t, store.SaveRuleset("edge", doc))

	loaded, err := store.LoadRuleset("edge")
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestLoadMissingRuleset(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.LoadRuleset("ghost")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestScanRulesets(t *testing.T) {
	store, s := newTestStore(t)

	s.Set("sieve:ruleset:edge", "{}")
	s.Set("sieve:ruleset:edge-staging", "{}")
	s.Set("sieve:ruleset:core", "{}")
	s.Set("unrelated:key", "{}")

	names, err := store.ScanRulesets("edge*")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"edge", "edge-staging"}, names,
		"Expected to find all edge rulesets")

	names, err = store.ScanRulesets("*")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"edge", "edge-staging", "core"}, names,
		"Unrelated keys must not appear as rulesets")

	names, err = store.ScanRulesets("nonexistent*")
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestPublishAndReceiveEvents(t *testing.T) {
	store, _ := newTestStore(t)

	events := store.ReceiveEvents("traffic")
	require.NotNil(t, events)

	require.NoError(t, store.PublishEvent("traffic", []byte(`{"tcp.port":443}`)))

	select {
	case msg := <-events:
		assert.Equal(t, "traffic", msg.Channel)
		assert.Equal(t, `{"tcp.port":443}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishMatch(t *testing.T) {
	store, _ := newTestStore(t)

	pubsub := store.Subscribe(MatchChannel)
	require.NotNil(t, pubsub)
	defer pubsub.Close()

	require.NoError(t, store.PublishMatch("block-bots", []byte(`{"rule":"block-bots"}`)))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, MatchChannel, msg.Channel)
		assert.Contains(t, msg.Payload, "block-bots")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for match")
	}
}
