// sieve/pkg/store/store.go

package store

import "github.com/redis/go-redis/v9"

// Store persists ruleset documents and carries event traffic between
// producers and the runtime engine.
type Store interface {
	SaveRuleset(name string, doc []byte) error
	LoadRuleset(name string) ([]byte, error)
	ScanRulesets(pattern string) ([]string, error)
	PublishEvent(channel string, event []byte) error
	PublishMatch(ruleName string, payload []byte) error
	Subscribe(channels ...string) *redis.PubSub
	ReceiveEvents(channels ...string) <-chan *redis.Message
}
