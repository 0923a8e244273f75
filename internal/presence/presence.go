package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	"trust-platform/backend/internal/redis"
)

// TTL after which an untouched presence key expires. Slightly longer than the
// tournament reconnection grace so a reconnecting client is still visible.
const presenceTTL = 6 * time.Minute

// Tracker mirrors session liveness into Redis so operational tooling can see
// who is connected. All methods degrade to no-ops when Redis is unavailable.
type Tracker struct {
	client *redis.Client
}

func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client}
}

func key(clientID string) string {
	return "presence:" + clientID
}

// Touch records activity for a client.
func (t *Tracker) Touch(clientID string) {
	if t == nil || t.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := t.client.Set(ctx, key(clientID), time.Now().UTC().Format(time.RFC3339), presenceTTL).Err(); err != nil {
		log.Printf("[PRESENCE] touch %s failed: %v", clientID, err)
	}
}

// MarkDisconnected stamps the moment a client dropped; the key keeps its TTL
// so the reconnection window stays observable.
func (t *Tracker) MarkDisconnected(clientID string) {
	if t == nil || t.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	value := fmt.Sprintf("disconnected:%s", time.Now().UTC().Format(time.RFC3339))
	if err := t.client.Set(ctx, key(clientID), value, presenceTTL).Err(); err != nil {
		log.Printf("[PRESENCE] mark disconnected %s failed: %v", clientID, err)
	}
}

// Forget removes a client's presence key on clean teardown.
func (t *Tracker) Forget(clientID string) {
	if t == nil || t.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := t.client.Del(ctx, key(clientID)).Err(); err != nil {
		log.Printf("[PRESENCE] forget %s failed: %v", clientID, err)
	}
}
