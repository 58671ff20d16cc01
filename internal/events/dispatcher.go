package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// Known topics. The dispatcher replays the most recent payload of each topic
// to newly connected observers.
const (
	TopicPost    = "xpost"
	TopicFeature = "feature"
	TopicAirdrop = "airdrop"
	TopicState   = "state"
)

var knownTopics = []string{TopicPost, TopicFeature, TopicAirdrop, TopicState}

const redisKeyPrefix = "tweetagent:lastevent:"

// Update is the envelope sent to observers.
type Update struct {
	Op        string      `json:"op"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Broadcaster is the outbound fan-out the dispatcher writes to.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Dispatcher collects state changes from the core and pushes them to
// observers. Emission is fire and forget; the core never depends on delivery.
// The last payload per topic is cached (optionally write-through to redis so
// replays survive restarts) and re-sent to clients that connect later.
type Dispatcher struct {
	broadcaster Broadcaster
	logger      logging.Logger
	redisClient *redis.Client

	mutex sync.RWMutex
	cache map[string][]byte
}

func NewDispatcher(broadcaster Broadcaster, redisClient *redis.Client, logger logging.Logger) *Dispatcher {
	d := &Dispatcher{
		broadcaster: broadcaster,
		logger:      logger,
		redisClient: redisClient,
		cache:       make(map[string][]byte),
	}
	d.loadRecentFromRedis()
	return d
}

// Emit broadcasts a payload on a topic and records it for replay.
func (d *Dispatcher) Emit(topic, op string, data interface{}) {
	update := Update{Op: op, Data: data, Timestamp: time.Now().UTC()}
	payload, err := json.Marshal(update)
	if err != nil {
		d.logger.WithError(err).WithField("topic", topic).Error("Failed to marshal update")
		return
	}

	d.mutex.Lock()
	d.cache[topic] = payload
	d.mutex.Unlock()

	if d.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := d.redisClient.Set(ctx, redisKeyPrefix+topic, payload, 24*time.Hour).Err(); err != nil {
			d.logger.WithError(err).Debug("Failed to cache update in redis")
		}
		cancel()
	}

	if d.broadcaster != nil {
		d.broadcaster.Broadcast(payload)
	}
}

// ReplayRecent re-sends the most recent payload of every topic to one client.
func (d *Dispatcher) ReplayRecent(client *Client) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	for _, payload := range d.cache {
		client.Send(payload)
	}
}

func (d *Dispatcher) loadRecentFromRedis() {
	if d.redisClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, topic := range knownTopics {
		payload, err := d.redisClient.Get(ctx, redisKeyPrefix+topic).Bytes()
		if err != nil {
			continue
		}
		d.cache[topic] = payload
	}
}
