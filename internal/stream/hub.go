package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/events"
)

const (
	channelPrefix  = "analytics:"
	channelSuffix  = ":scores"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans score updates out to websocket subscribers of a vehicle. With
// redis every instance receives every update through pub/sub; without it
// delivery stays local.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     logrus.FieldLogger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	VehicleID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client, log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Hub{
		log:     log,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx := context.Background()
		pubsub := redisClient.PSubscribe(ctx, channelPattern)
		if _, err := pubsub.Receive(ctx); err != nil {
			log.WithError(err).Warn("redis subscribe failed, stream delivery is local only")
			_ = pubsub.Close()
		} else {
			h.redis = redisClient
			h.pubsub = pubsub
			go h.subscribeRedis()
		}
	}
	return h
}

func (h *Hub) Register(vehicleID string) *Client {
	client := &Client{
		VehicleID: vehicleID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[vehicleID] == nil {
		h.clients[vehicleID] = map[*Client]struct{}{}
	}
	h.clients[vehicleID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if vehicleClients, ok := h.clients[client.VehicleID]; ok {
		delete(vehicleClients, client)
		if len(vehicleClients) == 0 {
			delete(h.clients, client.VehicleID)
		}
	}
	close(client.Send)
}

func (h *Hub) Broadcast(vehicleID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(vehicleID), payload).Err()
		if err == nil {
			return
		}
		h.log.WithError(err).WithField("vehicle_id", vehicleID).Warn("redis publish failed")
	}
	h.deliver(vehicleID, payload)
}

// Publish forwards pipeline events to the vehicle's subscribers.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.Broadcast(e.VehicleID, payload)
	return nil
}

func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

func (h *Hub) deliver(vehicleID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[vehicleID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	for msg := range h.pubsub.Channel() {
		vehicleID := vehicleIDFromChannel(msg.Channel)
		if vehicleID == "" {
			continue
		}
		h.deliver(vehicleID, []byte(msg.Payload))
	}
}

func redisChannel(vehicleID string) string {
	return channelPrefix + vehicleID + channelSuffix
}

func vehicleIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) ||
		len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
