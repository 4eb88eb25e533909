package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisHub is the multi-server hub: local connections are held in memory,
// payloads for users connected elsewhere travel over redis pub/sub.
type RedisHub struct {
	clients map[string]*UserClient
	mu      sync.RWMutex

	redisClient *redis.Client
	pubsub      *redis.PubSub
	serverID    string

	Register   chan *UserClient
	Unregister chan *UserClient

	OnClientUnregister func(client *UserClient) error
}

type relayedEvent struct {
	FromServerID string `json:"fromServerId"`
	ToUserID     string `json:"toUserId"`
	Payload      []byte `json:"payload"`
}

func NewRedisHub(redisAddr string, serverID string) IHub {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	hub := &RedisHub{
		clients:     make(map[string]*UserClient),
		redisClient: rdb,
		serverID:    serverID,
		Register:    make(chan *UserClient),
		Unregister:  make(chan *UserClient),
	}

	hub.pubsub = rdb.PSubscribe(context.Background(), "room-events:*")

	return hub
}

func (h *RedisHub) Run() {
	go h.subscribeRedis()

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client.UserId] = client
			h.mu.Unlock()

			// Announce which server holds this user's connection.
			h.redisClient.Set(
				context.Background(),
				"user:"+client.UserId+":server",
				h.serverID,
				0,
			)

			log.Printf("[%s] %s connected", h.serverID, client.UserId)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserId]; ok {
				delete(h.clients, client.UserId)
				client.closeSend()

				h.redisClient.Del(
					context.Background(),
					"user:"+client.UserId+":server",
				)

				log.Printf("[%s] %s disconnected", h.serverID, client.UserId)
			}
			h.mu.Unlock()

			if h.OnClientUnregister != nil {
				if err := h.OnClientUnregister(client); err != nil {
					log.Printf("OnClientUnregister error: %v", err)
				}
			}
		}
	}
}

func (h *RedisHub) subscribeRedis() {
	ch := h.pubsub.Channel()

	log.Printf("[%s] Redis subscriber started", h.serverID)

	for msg := range ch {
		var event relayedEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("Error unmarshaling relayed event: %v", err)
			continue
		}

		// Skip events this server published itself.
		if event.FromServerID == h.serverID {
			continue
		}

		h.mu.RLock()
		_, existsLocally := h.clients[event.ToUserID]
		h.mu.RUnlock()
		if !existsLocally {
			continue
		}

		h.SendToUser(event.ToUserID, event.Payload)
	}
}

// SendToUser delivers locally when the user is connected here, otherwise
// relays through redis for whichever server holds the connection.
func (h *RedisHub) SendToUser(userId string, payload []byte) {
	h.mu.RLock()
	client, existsLocally := h.clients[userId]
	h.mu.RUnlock()

	if existsLocally {
		if !client.Send(payload) {
			log.Printf("[%s] Failed to send to local client %s", h.serverID, userId)
		}
		return
	}

	h.publishToRedis(userId, payload)
}

func (h *RedisHub) publishToRedis(userId string, payload []byte) {
	ctx := context.Background()

	event := relayedEvent{
		FromServerID: h.serverID,
		ToUserID:     userId,
		Payload:      payload,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling relayed event: %v", err)
		return
	}

	err = h.redisClient.Publish(ctx, "room-events:"+userId, eventBytes).Err()
	if err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

func (h *RedisHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *RedisHub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *RedisHub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

func (h *RedisHub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.OnClientUnregister = callback
}
