package ws

import (
	"log"
	"sync"
)

type Hub struct {
	clients            map[string]*UserClient
	Register           chan *UserClient
	Unregister         chan *UserClient
	mu                 sync.RWMutex
	OnClientUnregister func(client *UserClient) error
}

func NewHub() IHub {
	return &Hub{
		clients:    make(map[string]*UserClient),
		Register:   make(chan *UserClient),
		Unregister: make(chan *UserClient),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client.UserId] = client
			h.mu.Unlock()
			log.Printf("%s is connected", client.UserId)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserId]; ok {
				delete(h.clients, client.UserId)
				client.closeSend()
				log.Printf("%s is disconnected", client.UserId)
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

func (h *Hub) SendToUser(userId string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[userId]
	if exists {
		if !client.Send(payload) {
			log.Printf("Failed to send to client: %s", userId)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *Hub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

func (h *Hub) SetOnClientUnregister(callback func(client *UserClient) error) {
	h.OnClientUnregister = callback
}
