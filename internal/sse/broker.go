package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/openclaw/inbox-sync-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	clientBuffer = 100
)

const (
	EventState        = "state"
	EventNotification = "notification"
	EventSignedOut    = "signed_out"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return Event{Type: eventType, Data: raw}, nil
}

type Client struct {
	SessionID string
	Events    chan Event
	Done      chan struct{}
}

// Broker fans session events out to SSE clients. Events travel through redis
// so every server instance holding a stream for the session receives them.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // sessionID -> set of clients
	stops   map[string]context.CancelFunc
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		stops:   make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Events:    make(chan Event, clientBuffer),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[sessionID] == nil {
		b.clients[sessionID] = make(map[*Client]bool)
		if b.redis != nil {
			subCtx, stop := context.WithCancel(b.ctx)
			b.stops[sessionID] = stop
			go b.subscribeToRedis(subCtx, sessionID)
		}
	}
	b.clients[sessionID][client] = true
	clientCount := len(b.clients[sessionID])
	b.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.SessionID]; ok {
		if !clients[client] {
			return
		}
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.SessionID)
			if stop, ok := b.stops[client.SessionID]; ok {
				stop()
				delete(b.stops, client.SessionID)
			}
		}

		log.Info().
			Str("sessionId", client.SessionID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish sends event to every stream of the session. Without redis the
// event is delivered to local clients only.
func (b *Broker) Publish(ctx context.Context, sessionID string, event Event) error {
	if b.redis == nil {
		b.broadcast(sessionID, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.EventChannel(sessionID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, sessionID string) {
	channel := redisclient.EventChannel(sessionID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("sessionId", sessionID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("sessionId", sessionID).Msg("redis pubsub unsubscribed")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(sessionID, event)
		}
	}
}

func (b *Broker) broadcast(sessionID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clients := b.clients[sessionID]

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("sessionId", sessionID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.stops = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[sessionID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
