package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStateUpdated EventType = "game.state_updated"
	EventTypeDamage       EventType = "game.damage"
	EventTypeJumpscare    EventType = "game.jumpscare"
	EventTypeEnded        EventType = "game.ended"
	EventTypeReset        EventType = "game.reset"
)

// Event represents a generic event structure
type Event struct {
	Type   EventType      `json:"type"`
	GameID string         `json:"game_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Publisher delivers presentation events for a game.
type Publisher interface {
	Publish(ctx context.Context, gameID uuid.UUID, event Event) error
}

// Subscriber streams a game's events until the returned cancel func is called.
type Subscriber interface {
	Subscribe(ctx context.Context, gameID uuid.UUID) (<-chan Event, func(), error)
}

// NopPublisher drops every event. Used when no Redis is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, uuid.UUID, Event) error { return nil }

// StateUpdated describes the state after any successful transition.
func StateUpdated(gs *state.GameState) Event {
	return Event{
		Type: EventTypeStateUpdated,
		Data: map[string]any{
			"scene":        gs.CurrentScene,
			"hp":           gs.HP,
			"inventory":    gs.Inventory.Sorted(),
			"game_started": gs.GameStarted,
		},
	}
}

// Damage reports health lost on arrival at a node.
func Damage(amount, hp int) Event {
	return Event{
		Type: EventTypeDamage,
		Data: map[string]any{
			"amount": amount,
			"hp":     hp,
		},
	}
}

// Jumpscare carries the presentation payload of a jumpscare.
func Jumpscare(js *story.Jumpscare) Event {
	return Event{
		Type: EventTypeJumpscare,
		Data: map[string]any{
			"image": js.Image,
			"sound": js.Sound,
		},
	}
}

// Ended reports that the game reached a terminal node.
func Ended(scene story.NodeID, died bool) Event {
	return Event{
		Type: EventTypeEnded,
		Data: map[string]any{
			"scene": scene,
			"died":  died,
		},
	}
}

// Reset reports that the game was returned to the pre-game state.
func Reset() Event {
	return Event{Type: EventTypeReset}
}

// Channel is the Redis Pub/Sub channel of a game.
func Channel(gameID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", gameID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var (
	_ Publisher  = (*Broadcaster)(nil)
	_ Subscriber = (*Broadcaster)(nil)
)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish publishes an event to the game-specific channel
func (b *Broadcaster) Publish(ctx context.Context, gameID uuid.UUID, event Event) error {
	channel := Channel(gameID)
	event.GameID = gameID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}

// Subscribe listens on the game channel. Malformed payloads are logged and skipped.
func (b *Broadcaster) Subscribe(ctx context.Context, gameID uuid.UUID) (<-chan Event, func(), error) {
	channel := Channel(gameID)
	pubsub := b.redisClient.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published
	// after Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
					continue
				}
				select {
				case out <- event:
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		if err := pubsub.Close(); err != nil {
			b.logger.Error("Failed to close pubsub", "error", err)
		}
	}
	return out, cancel, nil
}
