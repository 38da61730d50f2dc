package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/cache"
	ws "github.com/stemsi/hris-authz/internal/websocket"
)

// resubscribeDelay is the pause before reconnecting a dropped subscription.
const resubscribeDelay = 2 * time.Second

// EventSource is satisfied by *cache.PermissionCache.
type EventSource interface {
	Subscribe(ctx context.Context) *redis.PubSub
}

// Purger drops in-process caches. Satisfied by *service.CatalogService.
type Purger interface {
	Purge()
}

// Broadcaster delivers notices to live clients. Satisfied by *websocket.Hub.
type Broadcaster interface {
	Broadcast(n ws.Notice) int
}

// InvalidationWorker consumes authz events published by any instance, purges
// local caches and tells connected clients to refetch their permissions.
type InvalidationWorker struct {
	source  EventSource
	purgers []Purger
	hub     Broadcaster
	log     zerolog.Logger
}

// NewInvalidationWorker creates a new InvalidationWorker.
func NewInvalidationWorker(source EventSource, hub Broadcaster, log zerolog.Logger, purgers ...Purger) *InvalidationWorker {
	return &InvalidationWorker{
		source:  source,
		purgers: purgers,
		hub:     hub,
		log:     log.With().Str("component", "invalidation_worker").Logger(),
	}
}

// Start begins the subscription loop. Call in a goroutine.
func (w *InvalidationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		w.consume(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-time.After(resubscribeDelay):
			w.log.Warn().Msg("Resubscribing to authz events")
		}
	}
}

// consume reads one subscription until it closes or ctx ends.
func (w *InvalidationWorker) consume(ctx context.Context) {
	pubsub := w.source.Subscribe(ctx)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Subscribe failed")
		}
		return
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Handle(msg.Payload)
		}
	}
}

// Handle applies one event payload.
func (w *InvalidationWorker) Handle(payload string) {
	evt, err := cache.DecodeEvent(payload)
	if err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	for _, p := range w.purgers {
		p.Purge()
	}

	delivered := 0
	if w.hub != nil {
		delivered = w.hub.Broadcast(ws.Notice{
			Reason:     evt.Type,
			RoleID:     evt.RoleID,
			Generation: evt.Generation,
			UserIDs:    evt.UserIDs,
		})
	}

	w.log.Debug().
		Str("type", evt.Type).
		Int("role_id", evt.RoleID).
		Int64("generation", evt.Generation).
		Int("delivered", delivered).
		Msg("Authz event applied")
}
