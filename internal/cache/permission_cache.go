package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/config"
)

// Event types published on the authz events channel.
const (
	EventRoleChanged  = "role_changed"
	EventRoleDeleted  = "role_deleted"
	EventRoleAssigned = "role_assigned"
)

// Event describes a change that may alter effective permission sets.
type Event struct {
	Type   string `json:"type"`
	RoleID int    `json:"role_id,omitempty"`
	// UserIDs lists users known to be affected. Empty means "anyone holding RoleID".
	UserIDs    []int     `json:"user_ids,omitempty"`
	Generation int64     `json:"generation"`
	At         time.Time `json:"at"`
}

// Entry is a cached resolution. The principal fields it was resolved from are
// kept so a reader can reject an entry whose user row changed underneath it.
type Entry struct {
	LegacyRole   string   `json:"legacy_role"`
	CustomRoleID *int     `json:"custom_role_id,omitempty"`
	Permissions  []string `json:"permissions"`
}

// Matches reports whether e was resolved from the given principal fields.
func (e Entry) Matches(legacyRole string, customRoleID *int) bool {
	if e.LegacyRole != legacyRole {
		return false
	}
	if (e.CustomRoleID == nil) != (customRoleID == nil) {
		return false
	}
	return e.CustomRoleID == nil || *e.CustomRoleID == *customRoleID
}

// PermissionCache stores resolved permission sets in Redis under a
// generation-versioned key. Bumping the generation makes every cached set
// unreachable; stale keys then expire through their TTL.
type PermissionCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
	log zerolog.Logger
}

// NewPermissionCache creates a cache. A nil client or a non-positive ttl
// disables set caching; invalidation and events still work with a client.
func NewPermissionCache(rdb redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *PermissionCache {
	return &PermissionCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "permission_cache").Logger(),
	}
}

// Enabled reports whether Get and Set are active.
func (c *PermissionCache) Enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Generation returns the current cache generation. A missing counter is 0.
func (c *PermissionCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, config.CacheKey.PermissionGenerationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read permission generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached entry for userID under generation gen.
func (c *PermissionCache) Get(ctx context.Context, gen int64, userID int) (Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.UserPermissionsKey(gen, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cached permissions: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached permissions: %w", err)
	}
	return entry, true, nil
}

// Set stores entry for userID under generation gen.
func (c *PermissionCache) Set(ctx context.Context, gen int64, userID int, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, config.CacheKey.UserPermissionsKey(gen, userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached permissions: %w", err)
	}
	return nil
}

// Invalidate bumps the generation and returns the new value.
func (c *PermissionCache) Invalidate(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Incr(ctx, config.CacheKey.PermissionGenerationKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("bump permission generation: %w", err)
	}
	c.log.Debug().Int64("generation", gen).Msg("Permission cache invalidated")
	return gen, nil
}

// Publish sends evt to every subscribed instance.
func (c *PermissionCache) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, config.Channel.AuthzEvents, raw).Err(); err != nil {
		return fmt.Errorf("publish authz event: %w", err)
	}
	return nil
}

// InvalidateAndPublish bumps the generation and announces evt with it. A
// failed bump is returned; a failed publish is only logged.
func (c *PermissionCache) InvalidateAndPublish(ctx context.Context, evt Event) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	gen, err := c.Invalidate(ctx)
	if err != nil {
		return err
	}
	evt.Generation = gen
	if err := c.Publish(ctx, evt); err != nil {
		c.log.Warn().Err(err).Str("type", evt.Type).Msg("Failed to publish authz event")
	}
	return nil
}

// Subscribe listens on the authz events channel.
func (c *PermissionCache) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, config.Channel.AuthzEvents)
}

// DecodeEvent parses a pub/sub payload.
func DecodeEvent(payload string) (Event, error) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return Event{}, fmt.Errorf("decode authz event: %w", err)
	}
	return evt, nil
}
