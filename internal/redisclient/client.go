package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"scheduling-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	cacheTTL      time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, cacheTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		cacheTTL:      cacheTTL,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireBookingLock takes the per-booking transition lock. Returns an owner
// token to release with, or "" if the lock is already held.
func (c *Client) AcquireBookingLock(ctx context.Context, bookingID int64, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	key := bookingLockKey(bookingID)

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire booking lock failed: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseBookingLock releases the per-booking lock if token still owns it
func (c *Client) ReleaseBookingLock(ctx context.Context, bookingID int64, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{bookingLockKey(bookingID)}, token).Result()
	if err != nil {
		return fmt.Errorf("release booking lock failed: %w", err)
	}
	return nil
}

func bookingLockKey(bookingID int64) string {
	return fmt.Sprintf("lock:booking:%d", bookingID)
}

// GetDaySchedule reads a provider's cached slots for one day. The second
// return value reports a cache hit.
func (c *Client) GetDaySchedule(ctx context.Context, providerID int64, day time.Time) ([]models.AvailabilitySlot, bool, error) {
	raw, err := c.rdb.Get(ctx, dayScheduleKey(providerID, day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var slots []models.AvailabilitySlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached schedule: %w", err)
	}
	return slots, true, nil
}

// SetDaySchedule caches a provider's slots for one day
func (c *Client) SetDaySchedule(ctx context.Context, providerID int64, day time.Time, slots []models.AvailabilitySlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, dayScheduleKey(providerID, day), raw, c.cacheTTL).Err()
}

// InvalidateDaySchedule drops the cached schedule for one provider day
func (c *Client) InvalidateDaySchedule(ctx context.Context, providerID int64, day time.Time) error {
	return c.rdb.Del(ctx, dayScheduleKey(providerID, day)).Err()
}

// InvalidateDayRange drops cached schedules for every day in [from, to]
func (c *Client) InvalidateDayRange(ctx context.Context, providerID int64, from, to time.Time) error {
	keys := make([]string, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		keys = append(keys, dayScheduleKey(providerID, d))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func dayScheduleKey(providerID int64, day time.Time) string {
	return fmt.Sprintf("schedule:%d:%s", providerID, day.Format("2006-01-02"))
}
