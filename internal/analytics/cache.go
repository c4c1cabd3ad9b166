package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stocklens/stocklens/internal/batch"
)

const (
	cacheVersionKey = "stocklens:cache:version"
	bumpChannel     = "stocklens.bump"
)

// Cache wraps Redis based caching with versioning controls. Every cached
// response embeds the current version in its key, so one Bump orphans the
// whole cache at once. The cache is an optimization only: a cleared cache and
// a populated one must serve identical responses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	if c == nil || c.client == nil {
		return strings.Join(parts, ":"), nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	joined := strings.Join(parts, ":")
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the whole cache by incrementing the global version and
// publishing the new version for other processes.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = bumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != "" {
					if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
						_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
						continue
					}
				}
				_ = c.client.Incr(ctx, cacheVersionKey).Err()
			}
		}
	}()
	return nil
}

// Cache keys encode every filter field in a fixed order, with set-valued
// fields sorted, so semantically equal filters always map to the same key
// regardless of how the caller ordered its parameters.

func keySummary(f SummaryFilter) string {
	categories := make([]string, 0, len(f.Categories))
	for _, c := range f.Categories {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	return strings.Join([]string{
		"summary",
		uuidToken(f.BatchID),
		dateToken(f.From),
		dateToken(f.To),
		valueToken(f.ItemGroup),
		valueToken(strings.Join(categories, ",")),
		valueToken(f.Warehouse),
		valueToken(string(f.Highlight)),
	}, ":")
}

func keyFastMoving(f FastMovingFilter) string {
	return strings.Join([]string{
		"fastmoving",
		valueToken(f.Warehouse),
		categoryToken(f.Category),
		strconv.FormatFloat(f.MinAvgQty, 'f', -1, 64),
		strconv.Itoa(f.Limit),
	}, ":")
}

func keyZeroOrder(f ZeroOrderFilter) string {
	return strings.Join([]string{
		"zeroorder",
		valueToken(f.Warehouse),
		categoryToken(f.Category),
		strconv.Itoa(f.MinDaysInStock),
		strconv.Itoa(f.Limit),
	}, ":")
}

func valueToken(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func dateToken(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func uuidToken(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func categoryToken(c *batch.Category) string {
	if c == nil {
		return "-"
	}
	return string(*c)
}
