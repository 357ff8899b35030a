package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

// Client is a best-effort fast path in front of the chat-history media
// dedup query. The database stays authoritative; a nil Client (Valkey
// unreachable at startup) just means every lookup hits the database.
type Client struct {
	client valkey.Client
}

const (
	mediaKeyPrefix = "media_id:"
	mediaTTL       = 7 * 24 * time.Hour
)

func NewRedisClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	logger.Infof("Connected to Valkey")
	return &Client{client: client}, nil
}

func mediaKey(tenantID int64, hash string) string {
	return fmt.Sprintf("%s%d:%s", mediaKeyPrefix, tenantID, hash)
}

// CacheMediaID remembers the provider media id for a tenant's file hash.
func (c *Client) CacheMediaID(ctx context.Context, tenantID int64, hash, mediaID string) error {
	key := mediaKey(tenantID, hash)

	err := c.client.Do(ctx, c.client.B().Set().Key(key).Value(mediaID).Ex(mediaTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache media id: %w", err)
	}

	logger.Debugf("Cached media id %s for tenant %d hash %s", mediaID, tenantID, hash)
	return nil
}

// GetMediaID returns the cached provider media id, or "" on a miss.
func (c *Client) GetMediaID(ctx context.Context, tenantID int64, hash string) (string, error) {
	result := c.client.Do(ctx, c.client.B().Get().Key(mediaKey(tenantID, hash)).Build())
	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get cached media id: %w", result.Error())
	}

	mediaID, err := result.ToString()
	if err != nil {
		return "", fmt.Errorf("failed to read cached media id: %w", err)
	}

	return mediaID, nil
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
