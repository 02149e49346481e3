package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound возвращается, когда ключ отсутствует в Redis.
var ErrNotFound = errors.New("redis: key not found")

// ErrConcurrentUpdate возвращается, когда ключ менялся параллельно на всех попытках Update.
var ErrConcurrentUpdate = errors.New("redis: concurrent update")

const maxUpdateAttempts = 10

// Client представляет клиент Redis
type Client struct {
	client *redis.Client
	log    *logger.Logger
}

// ScoredMember элемент отсортированного множества.
type ScoredMember struct {
	Member string
	Score  float64
}

// Connect создает подключение к Redis
func Connect(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Проверка подключения
	ctx := context.Background()
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Successfully connected to Redis")

	return &Client{
		client: rdb,
		log:    log,
	}, nil
}

// New оборачивает готовый клиент go-redis
func New(rdb *redis.Client, log *logger.Logger) *Client {
	return &Client{client: rdb, log: log}
}

// Close закрывает подключение к Redis
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Set сохраняет значение в JSON с TTL (0 означает без срока)
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.client.Set(ctx, key, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value set in Redis")
	return nil
}

// Get получает значение по ключу; для отсутствующего ключа возвращает ErrNotFound
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("key %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	err = json.Unmarshal([]byte(val), dest)
	if err != nil {
		return fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value retrieved from Redis")
	return nil
}

// Delete удаляет значение по ключу
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Key deleted from Redis")
	return nil
}

// Update атомарно читает JSON по ключу, применяет mutate и записывает результат (WATCH/MULTI).
// mutate получает found=false для отсутствующего ключа и тогда сама инициализирует dest;
// keep=false удаляет ключ. При параллельной записи попытка повторяется.
func (c *Client) Update(ctx context.Context, key string, ttl time.Duration, dest interface{}, mutate func(found bool) (keep bool, err error)) error {
	txf := func(tx *redis.Tx) error {
		found := true
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
			found = false
		case err != nil:
			return fmt.Errorf("failed to get key %s: %w", key, err)
		default:
			if err := json.Unmarshal(raw, dest); err != nil {
				return fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
			}
		}

		keep, err := mutate(found)
		if err != nil {
			return err
		}

		var data []byte
		if keep {
			if data, err = json.Marshal(dest); err != nil {
				return fmt.Errorf("failed to marshal value: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, key, data, ttl)
			} else {
				pipe.Del(ctx, key)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			c.log.WithField("key", key).Debug("Concurrent Redis update, retrying")
			continue
		}
		return err
	}
	return fmt.Errorf("key %s: %w", key, ErrConcurrentUpdate)
}

// Exists проверяет существование ключа
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if key %s exists: %w", key, err)
	}

	return exists > 0, nil
}

// SetNX записывает значение, только если ключа нет. Возвращает true, если запись произошла.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx key %s: %w", key, err)
	}
	return ok, nil
}

// Incr увеличивает значение по ключу и возвращает новое значение
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr key %s: %w", key, err)
	}
	return val, nil
}

// Expire устанавливает TTL для ключа
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set ttl for key %s: %w", key, err)
	}
	return nil
}

// TTL возвращает оставшийся TTL для ключа
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get ttl for key %s: %w", key, err)
	}
	return ttl, nil
}

// GetInt получает значение и парсит в int64
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, fmt.Errorf("key %s: %w", key, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get int value for key %s: %w", key, err)
	}
	return val, nil
}

// ZIncrBy увеличивает счёт участника отсортированного множества
func (c *Client) ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error) {
	score, err := c.client.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to zincrby %s: %w", key, err)
	}
	return score, nil
}

// ZTop возвращает первые n участников по убыванию счёта
func (c *Client) ZTop(ctx context.Context, key string, n int64) ([]ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := c.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read top of %s: %w", key, err)
	}

	result := make([]ScoredMember, 0, len(items))
	for _, z := range items {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		result = append(result, ScoredMember{Member: member, Score: z.Score})
	}
	return result, nil
}

// ZRankDesc возвращает позицию (с нуля) и счёт участника по убыванию; ErrNotFound, если участника нет
func (c *Client) ZRankDesc(ctx context.Context, key, member string) (int64, float64, error) {
	rank, err := c.client.ZRevRank(ctx, key, member).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, 0, fmt.Errorf("member %s: %w", member, ErrNotFound)
		}
		return 0, 0, fmt.Errorf("failed to get rank in %s: %w", key, err)
	}
	score, err := c.client.ZScore(ctx, key, member).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get score in %s: %w", key, err)
	}
	return rank, score, nil
}

// Health проверяет состояние Redis
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.Ping(ctx).Result()
	return err
}

// DeleteByPrefix удаляет ключи по префиксу (использует SCAN).
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys by prefix %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys by prefix %s: %w", prefix, err)
	}

	c.log.WithFields(map[string]interface{}{
		"prefix": prefix,
		"count":  len(keys),
	}).Debug("Deleted Redis keys by prefix")

	return nil
}

// GenerateKey генерирует ключ для кеша
func GenerateKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// Константы для префиксов ключей
const (
	KeyPrefixCart    = "cart"
	KeyPrefixStats   = "stats"
	KeyPrefixSpin    = "spin"
	KeyPrefixProduct = "product"
	KeyPrefixQuote   = "checkout:quote"
	KeyLeaderboard   = "leaderboard:points"
)
