package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/internal/storage"
)

// Config 描述 Redis 连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
}

// Store 基于 go-redis 实现 storage.Store。
type Store struct {
	client *redis.Client
}

var _ storage.Store = (*Store)(nil)

// NewStore 建立 Redis 连接并做一次连通性探测。
func NewStore(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &Store{client: client}, nil
}

// Get 读取字符串键。
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("Redis GET 失败: %w", err)
	}
	return value, nil
}

// Set 写入字符串键。
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("Redis SET 失败: %w", err)
	}
	return nil
}

// IncrBy 原子增加计数器并刷新过期时间。
// INCRBY 与 EXPIRE 放在一个 pipeline 中往返一次。
func (s *Store) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, delta)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("Redis INCRBY 失败: %w", err)
	}
	return incr.Val(), nil
}

// SetAdd 向集合添加成员并刷新过期时间。
func (s *Store) SetAdd(ctx context.Context, key string, members []string, ttl time.Duration) error {
	if len(members) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(members))
	for _, member := range members {
		values = append(values, member)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, values...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Redis SADD 失败: %w", err)
	}
	return nil
}

// SetMembers 返回集合全部成员。
func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("Redis SMEMBERS 失败: %w", err)
	}
	return members, nil
}

// PushCapped 推入列表头部并用 LTRIM 裁剪。
func (s *Store) PushCapped(ctx context.Context, key, value string, limit int64) error {
	if limit <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "列表上限必须为正数")
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Redis LPUSH 失败: %w", err)
	}
	return nil
}

// Range 返回列表区间。
func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	items, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("Redis LRANGE 失败: %w", err)
	}
	return items, nil
}

// Delete 删除键。
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("Redis DEL 失败: %w", err)
	}
	return nil
}

// Publish 向频道广播消息。
func (s *Store) Publish(ctx context.Context, channel, payload string) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("Redis PUBLISH 失败: %w", err)
	}
	return nil
}

// Subscribe 订阅频道。返回的取消函数会关闭订阅与消息通道。
func (s *Store) Subscribe(ctx context.Context, channel string) (<-chan string, func(), error) {
	sub := s.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("Redis SUBSCRIBE 失败: %w", err)
	}

	out := make(chan string, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		src := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-done:
					return
				}
			}
		}
	}()

	var once bool
	cancel := func() {
		if once {
			return
		}
		once = true
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
