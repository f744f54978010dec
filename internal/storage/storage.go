package storage

import (
	"context"
	"time"

	xerrors "Pantheon-Lattice/internal/errors"
)

// ErrNotFound 表示请求的键不存在。
var ErrNotFound = xerrors.New(xerrors.CodeNotFound, "key not found")

// Store 定义议事状态所需的全部键值原语。
// 所有涉及计数与集合的操作必须是原子的，
// 以保证并发议事轮次之间的资金池累积可交换。
type Store interface {
	// Get 读取字符串键，不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (string, error)
	// Set 写入字符串键。ttl 为 0 表示不过期。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// IncrBy 原子增加计数器并返回新值。ttl 大于 0 时同时刷新过期时间。
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// SetAdd 向集合原子添加成员。ttl 大于 0 时同时刷新过期时间。
	SetAdd(ctx context.Context, key string, members []string, ttl time.Duration) error
	// SetMembers 返回集合全部成员，集合不存在时返回空切片。
	SetMembers(ctx context.Context, key string) ([]string, error)
	// PushCapped 将条目推入列表头部并裁剪到 cap 条。
	PushCapped(ctx context.Context, key, value string, limit int64) error
	// Range 返回列表 [start, stop] 区间内的条目，头部为最新。
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	// Delete 删除任意类型的键。删除不存在的键不是错误。
	Delete(ctx context.Context, keys ...string) error
	// Publish 向频道广播一条消息。没有订阅者时静默成功。
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe 订阅频道，返回消息通道与取消函数。
	Subscribe(ctx context.Context, channel string) (<-chan string, func(), error)
	// Close 释放底层连接。
	Close() error
}
