package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	xerrors "Pantheon-Lattice/internal/errors"
)

// MemoryStore 是 Store 的进程内实现，供测试与单机运行使用。
// TTL 以惰性方式检查：读到过期条目时当作不存在处理。
type MemoryStore struct {
	mu          sync.Mutex
	strings     map[string]memoryEntry
	sets        map[string]memorySet
	lists       map[string][]string
	subscribers map[string][]chan string
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// NewMemoryStore 创建空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strings:     make(map[string]memoryEntry),
		sets:        make(map[string]memorySet),
		lists:       make(map[string][]string),
		subscribers: make(map[string][]chan string),
	}
}

func expired(at time.Time) bool {
	return !at.IsZero() && time.Now().After(at)
}

func deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Get 读取字符串键。
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.strings[key]
	if !ok || expired(entry.expiresAt) {
		delete(s.strings, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Set 写入字符串键。
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strings[key] = memoryEntry{value: value, expiresAt: deadline(ttl)}
	return nil
}

// IncrBy 原子增加计数器。计数与普通字符串键共用存储，
// 与 Redis 的 INCRBY/GET 语义保持一致。
func (s *MemoryStore) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.strings[key]
	if !ok || expired(entry.expiresAt) {
		entry = memoryEntry{value: "0"}
	}
	value, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "键值不是整数，无法自增")
	}
	value += delta
	entry.value = strconv.FormatInt(value, 10)
	if ttl > 0 {
		entry.expiresAt = deadline(ttl)
	}
	s.strings[key] = entry
	return value, nil
}

// SetAdd 向集合添加成员。
func (s *MemoryStore) SetAdd(_ context.Context, key string, members []string, ttl time.Duration) error {
	if len(members) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok || expired(set.expiresAt) {
		set = memorySet{members: make(map[string]struct{})}
	}
	for _, member := range members {
		set.members[member] = struct{}{}
	}
	if ttl > 0 {
		set.expiresAt = deadline(ttl)
	}
	s.sets[key] = set
	return nil
}

// SetMembers 返回集合成员。
func (s *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok || expired(set.expiresAt) {
		delete(s.sets, key)
		return nil, nil
	}
	members := make([]string, 0, len(set.members))
	for member := range set.members {
		members = append(members, member)
	}
	return members, nil
}

// PushCapped 推入列表头部并裁剪。
func (s *MemoryStore) PushCapped(_ context.Context, key, value string, limit int64) error {
	if limit <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "列表上限必须为正数")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]string{value}, s.lists[key]...)
	if int64(len(list)) > limit {
		list = list[:limit]
	}
	s.lists[key] = list
	return nil
}

// Range 返回列表区间。
func (s *MemoryStore) Range(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[key]
	length := int64(len(list))
	if length == 0 {
		return nil, nil
	}
	if start < 0 {
		start = length + start
	}
	if stop < 0 {
		stop = length + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// Delete 删除键。
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.strings, key)
		delete(s.sets, key)
		delete(s.lists, key)
	}
	return nil
}

// Publish 向频道广播消息。
func (s *MemoryStore) Publish(_ context.Context, channel, payload string) error {
	s.mu.Lock()
	subs := make([]chan string, len(s.subscribers[channel]))
	copy(subs, s.subscribers[channel])
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
			// 订阅方消费过慢时丢弃，广播不阻塞议事主流程。
		}
	}
	return nil
}

// Subscribe 订阅频道。
func (s *MemoryStore) Subscribe(_ context.Context, channel string) (<-chan string, func(), error) {
	ch := make(chan string, 16)

	s.mu.Lock()
	s.subscribers[channel] = append(s.subscribers[channel], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[channel]
		for i, sub := range subs {
			if sub == ch {
				s.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, nil
}

// Close 释放资源。内存实现没有外部连接。
func (s *MemoryStore) Close() error {
	return nil
}

// FormatInt 是存储计数值的统一编码方式。
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ParseInt 解析存储中的计数值，空串按 0 处理。
func ParseInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
