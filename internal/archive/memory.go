package archive

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "Pantheon-Lattice/internal/errors"
)

// MemoryRepository 在内存中归档轮次，用于测试与单机运行。
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRepository 创建内存归档。
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

// Save 归档一条记录。
func (r *MemoryRepository) Save(_ context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	if strings.TrimSpace(record.ThoughtHash) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "thought hash 不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ThoughtHash]; exists {
		return ErrRoundConflict
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	clone := *record
	r.records[record.ThoughtHash] = &clone
	return nil
}

// Get 按 thought hash 查询轮次。
func (r *MemoryRepository) Get(_ context.Context, thoughtHash string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[thoughtHash]
	if !ok {
		return nil, ErrRoundNotFound
	}
	clone := *record
	return &clone, nil
}

// List 返回最近归档的轮次，按时间倒序。
func (r *MemoryRepository) List(_ context.Context, limit int) ([]*Record, error) {
	return r.collect(limit, func(*Record) bool { return true }), nil
}

// ListByParticipant 返回某个参与者最近的轮次。
func (r *MemoryRepository) ListByParticipant(_ context.Context, participantID string, limit int) ([]*Record, error) {
	return r.collect(limit, func(record *Record) bool {
		return record.ParticipantID == participantID
	}), nil
}

func (r *MemoryRepository) collect(limit int, keep func(*Record) bool) []*Record {
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*Record
	for _, record := range r.records {
		if keep(record) {
			clone := *record
			records = append(records, &clone)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt == records[j].CreatedAt {
			return records[i].ThoughtHash > records[j].ThoughtHash
		}
		return records[i].CreatedAt > records[j].CreatedAt
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Close 实现 Repository 接口，内存归档无需释放资源。
func (r *MemoryRepository) Close() error { return nil }
