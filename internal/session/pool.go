package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/internal/storage"
)

const defaultTTL = 24 * time.Hour

// Snapshot 是某一时刻资金池的只读视图。
// 读取与后续结算之间不持锁，期间落入的记账会留到下一轮结算。
type Snapshot struct {
	ParticipantID string   `json:"participant_id"`
	Total         int64    `json:"total"`
	Actors        []string `json:"actors"`
}

// Pool 是按参与者累积工作单元的资金池。
type Pool struct {
	store storage.Store
	ttl   time.Duration
}

// NewPool 创建资金池访问器。ttl 不合法时使用 24 小时。
func NewPool(store storage.Store, ttl time.Duration) *Pool {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Pool{store: store, ttl: ttl}
}

func totalKey(pid string) string {
	return fmt.Sprintf("lattice:pool:%s:total", pid)
}

func actorsKey(pid string) string {
	return fmt.Sprintf("lattice:pool:%s:actors", pid)
}

// Accumulate 向资金池原子累加工作单元并记录参与的人格。
// 每次写入都会刷新两个键的过期时间，废弃会话自行过期。
func (p *Pool) Accumulate(ctx context.Context, participantID string, workUnits int64, actorIDs []string) error {
	if participantID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "参与者 id 不能为空")
	}
	if workUnits < 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "工作单元不能为负")
	}

	if _, err := p.store.IncrBy(ctx, totalKey(participantID), workUnits, p.ttl); err != nil {
		return fmt.Errorf("累加资金池失败: %w", err)
	}
	if len(actorIDs) > 0 {
		if err := p.store.SetAdd(ctx, actorsKey(participantID), actorIDs, p.ttl); err != nil {
			return fmt.Errorf("记录参与人格失败: %w", err)
		}
	}
	return nil
}

// Read 返回资金池快照。不存在的池返回零值快照。
func (p *Pool) Read(ctx context.Context, participantID string) (Snapshot, error) {
	if participantID == "" {
		return Snapshot{}, xerrors.New(xerrors.CodeInvalidArgument, "参与者 id 不能为空")
	}

	raw, err := p.store.Get(ctx, totalKey(participantID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, fmt.Errorf("读取资金池失败: %w", err)
	}
	total, err := storage.ParseInt(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("资金池计数损坏: %w", err)
	}

	actors, err := p.store.SetMembers(ctx, actorsKey(participantID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("读取参与人格失败: %w", err)
	}
	sort.Strings(actors)

	return Snapshot{ParticipantID: participantID, Total: total, Actors: actors}, nil
}

// Clear 原子清空资金池。结算后调用。
func (p *Pool) Clear(ctx context.Context, participantID string) error {
	if participantID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "参与者 id 不能为空")
	}
	if err := p.store.Delete(ctx, totalKey(participantID), actorsKey(participantID)); err != nil {
		return fmt.Errorf("清空资金池失败: %w", err)
	}
	return nil
}
