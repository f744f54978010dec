package economy

import (
	"context"
	"fmt"
	"log/slog"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/pkg/logger"
)

// Ledger 把每个算力动作折算成固定成本，并通过支付通道
// 从国库转给完成动作的人格。
type Ledger struct {
	registry *actor.Registry
	payments payment.Client
	log      *slog.Logger
}

// NewLedger 创建账本。
func NewLedger(registry *actor.Registry, payments payment.Client) *Ledger {
	return &Ledger{
		registry: registry,
		payments: payments,
		log:      logger.Named("ledger"),
	}
}

// Credit 以动作成本记账并发起国库转账。返回记入的工作单元数。
// 支付通道不可用只记日志不阻断议事；未配置的 actor id 是调用方
// 错误，必须显式上抛。本层不保证幂等，重试可能产生重复小额记账。
func (l *Ledger) Credit(ctx context.Context, actorID string, kind ActionKind, narrative string) (int64, error) {
	target, err := l.registry.Get(actorID)
	if err != nil {
		return 0, fmt.Errorf("记账目标非法: %w", err)
	}

	cost := ActionCost(kind)
	treasury := l.registry.Treasury()

	receipt, err := l.payments.Transfer(ctx, payment.Transfer{
		From:   treasury.Address,
		To:     target.Address,
		Amount: cost,
		Memo:   fmt.Sprintf("%s: %s", kind, truncate(narrative, 50)),
	})
	if err != nil {
		l.log.Warn("算力记账转账失败，忽略并继续",
			"actor", target.ID, "action", string(kind), "cost", cost, "error", err)
		return cost, nil
	}

	logger.Audit().Info("compute_credit",
		"actor", target.ID,
		"action", string(kind),
		"cost", cost,
		"status", receipt.Status,
		"reference", receipt.Reference,
	)
	return cost, nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
