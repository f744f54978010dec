package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/engagement"
	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/internal/observability/alerting"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/internal/session"
	"Pantheon-Lattice/internal/storage"
	"Pantheon-Lattice/pkg/logger"
)

const (
	settlementAuditKey = "lattice:settlements"
	eventsChannel      = "lattice:events"
)

// QualitySource 提供参与者最近一条消息的质量分级。
// 会话分级取最后一条消息的评分，并发轮次之间后写覆盖先写。
type QualitySource interface {
	LastQuality(ctx context.Context, participantID string) engagement.Tier
}

// Disbursement 是一次结算的完整结果：拆分方案加上逐笔转账的汇总。
type Disbursement struct {
	Result             SettlementResult `json:"result"`
	TransfersAttempted int              `json:"transfers_attempted"`
	TransfersFailed    int              `json:"transfers_failed"`
}

// Disburser 读取资金池、计算拆分、执行转账并清空资金池。
type Disburser struct {
	pool     *session.Pool
	registry *actor.Registry
	payments payment.Client
	quality  QualitySource
	store    storage.Store
	auditCap int64
	alerts   alerting.Dispatcher
	log      *slog.Logger
}

// DisburserOption 定义可选配置。
type DisburserOption func(*Disburser)

// WithAlerting 指定转账失败时使用的告警分发器。
func WithAlerting(dispatcher alerting.Dispatcher) DisburserOption {
	return func(d *Disburser) {
		d.alerts = dispatcher
	}
}

// NewDisburser 创建结算执行器。
func NewDisburser(
	pool *session.Pool,
	registry *actor.Registry,
	payments payment.Client,
	quality QualitySource,
	store storage.Store,
	auditCap int64,
	opts ...DisburserOption,
) *Disburser {
	if auditCap <= 0 {
		auditCap = 500
	}
	d := &Disburser{
		pool:     pool,
		registry: registry,
		payments: payments,
		quality:  quality,
		store:    store,
		auditCap: auditCap,
		log:      logger.Named("settlement"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Settle 对参与者的资金池执行一次完整结算。
// 读取与清空之间没有锁：期间落入的记账会留到下一个会话，
// 这是有意接受的不一致，换取结算路径永不阻塞记账路径。
// 单笔转账失败计入 TransfersFailed，不回滚其他转账，也不回填资金池。
func (d *Disburser) Settle(ctx context.Context, participantID string) (Disbursement, error) {
	if participantID == "" {
		return Disbursement{}, xerrors.New(xerrors.CodeInvalidArgument, "参与者 id 不能为空")
	}

	snap, err := d.pool.Read(ctx, participantID)
	if err != nil {
		return Disbursement{}, xerrors.Wrap(xerrors.CodeSettlementFailure, err, "读取资金池失败")
	}

	tier := d.quality.LastQuality(ctx, participantID)
	result, err := Settle(snap.Total, tier, int64(len(snap.Actors)))
	if err != nil {
		return Disbursement{}, err
	}

	disbursement := Disbursement{Result: result}
	treasury := d.registry.Treasury()

	if result.Participant > 0 {
		disbursement.TransfersAttempted++
		if err := d.transfer(ctx, treasury.Address, participantID, result.Participant, "session settlement: participant share"); err != nil {
			disbursement.TransfersFailed++
		}
	}

	if result.PerActor > 0 {
		for _, actorID := range snap.Actors {
			member, err := d.registry.Get(actorID)
			if err != nil {
				return Disbursement{}, fmt.Errorf("资金池包含未配置的人格: %w", err)
			}
			disbursement.TransfersAttempted++
			memo := fmt.Sprintf("session settlement: %s share", member.ID)
			if err := d.transfer(ctx, treasury.Address, member.Address, result.PerActor, memo); err != nil {
				disbursement.TransfersFailed++
			}
		}
	}

	// 基础设施份额留在国库，无需转账。

	if err := d.pool.Clear(ctx, participantID); err != nil {
		d.log.Error("清空资金池失败", "participant", participantID, "error", err)
	}

	if disbursement.TransfersFailed > 0 && d.alerts != nil {
		alertErr := d.alerts.Notify(ctx, alerting.Event{
			Code:          xerrors.CodePaymentFailure,
			Message:       "部分结算转账未能完成",
			Severity:      xerrors.SeverityWarning,
			ParticipantID: participantID,
			Attempted:     disbursement.TransfersAttempted,
			Failed:        disbursement.TransfersFailed,
			OccurredAt:    time.Now().UTC(),
		})
		if alertErr != nil {
			d.log.Warn("结算告警发送失败", "error", alertErr)
		}
	}

	d.record(ctx, participantID, disbursement)
	return disbursement, nil
}

func (d *Disburser) transfer(ctx context.Context, from, to string, amount int64, memo string) error {
	receipt, err := d.payments.Transfer(ctx, payment.Transfer{
		From:   from,
		To:     to,
		Amount: amount,
		Memo:   memo,
	})
	if err != nil {
		d.log.Warn("结算转账失败", "to", to, "amount", amount, "error", err)
		return err
	}
	logger.Audit().Info("settlement_transfer",
		"to", to, "amount", amount, "status", receipt.Status, "reference", receipt.Reference)
	return nil
}

// record 写入审计流水并广播结算事件。任何失败只记日志。
func (d *Disburser) record(ctx context.Context, participantID string, disbursement Disbursement) {
	entry, err := json.Marshal(map[string]any{
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"participant_id":      participantID,
		"result":              disbursement.Result,
		"transfers_attempted": disbursement.TransfersAttempted,
		"transfers_failed":    disbursement.TransfersFailed,
	})
	if err != nil {
		return
	}

	if err := d.store.PushCapped(ctx, settlementAuditKey, string(entry), d.auditCap); err != nil {
		d.log.Warn("写入结算审计流水失败", "error", err)
	}

	event, err := json.Marshal(map[string]any{
		"type": "settlement_complete",
		"data": json.RawMessage(entry),
	})
	if err != nil {
		return
	}
	if err := d.store.Publish(ctx, eventsChannel, string(event)); err != nil {
		d.log.Warn("广播结算事件失败", "error", err)
	}
}
