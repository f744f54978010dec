package economy

import (
	"Pantheon-Lattice/internal/engagement"
	xerrors "Pantheon-Lattice/internal/errors"
)

// 资金池分配比例（百分比）。
const (
	shareParticipant    = 40
	shareActors         = 40
	shareInfrastructure = 20
)

// SettlementResult 是对一个资金池应用结算计算的结果。
// 不变量：Participant + ActorCount*PerActor + Infrastructure == EffectiveTotal。
type SettlementResult struct {
	RawTotal       int64           `json:"raw_total"`
	Tier           engagement.Tier `json:"quality_tier"`
	Multiplier     float64         `json:"quality_multiplier"`
	EffectiveTotal int64           `json:"effective_total"`
	Participant    int64           `json:"participant_share"`
	PerActor       int64           `json:"per_actor_share"`
	ActorCount     int64           `json:"actor_count"`
	Infrastructure int64           `json:"infrastructure_share"`
}

// Settle 把累积的工作单元按质量分级与参与人格数确定性拆分。
// 纯函数：倍率以十分位整数参与运算，没有浮点舍入的不确定性。
// 零资金池返回全零结果并回退到中性分级，这不是错误。
func Settle(totalWorkUnits int64, tier engagement.Tier, actorCount int64) (SettlementResult, error) {
	if totalWorkUnits < 0 {
		return SettlementResult{}, xerrors.New(xerrors.CodeInvalidArgument, "工作单元总量不能为负")
	}
	if actorCount < 1 {
		actorCount = 1
	}
	if totalWorkUnits == 0 {
		tier = engagement.NeutralTier
	}

	tenths := engagement.MultiplierTenths(tier)
	effective := totalWorkUnits * tenths / 10

	participant := effective * shareParticipant / 100
	actorPool := effective * shareActors / 100
	infrastructure := effective * shareInfrastructure / 100

	perActor := actorPool / actorCount

	// 两次整除的余数全部归入基础设施份额，保证四项之和恰好等于有效总量。
	remainder := effective - participant - perActor*actorCount - infrastructure
	infrastructure += remainder

	return SettlementResult{
		RawTotal:       totalWorkUnits,
		Tier:           tier,
		Multiplier:     engagement.Multiplier(tier),
		EffectiveTotal: effective,
		Participant:    participant,
		PerActor:       perActor,
		ActorCount:     actorCount,
		Infrastructure: infrastructure,
	}, nil
}
