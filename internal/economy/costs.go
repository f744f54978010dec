package economy

// ActionKind 是一类计入账本的算力动作。
type ActionKind string

const (
	ActionThought      ActionKind = "thought"
	ActionDeliberation ActionKind = "deliberation"
	ActionSynthesis    ActionKind = "synthesis"
	ActionReflection   ActionKind = "reflection"
	ActionMemoryStore  ActionKind = "memory_store"
	ActionNFTEvolve    ActionKind = "nft_evolve"
	ActionPublish      ActionKind = "nostr_publish"
)

// actionCosts 是各动作的固定成本（工作单元）。
var actionCosts = map[ActionKind]int64{
	ActionThought:      1,
	ActionDeliberation: 1,
	ActionSynthesis:    2,
	ActionReflection:   1,
	ActionMemoryStore:  1,
	ActionNFTEvolve:    2,
	ActionPublish:      1,
}

// ActionCost 返回动作的成本。未知动作按 1 计。
func ActionCost(kind ActionKind) int64 {
	if cost, ok := actionCosts[kind]; ok {
		return cost
	}
	return 1
}
