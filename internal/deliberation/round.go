package deliberation

import "Pantheon-Lattice/internal/engagement"

// State 是单个人格在一轮议事中的终局状态，三者必居其一。
type State string

const (
	// StateSpoke 表示人格给出了实质回复。
	StateSpoke State = "spoke"
	// StateSilent 表示人格明确选择沉默。沉默是有效贡献，不是失败。
	StateSilent State = "silent"
	// StateFailed 表示超时或后端不可达。
	StateFailed State = "failed"
)

// Outcome 是一个人格对一条消息的响应结果。
type Outcome struct {
	ActorID    string `json:"actor_id"`
	Text       string `json:"text"`
	State      State  `json:"state"`
	DurationMS int64  `json:"duration_ms"`
	WorkUnits  int64  `json:"work_units"`
}

// Round 是一次完整的扇出加综合周期。
type Round struct {
	Message      string          `json:"message"`
	Outcomes     []Outcome       `json:"outcomes"`
	Synthesis    string          `json:"synthesis"`
	ThoughtHash  string          `json:"thought_hash"`
	Quality      engagement.Tier `json:"quality_tier"`
	Participated []string        `json:"participated"`
	WorkUnits    int64           `json:"work_units"`
	DurationMS   int64           `json:"duration_ms"`
}

// SpokeCount 返回给出实质回复的人格数量。
func (r *Round) SpokeCount() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.State == StateSpoke {
			count++
		}
	}
	return count
}
