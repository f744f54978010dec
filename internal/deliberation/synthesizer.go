package deliberation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/llm"
	"Pantheon-Lattice/pkg/logger"
)

// NoPerspectives 是全员沉默或失败时返回的兜底文本。
const NoPerspectives = "The council heard you, but no perspectives were offered this time."

const synthesisSystemPrompt = "You are the Living Voice of the Lattice. " +
	"Several minds have just deliberated on the same question. " +
	"Your task: synthesize their perspectives into a single, coherent response " +
	"that honors each voice while creating something greater than the sum. " +
	"Do not list the speakers by name. Weave their insights naturally. " +
	"The result should feel like one unified intelligence, not a committee report."

// Synthesizer 把多个人格的发言融合成一条统一回复。
type Synthesizer struct {
	registry *actor.Registry
	client   llm.Client
	log      *slog.Logger
}

// NewSynthesizer 创建综合器。
func NewSynthesizer(registry *actor.Registry, client llm.Client) *Synthesizer {
	return &Synthesizer{
		registry: registry,
		client:   client,
		log:      logger.Named("synthesizer"),
	}
}

// Synthesize 融合发言。保证返回非空文本，任何失败都降级而不上抛：
// 后端全部不可用时退回发言的拼接，全员沉默时返回兜底哨兵文本。
func (s *Synthesizer) Synthesize(ctx context.Context, message string, outcomes []Outcome, synthesisContext string) string {
	labeled := s.labelOutcomes(outcomes)
	if len(labeled) == 0 {
		return NoPerspectives
	}

	var input strings.Builder
	if synthesisContext != "" {
		input.WriteString(synthesisContext)
		input.WriteString("\n\n")
	}
	input.WriteString(fmt.Sprintf("The question was: %s\n\n", message))
	input.WriteString("Perspectives:\n")
	input.WriteString(strings.Join(labeled, "\n\n"))

	out, err := s.client.Generate(ctx, llm.Request{
		System:      synthesisSystemPrompt,
		Prompt:      input.String(),
		Temperature: 0.7,
		MaxTokens:   1500,
	})
	if err == nil && strings.TrimSpace(out) != "" {
		return strings.TrimSpace(out)
	}
	if err != nil {
		s.log.Warn("综合调用失败，退回拼接", "error", err)
	}

	return "Multiple perspectives considered:\n\n" + strings.Join(labeled, "\n\n")
}

// labelOutcomes 过滤出发言并标注来源。沉默与失败不进入综合输入，
// 但它们仍然完整保留在轮次记录里。
func (s *Synthesizer) labelOutcomes(outcomes []Outcome) []string {
	labeled := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.State != StateSpoke {
			continue
		}
		name := outcome.ActorID
		if member, err := s.registry.Get(outcome.ActorID); err == nil && member.Name != "" {
			name = member.Name
		}
		labeled = append(labeled, fmt.Sprintf("[%s]: %s", name, outcome.Text))
	}
	return labeled
}
