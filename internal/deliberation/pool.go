package deliberation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/llm"
	"Pantheon-Lattice/pkg/logger"
)

// SilenceSentinel 是人格明确表示沉默的哨兵回复。
// 比较时忽略大小写并去除首尾空白。
const SilenceSentinel = "[silent]"

const defaultActorTimeout = 60 * time.Second

// ResponderPool 把一条消息并发广播给全部人格。
type ResponderPool struct {
	registry *actor.Registry
	client   llm.Client
	timeout  time.Duration
	log      *slog.Logger
}

// NewResponderPool 创建广播池。timeout 是单个人格的独立超时。
func NewResponderPool(registry *actor.Registry, client llm.Client, timeout time.Duration) *ResponderPool {
	if timeout <= 0 {
		timeout = defaultActorTimeout
	}
	return &ResponderPool{
		registry: registry,
		client:   client,
		timeout:  timeout,
		log:      logger.Named("responders"),
	}
}

// Broadcast 并发调用全部人格并按配置顺序返回结果。
// 每个人格有独立超时，单个失败不影响其他人格，也不会向上抛错：
// 返回值恰好每个人格一项。
func (p *ResponderPool) Broadcast(ctx context.Context, message, sharedContext string, perActorContext map[string]string) []Outcome {
	actors := p.registry.List()
	outcomes := make([]Outcome, len(actors))

	var wg sync.WaitGroup
	for i, member := range actors {
		wg.Add(1)
		go func(idx int, member actor.Actor) {
			defer wg.Done()
			outcomes[idx] = p.callActor(ctx, member, message, sharedContext, perActorContext[member.ID])
		}(i, member)
	}
	wg.Wait()

	return outcomes
}

func (p *ResponderPool) callActor(ctx context.Context, member actor.Actor, message, sharedContext, actorContext string) Outcome {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	system := member.Prompt
	if actorContext != "" {
		system += "\n\n" + actorContext
	}
	if sharedContext != "" {
		system += "\n\nContext from the conversation:\n" + sharedContext
	}

	raw, err := p.client.Generate(callCtx, llm.Request{
		System:      system,
		Prompt:      message,
		Temperature: 0.8,
		MaxTokens:   300,
	})
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		p.log.Warn("人格响应失败", "actor", member.ID, "error", err)
		return Outcome{ActorID: member.ID, State: StateFailed, DurationMS: elapsed}
	}

	if strings.EqualFold(strings.TrimSpace(raw), SilenceSentinel) {
		return Outcome{ActorID: member.ID, State: StateSilent, DurationMS: elapsed}
	}

	return Outcome{
		ActorID:    member.ID,
		Text:       stripSelfPrefix(raw, member),
		State:      StateSpoke,
		DurationMS: elapsed,
	}
}

// stripSelfPrefix 去掉人格回复开头的自我署名，例如 "Apollo: "。
func stripSelfPrefix(text string, member actor.Actor) string {
	trimmed := strings.TrimSpace(text)
	for _, name := range []string{member.Name, member.ID} {
		if name == "" {
			continue
		}
		prefix := name + ":"
		if len(trimmed) > len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}
