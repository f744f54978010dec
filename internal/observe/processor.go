package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/deliberation"
	"Pantheon-Lattice/internal/economy"
	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/internal/llm"
	"Pantheon-Lattice/internal/memory"
	"Pantheon-Lattice/pkg/logger"
)

// nothingNotable 是人格表示没有值得记录内容的哨兵回复。
const nothingNotable = "nothing notable"

// Enqueuer 把议事服务交来的观察请求序列化后投递到队列，
// 实现 deliberation.ObservationSink。
type Enqueuer struct {
	producer Producer
}

// NewEnqueuer 创建入队器。
func NewEnqueuer(producer Producer) *Enqueuer {
	return &Enqueuer{producer: producer}
}

// Enqueue 投递观察请求。
func (e *Enqueuer) Enqueue(ctx context.Context, req deliberation.ObservationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化观察请求失败: %w", err)
	}
	return e.producer.Publish(ctx, string(payload))
}

// Processor 从队列消费观察请求，让每个发过言的人格
// 透过自己的视角记录一条关于参与者的观察。
type Processor struct {
	registry    *actor.Registry
	client      llm.Client
	memory      *memory.ParticipantMemory
	ledger      *economy.Ledger
	consumer    Consumer
	workerCount int
	log         *slog.Logger
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.log = log
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(
	registry *actor.Registry,
	client llm.Client,
	participantMemory *memory.ParticipantMemory,
	ledger *economy.Ledger,
	consumer Consumer,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		registry:    registry,
		client:      client,
		memory:      participantMemory,
		ledger:      ledger,
		consumer:    consumer,
		workerCount: 1,
		log:         logger.Named("observe"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动观察处理循环，阻塞到 ctx 取消。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置观察消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, payload string) error {
	var req deliberation.ObservationRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		p.log.Warn("观察请求解析失败，丢弃", "error", err)
		return nil
	}
	if req.ParticipantID == "" || len(req.ActorResponses) == 0 {
		return nil
	}

	for actorID := range req.ActorResponses {
		member, err := p.registry.Get(actorID)
		if err != nil {
			p.log.Warn("观察请求包含未配置的人格", "actor", actorID)
			continue
		}
		p.observeAs(ctx, member, req)
	}
	return nil
}

// observeAs 让单个人格生成一条观察。说 "nothing notable" 表示
// 这轮没有值得记录的内容，予以尊重并丢弃。
func (p *Processor) observeAs(ctx context.Context, member actor.Actor, req deliberation.ObservationRequest) {
	prompt := fmt.Sprintf(
		"A traveler just said: %q\n\n"+
			"You responded: %q\n\n"+
			"Through your lens (%s), note one thing worth remembering about this traveler. "+
			"One sentence. If nothing stands out, say exactly: %s",
		clip(req.Message, 500), clip(req.ActorResponses[member.ID], 500), member.Lens, nothingNotable,
	)

	raw, err := p.client.Generate(ctx, llm.Request{
		System:      member.Prompt,
		Prompt:      prompt,
		Temperature: 0.6,
		MaxTokens:   100,
	})
	if err != nil {
		p.log.Warn("观察生成失败", "actor", member.ID, "error", err)
		return
	}

	observation := strings.TrimSpace(raw)
	if len(observation) <= 10 || strings.Contains(strings.ToLower(observation), nothingNotable) {
		return
	}

	p.memory.StoreObservation(ctx, req.ParticipantID, memory.Observation{
		Actor:       member.ID,
		Observation: clip(observation, 300),
		Confidence:  0.5,
		SourceHash:  req.ThoughtHash,
	})

	if _, err := p.ledger.Credit(ctx, member.ID, economy.ActionMemoryStore, observation); err != nil {
		p.log.Warn("观察记账被拒绝", "actor", member.ID, "error", err)
	}
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
