package deliberation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"Pantheon-Lattice/internal/archive"
	"Pantheon-Lattice/internal/economy"
	"Pantheon-Lattice/internal/engagement"
	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/internal/memory"
	"Pantheon-Lattice/internal/session"
	"Pantheon-Lattice/internal/storage"
	"Pantheon-Lattice/pkg/logger"
)

const (
	roundAuditKey = "lattice:deliberations"
	eventsChannel = "lattice:events"
)

// ObservationRequest 是一轮议事结束后交给后台观察队列的工作项。
type ObservationRequest struct {
	ParticipantID  string            `json:"participant_id"`
	Message        string            `json:"message"`
	ThoughtHash    string            `json:"thought_hash"`
	ActorResponses map[string]string `json:"actor_responses"`
}

// ObservationSink 接收观察工作项。议事主路径只入队，不等待处理。
type ObservationSink interface {
	Enqueue(ctx context.Context, req ObservationRequest) error
}

// NopSink 丢弃全部观察工作项，是未配置观察队列时的默认实现。
type NopSink struct{}

func (NopSink) Enqueue(context.Context, ObservationRequest) error { return nil }

// Service 编排一轮完整议事：评分、广播、记账、综合、累积资金池、
// 写入记忆与审计流水、投递后台观察。
type Service struct {
	responders *ResponderPool
	synth      *Synthesizer
	scorer     *engagement.Scorer
	ledger     *economy.Ledger
	sessions   *session.Pool
	memory     *memory.ParticipantMemory
	store      storage.Store
	sink       ObservationSink
	rounds     archive.Repository
	auditCap   int64
	log        *slog.Logger
}

// Config 汇集议事服务的依赖。
type Config struct {
	Responders   *ResponderPool
	Synthesizer  *Synthesizer
	Scorer       *engagement.Scorer
	Ledger       *economy.Ledger
	Sessions     *session.Pool
	Memory       *memory.ParticipantMemory
	Store        storage.Store
	Observations ObservationSink
	Archive      archive.Repository
	AuditCap     int64
}

// NewService 创建议事服务。未提供观察队列时使用 NopSink。
func NewService(cfg Config) *Service {
	sink := cfg.Observations
	if sink == nil {
		sink = NopSink{}
	}
	auditCap := cfg.AuditCap
	if auditCap <= 0 {
		auditCap = 500
	}
	return &Service{
		responders: cfg.Responders,
		synth:      cfg.Synthesizer,
		scorer:     cfg.Scorer,
		ledger:     cfg.Ledger,
		sessions:   cfg.Sessions,
		memory:     cfg.Memory,
		store:      cfg.Store,
		sink:       sink,
		rounds:     cfg.Archive,
		auditCap:   auditCap,
		log:        logger.Named("deliberation"),
	}
}

// Deliberate 对一条消息执行完整的一轮议事。
// 除非输入本身非法，永远返回带有非空综合文本的轮次结果：
// 后端全灭时经由兜底链降级，而不是向调用方报错。
func (s *Service) Deliberate(ctx context.Context, message, participantID, sessionContext string) (*Round, error) {
	if message == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息不能为空")
	}
	start := time.Now()

	// 质量评分独立于议事本身，同步完成。
	vocabulary := map[string]struct{}{}
	if participantID != "" {
		vocabulary = s.memory.Vocabulary(ctx, participantID)
	}
	score := s.scorer.Evaluate(message, vocabulary)

	perActorContext := map[string]string{}
	synthesisContext := ""
	if participantID != "" {
		for _, member := range s.responders.registry.List() {
			if built := s.memory.BuildActorContext(ctx, participantID, member.ID, member.Lens); built != "" {
				perActorContext[member.ID] = built
			}
		}
		synthesisContext = s.memory.BuildSynthesisContext(ctx, participantID)
	}

	outcomes := s.responders.Broadcast(ctx, message, sessionContext, perActorContext)

	// 发言与沉默都计入算力，失败不计。
	var workUnits int64
	for i := range outcomes {
		if outcomes[i].State == StateFailed {
			continue
		}
		cost, err := s.ledger.Credit(ctx, outcomes[i].ActorID, economy.ActionDeliberation, message)
		if err != nil {
			s.log.Error("人格记账被拒绝", "actor", outcomes[i].ActorID, "error", err)
			continue
		}
		outcomes[i].WorkUnits = cost
		workUnits += cost
	}

	synthesis := s.synth.Synthesize(ctx, message, outcomes, synthesisContext)

	// 综合是国库名下的算力动作。
	if cost, err := s.ledger.Credit(ctx, "treasury", economy.ActionSynthesis, message); err == nil {
		workUnits += cost
	}

	hash := sha256.Sum256([]byte(message + synthesis))
	thoughtHash := hex.EncodeToString(hash[:])[:16]

	participated := make([]string, 0, len(outcomes))
	actorResponses := make(map[string]string, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.State == StateSpoke {
			participated = append(participated, outcome.ActorID)
			actorResponses[outcome.ActorID] = outcome.Text
		}
	}

	round := &Round{
		Message:      message,
		Outcomes:     outcomes,
		Synthesis:    synthesis,
		ThoughtHash:  thoughtHash,
		Quality:      score.Tier,
		Participated: participated,
		WorkUnits:    workUnits,
		DurationMS:   time.Since(start).Milliseconds(),
	}

	if participantID != "" {
		if err := s.sessions.Accumulate(ctx, participantID, workUnits, participated); err != nil {
			s.log.Warn("资金池累积失败", "participant", participantID, "error", err)
		}
		s.memory.StoreExchange(ctx, participantID, message, synthesis, score.Tier, thoughtHash)
	}

	s.record(ctx, round, participantID)
	s.archiveRound(ctx, round, participantID)

	if participantID != "" && len(actorResponses) > 0 {
		if err := s.sink.Enqueue(ctx, ObservationRequest{
			ParticipantID:  participantID,
			Message:        message,
			ThoughtHash:    thoughtHash,
			ActorResponses: actorResponses,
		}); err != nil {
			s.log.Warn("观察任务入队失败", "error", err)
		}
	}

	s.log.Info("议事完成",
		"spoke", round.SpokeCount(),
		"actors", len(outcomes),
		"work_units", workUnits,
		"quality", string(score.Tier),
		"duration_ms", round.DurationMS,
	)
	return round, nil
}

// record 写入审计流水并广播事件。失败只记日志，不影响返回结果。
func (s *Service) record(ctx context.Context, round *Round, participantID string) {
	entry, err := json.Marshal(map[string]any{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"thought_hash":   round.ThoughtHash,
		"message":        clip(round.Message, 200),
		"participated":   round.Participated,
		"quality_tier":   string(round.Quality),
		"work_units":     round.WorkUnits,
		"duration_ms":    round.DurationMS,
		"participant_id": participantID,
	})
	if err != nil {
		return
	}

	if err := s.store.PushCapped(ctx, roundAuditKey, string(entry), s.auditCap); err != nil {
		s.log.Warn("写入议事审计流水失败", "error", err)
	}

	event, err := json.Marshal(map[string]any{
		"type": "deliberation_complete",
		"data": json.RawMessage(entry),
	})
	if err != nil {
		return
	}
	if err := s.store.Publish(ctx, eventsChannel, string(event)); err != nil {
		s.log.Warn("广播议事事件失败", "error", err)
	}
}

// archiveRound 把轮次写入长期归档。未配置归档时跳过，失败只记日志。
func (s *Service) archiveRound(ctx context.Context, round *Round, participantID string) {
	if s.rounds == nil {
		return
	}

	var silent, failed int
	for _, outcome := range round.Outcomes {
		switch outcome.State {
		case StateSilent:
			silent++
		case StateFailed:
			failed++
		}
	}

	err := s.rounds.Save(ctx, &archive.Record{
		ThoughtHash:   round.ThoughtHash,
		ParticipantID: participantID,
		Message:       round.Message,
		Synthesis:     round.Synthesis,
		Quality:       string(round.Quality),
		WorkUnits:     round.WorkUnits,
		SpokeCount:    round.SpokeCount(),
		SilentCount:   silent,
		FailedCount:   failed,
		DurationMS:    round.DurationMS,
	})
	if err != nil {
		s.log.Warn("轮次归档失败", "thought_hash", round.ThoughtHash, "error", err)
	}
}

// RecentRounds 返回最近的议事审计记录，头部最新。
func (s *Service) RecentRounds(ctx context.Context, limit int64) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	raw, err := s.store.Range(ctx, roundAuditKey, 0, limit-1)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取议事流水失败")
	}
	out := make([]json.RawMessage, 0, len(raw))
	for _, item := range raw {
		out = append(out, json.RawMessage(item))
	}
	return out, nil
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
