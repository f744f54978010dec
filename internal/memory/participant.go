package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Pantheon-Lattice/internal/engagement"
	"Pantheon-Lattice/internal/storage"
	"Pantheon-Lattice/pkg/logger"
)

// Config 控制各存储层的容量上限。
type Config struct {
	MaxMessages     int64
	MaxObservations int64
	VocabularyTTL   time.Duration
}

// Exchange 是一次完整的问答记录。
type Exchange struct {
	Message     string `json:"message"`
	Response    string `json:"response"`
	Quality     string `json:"quality"`
	ThoughtHash string `json:"thought_hash"`
	Timestamp   string `json:"timestamp"`
}

// Observation 是某个人格对参与者的一条观察。
type Observation struct {
	Actor       string  `json:"actor"`
	Observation string  `json:"observation"`
	Confidence  float64 `json:"confidence"`
	SourceHash  string  `json:"source_hash"`
	Timestamp   string  `json:"timestamp"`
}

// Profile 是参与者的轻量画像。
type Profile struct {
	TotalMessages int64    `json:"total_messages"`
	FirstSeen     string   `json:"first_seen"`
	QualityTrend  []string `json:"quality_trend"`
}

// ParticipantMemory 管理按参与者划分的持久记忆。
type ParticipantMemory struct {
	store storage.Store
	cfg   Config
	log   *slog.Logger
}

// NewParticipantMemory 创建记忆服务。未填写的上限取默认值。
func NewParticipantMemory(store storage.Store, cfg Config) *ParticipantMemory {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 100
	}
	if cfg.MaxObservations <= 0 {
		cfg.MaxObservations = 20
	}
	if cfg.VocabularyTTL <= 0 {
		cfg.VocabularyTTL = 30 * 24 * time.Hour
	}
	return &ParticipantMemory{store: store, cfg: cfg, log: logger.Named("memory")}
}

func messagesKey(pid string) string {
	return fmt.Sprintf("lattice:memory:%s:messages", pid)
}

func vocabularyKey(pid string) string {
	return fmt.Sprintf("lattice:memory:%s:vocabulary", pid)
}

func observationsKey(pid, actorID string) string {
	return fmt.Sprintf("lattice:memory:%s:observations:%s", pid, actorID)
}

func lastQualityKey(pid string) string {
	return fmt.Sprintf("lattice:memory:%s:last_quality", pid)
}

func profileKey(pid string) string {
	return fmt.Sprintf("lattice:memory:%s:profile", pid)
}

// StoreExchange 记录一次问答，同步更新词汇集合、
// 最近质量指针与画像。所有写入都是尽力而为。
func (m *ParticipantMemory) StoreExchange(ctx context.Context, pid, message, response string, quality engagement.Tier, thoughtHash string) {
	if pid == "" {
		return
	}

	entry, err := json.Marshal(Exchange{
		Message:     clip(message, 2000),
		Response:    clip(response, 2000),
		Quality:     string(quality),
		ThoughtHash: thoughtHash,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		if err := m.store.PushCapped(ctx, messagesKey(pid), string(entry), m.cfg.MaxMessages); err != nil {
			m.log.Warn("存储问答记录失败", "participant", pid, "error", err)
		}
	}

	if words := engagement.MeaningfulWords(message); len(words) > 0 {
		if err := m.store.SetAdd(ctx, vocabularyKey(pid), words, m.cfg.VocabularyTTL); err != nil {
			m.log.Warn("存储词汇失败", "participant", pid, "error", err)
		}
	}

	if err := m.store.Set(ctx, lastQualityKey(pid), string(quality), 0); err != nil {
		m.log.Warn("更新最近质量失败", "participant", pid, "error", err)
	}

	m.updateProfile(ctx, pid, quality)
}

// RecentExchanges 返回最近的问答记录，头部最新。
func (m *ParticipantMemory) RecentExchanges(ctx context.Context, pid string, limit int64) ([]Exchange, error) {
	raw, err := m.store.Range(ctx, messagesKey(pid), 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("读取问答记录失败: %w", err)
	}
	out := make([]Exchange, 0, len(raw))
	for _, item := range raw {
		var exchange Exchange
		if err := json.Unmarshal([]byte(item), &exchange); err != nil {
			continue
		}
		out = append(out, exchange)
	}
	return out, nil
}

// Vocabulary 返回参与者的历史词汇集合，供新颖度评分使用。
func (m *ParticipantMemory) Vocabulary(ctx context.Context, pid string) map[string]struct{} {
	members, err := m.store.SetMembers(ctx, vocabularyKey(pid))
	if err != nil {
		m.log.Warn("读取词汇失败", "participant", pid, "error", err)
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(members))
	for _, member := range members {
		set[member] = struct{}{}
	}
	return set
}

// StoreObservation 记录某个人格对参与者的观察。
func (m *ParticipantMemory) StoreObservation(ctx context.Context, pid string, obs Observation) {
	if pid == "" || obs.Actor == "" {
		return
	}
	obs.Timestamp = time.Now().UTC().Format(time.RFC3339)
	entry, err := json.Marshal(obs)
	if err != nil {
		return
	}
	if err := m.store.PushCapped(ctx, observationsKey(pid, obs.Actor), string(entry), m.cfg.MaxObservations); err != nil {
		m.log.Warn("存储观察失败", "participant", pid, "actor", obs.Actor, "error", err)
	}
}

// Observations 返回某个人格对参与者的最近观察。
func (m *ParticipantMemory) Observations(ctx context.Context, pid, actorID string, limit int64) ([]Observation, error) {
	raw, err := m.store.Range(ctx, observationsKey(pid, actorID), 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("读取观察失败: %w", err)
	}
	out := make([]Observation, 0, len(raw))
	for _, item := range raw {
		var obs Observation
		if err := json.Unmarshal([]byte(item), &obs); err != nil {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

// LastQuality 返回参与者最近一条消息的质量分级。
// 没有记录时回退到中性分级。并发轮次之间后写覆盖先写。
func (m *ParticipantMemory) LastQuality(ctx context.Context, pid string) engagement.Tier {
	raw, err := m.store.Get(ctx, lastQualityKey(pid))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("读取最近质量失败", "participant", pid, "error", err)
		}
		return engagement.NeutralTier
	}
	if !engagement.ValidTier(raw) {
		return engagement.NeutralTier
	}
	return engagement.Tier(raw)
}

// Profile 返回参与者画像。没有记录时返回零值画像。
func (m *ParticipantMemory) Profile(ctx context.Context, pid string) Profile {
	raw, err := m.store.Get(ctx, profileKey(pid))
	if err != nil {
		return Profile{}
	}
	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return Profile{}
	}
	return profile
}

// BuildActorContext 为某个人格拼装注入到系统提示词的参与者背景。
// 没有任何记忆时返回空串。
func (m *ParticipantMemory) BuildActorContext(ctx context.Context, pid, actorID, lens string) string {
	observations, err := m.Observations(ctx, pid, actorID, 3)
	if err != nil || (len(observations) == 0) {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("What you have noticed about this traveler before:\n")
	for _, obs := range observations {
		builder.WriteString("- ")
		builder.WriteString(obs.Observation)
		builder.WriteString("\n")
	}
	if lens != "" {
		builder.WriteString(fmt.Sprintf("Your lens: %s.", lens))
	}
	return builder.String()
}

// BuildSynthesisContext 为综合步骤拼装参与者叙事背景。
func (m *ParticipantMemory) BuildSynthesisContext(ctx context.Context, pid string) string {
	profile := m.Profile(ctx, pid)
	if profile.TotalMessages == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("This traveler has exchanged %d messages with the lattice.", profile.TotalMessages))
	if len(profile.QualityTrend) > 0 {
		builder.WriteString(fmt.Sprintf(" Recent quality trend: %s.", strings.Join(profile.QualityTrend, ", ")))
	}
	return builder.String()
}

// updateProfile 更新画像。读改写即可：画像是展示数据，不参与结算。
func (m *ParticipantMemory) updateProfile(ctx context.Context, pid string, quality engagement.Tier) {
	profile := m.Profile(ctx, pid)
	if profile.FirstSeen == "" {
		profile.FirstSeen = time.Now().UTC().Format(time.RFC3339)
	}
	profile.TotalMessages++
	profile.QualityTrend = append(profile.QualityTrend, string(quality))
	if len(profile.QualityTrend) > 10 {
		profile.QualityTrend = profile.QualityTrend[len(profile.QualityTrend)-10:]
	}

	encoded, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := m.store.Set(ctx, profileKey(pid), string(encoded), 0); err != nil {
		m.log.Warn("更新画像失败", "participant", pid, "error", err)
	}
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
