package archive

import (
	"context"
	"errors"
)

// 归档层通用错误。
var (
	ErrRoundNotFound = errors.New("归档中不存在该轮次")
	ErrRoundConflict = errors.New("轮次已归档")
)

// Record 是一轮议事的归档快照。
type Record struct {
	ThoughtHash   string `json:"thought_hash"`
	ParticipantID string `json:"participant_id"`
	Message       string `json:"message"`
	Synthesis     string `json:"synthesis"`
	Quality       string `json:"quality"`
	WorkUnits     int64  `json:"work_units"`
	SpokeCount    int    `json:"spoke_count"`
	SilentCount   int    `json:"silent_count"`
	FailedCount   int    `json:"failed_count"`
	DurationMS    int64  `json:"duration_ms"`
	CreatedAt     int64  `json:"created_at"`
}

// Repository 抽象了轮次归档的持久化接口。
type Repository interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, thoughtHash string) (*Record, error)
	List(ctx context.Context, limit int) ([]*Record, error)
	ListByParticipant(ctx context.Context, participantID string, limit int) ([]*Record, error)
	Close() error
}
