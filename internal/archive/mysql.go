package archive

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	xerrors "Pantheon-Lattice/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLRepository 使用 MySQL 归档轮次。
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository 创建一个新的 MySQLRepository。
func NewMySQLRepository(dsn string) (*MySQLRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	repo := &MySQLRepository{db: db}
	if err := repo.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *MySQLRepository) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS deliberation_rounds (
        thought_hash VARCHAR(64) PRIMARY KEY,
        participant_id VARCHAR(128) DEFAULT '',
        message TEXT NOT NULL,
        synthesis TEXT NOT NULL,
        quality VARCHAR(32) NOT NULL DEFAULT '',
        work_units BIGINT NOT NULL DEFAULT 0,
        spoke_count INT NOT NULL DEFAULT 0,
        silent_count INT NOT NULL DEFAULT 0,
        failed_count INT NOT NULL DEFAULT 0,
        duration_ms BIGINT NOT NULL DEFAULT 0,
        created_at BIGINT NOT NULL,
        INDEX idx_round_participant (participant_id),
        INDEX idx_round_created (created_at)
)`

	if _, err := r.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 deliberation_rounds 表失败")
	}
	return nil
}

// Save 插入一条归档记录。重复的 thought_hash 返回 ErrRoundConflict。
func (r *MySQLRepository) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	if strings.TrimSpace(record.ThoughtHash) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "thought hash 不能为空")
	}

	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}

	const stmt = `INSERT INTO deliberation_rounds
        (thought_hash, participant_id, message, synthesis, quality, work_units, spoke_count, silent_count, failed_count, duration_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, stmt,
		record.ThoughtHash,
		record.ParticipantID,
		record.Message,
		record.Synthesis,
		record.Quality,
		record.WorkUnits,
		record.SpokeCount,
		record.SilentCount,
		record.FailedCount,
		record.DurationMS,
		record.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrRoundConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入归档记录失败")
	}
	return nil
}

// Get 按 thought hash 查询轮次。
func (r *MySQLRepository) Get(ctx context.Context, thoughtHash string) (*Record, error) {
	const stmt = `SELECT thought_hash, participant_id, message, synthesis, quality, work_units,
        spoke_count, silent_count, failed_count, duration_ms, created_at
        FROM deliberation_rounds WHERE thought_hash = ?`

	record, err := scanRecord(r.db.QueryRowContext(ctx, stmt, thoughtHash))
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	return record, nil
}

// List 返回最近归档的轮次，按时间倒序。
func (r *MySQLRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const stmt = `SELECT thought_hash, participant_id, message, synthesis, quality, work_units,
        spoke_count, silent_count, failed_count, duration_ms, created_at
        FROM deliberation_rounds ORDER BY created_at DESC, thought_hash DESC LIMIT ?`
	return r.queryRecords(ctx, stmt, limit)
}

// ListByParticipant 返回某个参与者最近的轮次。
func (r *MySQLRepository) ListByParticipant(ctx context.Context, participantID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const stmt = `SELECT thought_hash, participant_id, message, synthesis, quality, work_units,
        spoke_count, silent_count, failed_count, duration_ms, created_at
        FROM deliberation_rounds WHERE participant_id = ? ORDER BY created_at DESC, thought_hash DESC LIMIT ?`
	return r.queryRecords(ctx, stmt, participantID, limit)
}

func (r *MySQLRepository) queryRecords(ctx context.Context, stmt string, args ...any) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析归档记录失败")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历归档记录失败")
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	if err := row.Scan(
		&record.ThoughtHash,
		&record.ParticipantID,
		&record.Message,
		&record.Synthesis,
		&record.Quality,
		&record.WorkUnits,
		&record.SpokeCount,
		&record.SilentCount,
		&record.FailedCount,
		&record.DurationMS,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

// Close 关闭数据库连接。
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}
