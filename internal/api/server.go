package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/archive"
	"Pantheon-Lattice/internal/deliberation"
	"Pantheon-Lattice/internal/economy"
	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/internal/observability/metrics"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/internal/session"
)

// Server 负责暴露 REST 接口，供外部驱动议事与结算。
type Server struct {
	addr          string
	deliberations *deliberation.Service
	disburser     *economy.Disburser
	sessions      *session.Pool
	registry      *actor.Registry
	payments      payment.Client
	rounds        archive.Repository
}

// NewServer 构造 API 服务实例。归档仓库可以为 nil。
func NewServer(
	addr string,
	deliberations *deliberation.Service,
	disburser *economy.Disburser,
	sessions *session.Pool,
	registry *actor.Registry,
	payments payment.Client,
	rounds archive.Repository,
) *Server {
	return &Server{
		addr:          addr,
		deliberations: deliberations,
		disburser:     disburser,
		sessions:      sessions,
		registry:      registry,
		payments:      payments,
		rounds:        rounds,
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回完整路由，便于测试直接挂接。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/deliberations", instrument("deliberations", s.handleDeliberations))
	mux.HandleFunc("/api/v1/deliberations/", instrument("deliberation_detail", s.handleDeliberationDetail))
	mux.HandleFunc("/api/v1/settlements", instrument("settlements", s.handleSettlements))
	mux.HandleFunc("/api/v1/sessions/", instrument("session_detail", s.handleSessionDetail))
	mux.HandleFunc("/api/v1/actors", instrument("actors", s.handleActors))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// DeliberateRequest 是提交一轮议事的请求体。
type DeliberateRequest struct {
	Message        string `json:"message"`
	ParticipantID  string `json:"participant_id"`
	SessionContext string `json:"session_context"`
}

// SettleRequest 是触发会话结算的请求体。
type SettleRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (s *Server) handleDeliberations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateDeliberation(w, r)
	case http.MethodGet:
		s.handleListDeliberations(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateDeliberation(w http.ResponseWriter, r *http.Request) {
	if s.deliberations == nil {
		http.Error(w, "议事服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req DeliberateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	round, err := s.deliberations.Deliberate(r.Context(), req.Message, req.ParticipantID, req.SessionContext)
	if err != nil {
		writeError(w, err)
		return
	}

	outcomeCounts := make(map[string]int, 3)
	for _, outcome := range round.Outcomes {
		outcomeCounts[string(outcome.State)]++
	}
	metrics.ObserveRound(outcomeCounts, round.WorkUnits)

	writeJSON(w, round)
}

func (s *Server) handleListDeliberations(w http.ResponseWriter, r *http.Request) {
	if s.deliberations == nil {
		http.Error(w, "议事服务未初始化", http.StatusServiceUnavailable)
		return
	}
	records, err := s.deliberations.RecentRounds(r.Context(), int64(parseLimit(r, 20)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleDeliberationDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.rounds == nil {
		http.Error(w, "归档未启用", http.StatusNotFound)
		return
	}

	hash := strings.TrimPrefix(r.URL.Path, "/api/v1/deliberations/")
	if hash == "" || strings.Contains(hash, "/") {
		http.Error(w, "thought hash 不能为空", http.StatusBadRequest)
		return
	}

	record, err := s.rounds.Get(r.Context(), hash)
	if err != nil {
		if errors.Is(err, archive.ErrRoundNotFound) {
			http.Error(w, "未找到该轮次", http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, record)
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.disburser == nil {
		http.Error(w, "结算服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	disbursement, err := s.disburser.Settle(r.Context(), req.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ObserveSettlement(string(disbursement.Result.Tier))
	writeJSON(w, disbursement)
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.sessions == nil {
		http.Error(w, "会话池未初始化", http.StatusServiceUnavailable)
		return
	}

	participantID := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if participantID == "" || strings.Contains(participantID, "/") {
		http.Error(w, "参与者 id 不能为空", http.StatusBadRequest)
		return
	}

	snap, err := s.sessions.Read(r.Context(), participantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.registry == nil {
		http.Error(w, "人格注册表未初始化", http.StatusServiceUnavailable)
		return
	}

	type actorView struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Title   string `json:"title,omitempty"`
		Lens    string `json:"lens,omitempty"`
		Balance int64  `json:"balance"`
	}

	balanceOf := func(address string) int64 {
		if s.payments == nil || address == "" {
			return 0
		}
		balance, err := s.payments.Balance(r.Context(), address)
		if err != nil {
			return 0
		}
		return balance
	}

	members := s.registry.List()
	views := make([]actorView, 0, len(members))
	for _, member := range members {
		views = append(views, actorView{
			ID:      member.ID,
			Name:    member.Name,
			Title:   member.Title,
			Lens:    member.Lens,
			Balance: balanceOf(member.Address),
		})
	}

	treasury := s.registry.Treasury()
	writeJSON(w, map[string]any{
		"actors": views,
		"treasury": actorView{
			ID:      treasury.ID,
			Name:    treasury.Name,
			Balance: balanceOf(treasury.Address),
		},
	})
}

func parseLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError 根据错误码映射 HTTP 状态。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound, xerrors.CodeActorUnknown:
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

// instrument 记录请求量与时延指标。
func instrument(handler string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.ObserveHTTPRequest(handler, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
