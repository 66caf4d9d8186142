package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/advisory"
	"github.com/mleventi/wheelhouse/internal/modules/reconciliation"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "wheelhouse",
	})
}

// --- Advisory ---

type advisoryRunRequest struct {
	DryRun          bool     `json:"dry_run"`
	PriorityFloor   string   `json:"priority_floor"`
	DefaultPremium  *float64 `json:"default_premium"`
	ProfitThreshold *float64 `json:"profit_threshold"`
}

func (s *Server) handleAdvisoryRun(w http.ResponseWriter, r *http.Request) {
	var req advisoryRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	floor := domain.Priority(req.PriorityFloor)
	if req.PriorityFloor != "" && !floor.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid priority_floor")
		return
	}

	report, err := s.container.AdvisoryService.Run(r.Context(), advisory.RunOptions{
		DryRun:          req.DryRun,
		PriorityFloor:   floor,
		DefaultPremium:  req.DefaultPremium,
		ProfitThreshold: req.ProfitThreshold,
	})
	if errors.Is(err, advisory.ErrRunInProgress) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Advisory run failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", time.Now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	snaps, err := s.container.SnapshotRepo.GetByDate(date)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":            date.Format("2006-01-02"),
		"recommendations": snaps,
	})
}

func (s *Server) handleLatestRecommendations(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.container.SnapshotRepo.LatestPerStrategy()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"recommendations": snaps})
}

func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	snap, err := s.container.SnapshotRepo.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		s.writeError(w, http.StatusNotFound, "recommendation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUpdateRecommendationStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.container.SnapshotRepo.UpdateStatus(chi.URLParam(r, "id"), domain.SnapshotStatus(req.Status))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) handleExcludeRecommendation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		s.writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	if err := s.container.SnapshotRepo.Exclude(chi.URLParam(r, "id"), req.Reason, time.Now()); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"excluded": true})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	configs, err := s.container.StrategyConfigs.All()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type strategyView struct {
		Type     string                 `json:"type"`
		Category domain.Category        `json:"category"`
		Defaults map[string]interface{} `json:"default_parameters"`
		Config   *domain.StrategyConfig `json:"config,omitempty"`
	}

	var views []strategyView
	for _, strat := range s.container.StrategyRegistry.All() {
		views = append(views, strategyView{
			Type:     strat.Type(),
			Category: strat.Category(),
			Defaults: strat.DefaultParameters(),
			Config:   configs[strat.Type()],
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"strategies": views})
}

func (s *Server) handleUpsertStrategyConfig(w http.ResponseWriter, r *http.Request) {
	strategyType := chi.URLParam(r, "type")
	if _, err := s.container.StrategyRegistry.Get(strategyType); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var cfg domain.StrategyConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.StrategyType = strategyType

	if err := s.container.StrategyConfigs.Upsert(cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleThrottleStatus(w http.ResponseWriter, r *http.Request) {
	strategyType := chi.URLParam(r, "strategy")
	sent, err := s.container.ThrottleRepo.SentThisWeek(strategyType, time.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategy":       strategyType,
		"sent_this_week": sent,
	})
}

// --- Reconciliation ---

func (s *Server) handleReconcileRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	now := time.Now()
	date := now
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	summary, matches, err := s.container.ReconciliationService.Reconcile(date, now)
	if err != nil {
		s.log.Error().Err(err).Msg("Reconciliation failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"matches": matches,
	})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", time.Now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	includeSuperseded := r.URL.Query().Get("include_superseded") == "true"

	matches, err := s.container.MatchRepo.GetByDate(date.Format("2006-01-02"), includeSuperseded)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"matches": matches,
	})
}

func (s *Server) handleReviewMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.container.MatchRepo.MarkReviewed(chi.URLParam(r, "id"), time.Now()); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"reviewed": true})
}

func (s *Server) handleExcludeMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		s.writeError(w, http.StatusBadRequest, "reason is required")
		return
	}
	if err := s.container.MatchRepo.Exclude(chi.URLParam(r, "id"), req.Reason, time.Now()); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"excluded": true})
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	if since == "" {
		since = "1970-01-01"
	} else if _, err := time.Parse("2006-01-02", since); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid since, expected YYYY-MM-DD")
		return
	}

	matches, err := s.container.MatchRepo.ActiveSince(since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"epochs": reconciliation.SummarizeEpochs(matches),
	})
}

func (s *Server) handleAlgorithmChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.container.AlgorithmLog.Changes()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	current, err := s.container.AlgorithmLog.CurrentVersion()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_version": current,
		"changes":         changes,
	})
}

func (s *Server) handleRecordAlgorithmChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Description == "" {
		s.writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	version, err := s.container.AlgorithmLog.RecordChange(req.Description, time.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"new_version": version})
}

// --- Executions ---

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	execs, err := s.container.ExecutionRepo.ListRecent(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"executions": execs})
}

type executionRequest struct {
	OrderID    string  `json:"order_id"`
	Symbol     string  `json:"symbol"`
	OptionType string  `json:"option_type"`
	Side       string  `json:"side"`
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"`
	Quantity   int     `json:"quantity"`
	Premium    float64 `json:"premium"`
	ExecutedAt string  `json:"executed_at"` // RFC 3339
	Source     string  `json:"source"`
}

func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.Symbol == "" || req.Strike <= 0 {
		s.writeError(w, http.StatusBadRequest, "order_id, symbol, and a positive strike are required")
		return
	}
	optionType := domain.OptionType(req.OptionType)
	if optionType != domain.OptionTypeCall && optionType != domain.OptionTypePut {
		s.writeError(w, http.StatusBadRequest, "option_type must be call or put")
		return
	}

	executedAt := time.Now()
	if req.ExecutedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExecutedAt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid executed_at, expected RFC 3339")
			return
		}
		executedAt = parsed
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}

	err := s.container.ExecutionRepo.Create(domain.OptionExecution{
		OrderID:    req.OrderID,
		Symbol:     req.Symbol,
		OptionType: optionType,
		Side:       req.Side,
		Strike:     req.Strike,
		Expiration: req.Expiration,
		Quantity:   req.Quantity,
		Premium:    req.Premium,
		ExecutedAt: executedAt,
		Source:     source,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]bool{"created": true})
}

// --- Portfolio ---

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.container.PortfolioRepo.Positions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}

func (s *Server) handleUpsertPosition(w http.ResponseWriter, r *http.Request) {
	var p domain.Position
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if err := s.container.PortfolioRepo.UpsertPosition(p); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListOptionPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.container.PortfolioRepo.OptionPositions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"option_positions": positions})
}

func (s *Server) handleUpsertOptionPosition(w http.ResponseWriter, r *http.Request) {
	var p domain.OptionPosition
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.ID == 0 && (p.Symbol == "" || p.Strike <= 0) {
		s.writeError(w, http.StatusBadRequest, "symbol and a positive strike are required")
		return
	}

	id, err := s.container.PortfolioRepo.UpsertOptionPosition(p)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleCloseOptionPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.container.PortfolioRepo.CloseOptionPosition(id); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

func (s *Server) handleSetCashBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
		Reserved float64 `json:"reserved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Currency == "" {
		s.writeError(w, http.StatusBadRequest, "currency is required")
		return
	}
	if err := s.container.PortfolioRepo.SetCashBalance(req.Currency, req.Amount, req.Reserved); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// --- Backups ---

func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if s.container.BackupService == nil {
		s.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}
	if err := s.container.BackupService.CreateAndUpload(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"uploaded": true})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if s.container.BackupService == nil {
		s.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}
	backups, err := s.container.BackupService.ListBackups(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// --- Helpers ---

func parseDateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return time.ParseInLocation("2006-01-02", v, time.Local)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
