package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
	"github.com/radieske/lottery-3d-platform-poc/internal/stats-service/dto"
)

const dateLayout = "2006-01-02"

// ReadRepo agrega bilhetes por janela de dias.
type ReadRepo interface {
	Summary(ctx context.Context, startDate, endDate string) (dto.Summary, error)
}

// SummaryCache evita recalcular janelas consultadas com frequência.
type SummaryCache interface {
	Get(ctx context.Context, startDate, endDate string, dst any) (bool, error)
	Set(ctx context.Context, startDate, endDate string, v any, ttl time.Duration) error
}

type Server struct {
	log   *zap.Logger
	repo  ReadRepo
	cache SummaryCache // pode ser nil
	loc   *time.Location

	clock func() time.Time
}

func NewServer(log *zap.Logger, repo ReadRepo, cache SummaryCache, loc *time.Location) *Server {
	return &Server{log: log, repo: repo, cache: cache, loc: loc, clock: time.Now}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/lottery/stats/today", s.today)
	r.Get("/lottery/stats/date-range", s.dateRange)
	return r
}

// today agrega o dia corrente [00:00, 24:00) no fuso do deployment.
func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	day := s.clock().In(s.loc).Format(dateLayout)
	s.serveSummary(w, r, day, day)
}

// dateRange agrega a janela [start_date, end_date], dias inclusos.
func (s *Server) dateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startDate := q.Get("start_date")
	endDate := q.Get("end_date")

	ve := lottery.NewValidationError()
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		ve.Addf("start_date", "want YYYY-MM-DD, got %q", startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		ve.Addf("end_date", "want YYYY-MM-DD, got %q", endDate)
	}
	if !ve.HasErrors() && start.After(end) {
		ve.Addf("start_date", "start_date %s is after end_date %s", startDate, endDate)
	}
	if ve.HasErrors() {
		s.writeError(w, ve)
		return
	}

	s.serveSummary(w, r, startDate, endDate)
}

func (s *Server) serveSummary(w http.ResponseWriter, r *http.Request, startDate, endDate string) {
	if s.cache != nil {
		var cached dto.Summary
		if ok, _ := s.cache.Get(r.Context(), startDate, endDate, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	sum, err := s.repo.Summary(r.Context(), startDate, endDate)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), startDate, endDate, sum, 30*time.Second); err != nil {
			s.log.Warn("stats cache set", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *lottery.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "validation failed",
			"errors":  ve.Fields,
		})
		return
	}
	var te *lottery.TransientError
	if errors.As(err, &te) {
		s.log.Error("transient failure", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "temporary failure, retry later"})
		return
	}
	s.log.Error("unhandled error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal error"})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
