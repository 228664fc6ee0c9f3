package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/infra/logging"
	red "freshdesk-simulator/internal/infra/redis"
	"freshdesk-simulator/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Options tunes the control surface. Zero values disable auth and rate limiting.
type Options struct {
	APIKey         string
	Limiter        Limiter
	KeyPrefix      string
	WriteLimit     int // registrations per client per WriteWindow
	WriteWindow    time.Duration
	RequestTimeout time.Duration
}

// Server exposes the company lifecycle over HTTP.
type Server struct {
	companies usecase.CompanyUseCase
	opts      Options
	log       *zerolog.Logger
}

func NewServer(companies usecase.CompanyUseCase, opts Options, logger *zerolog.Logger) *Server {
	if opts.WriteWindow <= 0 {
		opts.WriteWindow = time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{companies: companies, opts: opts, log: &l}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	limit := RateLimit(s.opts.Limiter, func(client string) string {
		return red.ConfigWriteKey(s.opts.KeyPrefix, client)
	}, s.opts.WriteLimit, s.opts.WriteWindow, s.log)

	r.Route("/freshdesk", func(r chi.Router) {
		r.Use(APIKeyAuth(s.opts.APIKey), Timeout(s.opts.RequestTimeout))
		r.With(limit).Post("/config", s.createConfig)
		r.Get("/config/{companyName}", s.getConfig)
		r.Get("/configs", s.listConfigs)
		r.Patch("/config/{companyId}", s.updateConfig)
		r.Delete("/company/{companyId}", s.removeCompany)
	})
	return r
}

func (s *Server) createConfig(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreateCompanyInput
	if !decodeBody(w, r, &in) {
		return
	}
	cfg, err := s.companies.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.companies.GetByName(r.Context(), chi.URLParam(r, "companyName"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) listConfigs(w http.ResponseWriter, r *http.Request) {
	cfgs, err := s.companies.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cfgs == nil {
		cfgs = []*model.CompanyConfig{}
	}
	writeJSON(w, http.StatusOK, cfgs)
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var in usecase.UpdateCompanyInput
	if !decodeBody(w, r, &in) {
		return
	}
	cfg, err := s.companies.Update(r.Context(), chi.URLParam(r, "companyId"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) removeCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "companyId")
	purged, err := s.companies.Remove(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Company with ID %s removed successfully", id),
		"purgedJobs": purged,
	})
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidDomain),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTicketingAPI),
		errors.Is(err, domain.ErrGeneration),
		errors.Is(err, domain.ErrMalformedGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
