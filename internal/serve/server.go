// Package serve exposes the cleaned datasets and computed class breaks
// over a JSON HTTP API for the dashboard frontend.
package serve

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/model"
	"github.com/afrimetrics/atlas-cli/internal/registry"
	"github.com/afrimetrics/atlas-cli/internal/store"
)

// Server routes API requests to the configured store.
type Server struct {
	store  store.Store
	cities *registry.CityIndex
}

// Option configures optional server features.
type Option func(*Server)

// WithCities enables the city endpoints.
func WithCities(ci *registry.CityIndex) Option {
	return func(s *Server) { s.cities = ci }
}

// NewServer wires a Server around the given store.
func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with middleware and all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/countries", s.handleListCountries)
		r.Get("/countries/{iso3}", s.handleGetCountry)
		r.Get("/countries/{iso3}/cities", s.handleCities)
		r.Get("/indicators/{code}/countries/{iso3}", s.handleIndicatorSeries)
		r.Get("/disasters", s.handleListDisasters)
		r.Get("/flood/{iso3}", s.handleFloodSeries)
		r.Get("/breaks/{dataset}", s.handleListBreaks)
		r.Get("/breaks/{dataset}/{iso3}", s.handleGetBreaks)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	countries := registry.All()
	if region := r.URL.Query().Get("region"); region != "" {
		members, err := registry.RegionMembers(region)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		keep := make(map[string]bool, len(members))
		for _, m := range members {
			keep[m] = true
		}
		filtered := countries[:0:0]
		for _, c := range countries {
			if keep[c.ISO3] {
				filtered = append(filtered, c)
			}
		}
		countries = filtered
	}
	writeJSON(w, http.StatusOK, countries)
}

func (s *Server) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	iso3 := strings.ToUpper(chi.URLParam(r, "iso3"))
	c, err := registry.Lookup(iso3)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	if s.cities == nil {
		writeError(w, http.StatusNotFound, eris.New("city index not loaded"))
		return
	}
	iso3 := strings.ToUpper(chi.URLParam(r, "iso3"))
	if !registry.IsSubSaharan(iso3) {
		writeError(w, http.StatusNotFound, eris.Errorf("unknown country %s", iso3))
		return
	}
	limit := queryInt(r, "limit", 10)
	writeJSON(w, http.StatusOK, s.cities.TopCities(iso3, limit))
}

func (s *Server) handleIndicatorSeries(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	iso3 := strings.ToUpper(chi.URLParam(r, "iso3"))

	series, err := s.store.IndicatorSeries(r.Context(), code, iso3)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if series == nil {
		series = []model.IndicatorObservation{}
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleListDisasters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EventFilter{
		ISO3:         strings.ToUpper(q.Get("iso3")),
		DisasterType: q.Get("type"),
		FromYear:     queryInt(r, "from", 0),
		ToYear:       queryInt(r, "to", 0),
		Limit:        queryInt(r, "limit", 0),
	}

	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []model.DisasterEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleFloodSeries(w http.ResponseWriter, r *http.Request) {
	iso3 := strings.ToUpper(chi.URLParam(r, "iso3"))

	rows, err := s.store.FloodSeries(r.Context(), iso3)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []model.FloodExposure{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListBreaks(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	recs, err := s.store.ListBreaks(r.Context(), dataset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []model.BreaksRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetBreaks(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	iso3 := strings.ToUpper(chi.URLParam(r, "iso3"))
	method := r.URL.Query().Get("method")
	if method == "" {
		method = "hybrid"
	}
	classes := queryInt(r, "classes", 5)

	rec, err := s.store.GetBreaks(r.Context(), dataset, iso3, method, classes)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:  model.RunStatus(q.Get("status")),
		Dataset: q.Get("dataset"),
		Limit:   queryInt(r, "limit", 0),
		Offset:  queryInt(r, "offset", 0),
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
