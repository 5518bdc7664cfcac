// Package fsdev is an in-memory feature store server for local development
// and tests. It speaks the same REST API the pipeline's client expects from
// the real store, including statistics computation.
package fsdev

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecomfp/pkg/contracts/featurestore"
)

type group struct {
	featurestore.GroupResponse
	columns      []string
	rows         []featurestore.FeatureRow
	descriptions map[string]string
	stats        *featurestore.Statistics
}

// Server holds all feature groups in memory, keyed by project, name and
// version. Safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	groups map[string]*group
	apiKey string
}

// NewServer creates an empty store. A non-empty apiKey makes the API
// require a matching X-API-Key header.
func NewServer(apiKey string) *Server {
	return &Server{
		groups: make(map[string]*group),
		apiKey: apiKey,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/projects/{project}/feature-groups", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(s.requireAPIKey)
		}
		r.Post("/", s.handleCreateGroup)
		r.Route("/{name}/versions/{version}", func(r chi.Router) {
			r.Get("/", s.handleGetGroup)
			r.Post("/rows", s.handleInsertRows)
			r.Put("/features/{feature}", s.handleUpdateFeature)
			r.Post("/statistics", s.handleComputeStatistics)
			r.Get("/statistics", s.handleGetStatistics)
		})
	})

	return r
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.apiKey {
			renderError(w, r, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req featurestore.CreateGroupRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Version < 1 {
		renderError(w, r, http.StatusBadRequest, "name and a positive version are required")
		return
	}

	key := groupKey(chi.URLParam(r, "project"), req.Name, req.Version)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.groups[key]; ok {
		render.JSON(w, r, existing.GroupResponse)
		return
	}

	g := &group{
		GroupResponse: featurestore.GroupResponse{
			ID:            uuid.NewString(),
			Name:          req.Name,
			Version:       req.Version,
			Description:   req.Description,
			PrimaryKey:    req.PrimaryKey,
			EventTime:     req.EventTime,
			OnlineEnabled: req.OnlineEnabled,
			CreatedAt:     time.Now().UTC(),
		},
		descriptions: make(map[string]string),
	}
	s.groups[key] = g

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, g.GroupResponse)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.lookup(r)
	if !ok {
		renderError(w, r, http.StatusNotFound, "feature group not found")
		return
	}
	render.JSON(w, r, g.GroupResponse)
}

func (s *Server) handleInsertRows(w http.ResponseWriter, r *http.Request) {
	var req featurestore.InsertRowsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.lookup(r)
	if !ok {
		renderError(w, r, http.StatusNotFound, "feature group not found")
		return
	}

	if req.Overwrite {
		g.rows = nil
	}
	g.columns = req.Columns
	g.rows = append(g.rows, req.Rows...)
	g.RowCount = len(g.rows)
	g.stats = nil

	render.JSON(w, r, featurestore.InsertRowsResponse{
		Inserted: len(req.Rows),
		RowCount: g.RowCount,
	})
}

func (s *Server) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	var req featurestore.UpdateFeatureRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	feature := chi.URLParam(r, "feature")

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.lookup(r)
	if !ok {
		renderError(w, r, http.StatusNotFound, "feature group not found")
		return
	}
	if !contains(g.columns, feature) {
		renderError(w, r, http.StatusNotFound, fmt.Sprintf("feature %q not found", feature))
		return
	}

	g.descriptions[feature] = req.Description
	render.JSON(w, r, map[string]string{"name": feature, "description": req.Description})
}

func (s *Server) handleComputeStatistics(w http.ResponseWriter, r *http.Request) {
	var req featurestore.StatisticsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.lookup(r)
	if !ok {
		renderError(w, r, http.StatusNotFound, "feature group not found")
		return
	}

	g.stats = computeStatistics(g.rows, req)
	render.JSON(w, r, g.stats)
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.lookup(r)
	if !ok {
		renderError(w, r, http.StatusNotFound, "feature group not found")
		return
	}
	if g.stats == nil {
		renderError(w, r, http.StatusNotFound, "statistics have not been computed")
		return
	}
	render.JSON(w, r, g.stats)
}

// lookup must be called with the mutex held.
func (s *Server) lookup(r *http.Request) (*group, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		return nil, false
	}
	g, ok := s.groups[groupKey(chi.URLParam(r, "project"), chi.URLParam(r, "name"), version)]
	return g, ok
}

func groupKey(project, name string, version int) string {
	return fmt.Sprintf("%s/%s/%d", project, name, version)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, featurestore.ErrorResponse{Error: message})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
