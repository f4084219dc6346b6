// Package api provides the HTTP API for observing and steering a session.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/tileworld/internal/autotile"
	"github.com/talgya/tileworld/internal/engine"
	"github.com/talgya/tileworld/internal/persistence"
	"github.com/talgya/tileworld/internal/world"
)

// hidden replaces fogged values in responses.
const hidden = "???"

// Server serves one session over HTTP.
type Server struct {
	Session  *engine.Session
	Eng      *engine.Engine  // Optional, for tick counts
	DB       *persistence.DB // Optional, for archived events
	WorldID  string
	Seed     int64
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	PathPerMinute int // Path preview rate limit per IP, 0 = unlimited
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	pathHandler := s.handlePath
	if s.PathPerMinute > 0 {
		pathHandler = RateLimitMiddleware(NewRateLimiter(s.PathPerMinute, time.Minute), s.handlePath)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/map", s.handleMap)
		r.Get("/tile/{x}/{y}", s.handleTile)
		r.Get("/path", pathHandler)
		r.Get("/events", s.handleEvents)

		r.Post("/travel", s.adminOnly(s.handleTravel))
		r.Post("/cancel", s.adminOnly(s.handleCancel))
		r.Post("/fog", s.adminOnly(s.handleFog))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// Start serves on addr in a goroutine. Shut down with the returned server.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// requestLogger logs each request with slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			respondError(w, http.StatusForbidden, "admin endpoints disabled (no TILEWORLD_ADMIN_KEY set)")
			return
		}
		if !s.checkBearerToken(r) {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

type statusResponse struct {
	WorldID string `json:"world_id"`
	Seed    int64  `json:"seed"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Clock   string `json:"clock"`
	Ticks   uint64 `json:"ticks"`
	engine.Status
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{WorldID: s.WorldID, Seed: s.Seed, Status: s.Session.Status()}
	s.Session.View(func(g *world.Grid, _ *autotile.Layer, _ bool) {
		resp.Width, resp.Height = g.Width(), g.Height()
	})
	resp.Clock = engine.DayClock(resp.Day)
	if s.Eng != nil {
		resp.Ticks = s.Eng.Ticks()
	}
	respondJSON(w, http.StatusOK, resp)
}

type mapCell struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Biome    string `json:"biome"`
	Variant  string `json:"variant"`
	Rotation int    `json:"rotation"`
	POI      string `json:"poi,omitempty"`
	Seen     bool   `json:"seen"`
	Occupied bool   `json:"occupied,omitempty"`
}

type mapResponse struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Fog    bool      `json:"fog"`
	Cells  []mapCell `json:"cells"`
}

// handleMap returns every cell row-major. Fogged cells hide biome, variant
// and POI.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var resp mapResponse
	s.Session.View(func(g *world.Grid, tiles *autotile.Layer, fog bool) {
		resp = mapResponse{Width: g.Width(), Height: g.Height(), Fog: fog, Cells: make([]mapCell, 0, g.CellCount())}
		g.Each(func(c world.Coord, cell world.Cell) {
			mc := mapCell{X: c.X, Y: c.Y, Seen: cell.Seen(), Occupied: cell.Occupied()}
			if !engine.Visible(cell, fog) {
				mc.Biome, mc.Variant = hidden, autotile.Empty
				resp.Cells = append(resp.Cells, mc)
				return
			}
			mc.Biome = cell.Biome.String()
			mc.POI = cell.POI
			mc.Variant = autotile.Empty
			if tiles != nil {
				v := tiles.At(c)
				mc.Variant, mc.Rotation = v.Variant, v.Rotation
			}
			resp.Cells = append(resp.Cells, mc)
		})
	})
	respondJSON(w, http.StatusOK, resp)
}

type tileResponse struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Biome     string   `json:"biome"`
	Traversal *float64 `json:"traversal_days"`
	Danger    *float64 `json:"danger"`
	POI       string   `json:"poi,omitempty"`
	Hidden    bool     `json:"hidden"`
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	c, err := coordParams(chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		resp  tileResponse
		found bool
	)
	s.Session.View(func(g *world.Grid, _ *autotile.Layer, fog bool) {
		if !g.InBounds(c) {
			return
		}
		found = true
		cell := g.At(c)
		resp = tileResponse{X: c.X, Y: c.Y}
		if !engine.Visible(cell, fog) {
			resp.Biome, resp.Hidden = hidden, true
			return
		}
		rate, danger := cell.TraversalRate, cell.Resource
		resp.Biome = cell.Biome.String()
		resp.Traversal, resp.Danger = &rate, &danger
		resp.POI = cell.POI
	})
	if !found {
		respondError(w, http.StatusNotFound, "tile out of bounds")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type pathResponse struct {
	Found        bool          `json:"found"`
	Route        []world.Coord `json:"route"`
	TrueCosts    []float64     `json:"true_costs"`
	DisplayCosts []float64     `json:"display_costs"`
	EstimateDays float64       `json:"estimate_days"`
	Danger       float64       `json:"danger"`
	Diverges     bool          `json:"diverges"`
}

// handlePath previews a route from the agent to ?x=&y=.
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := coordParams(q.Get("x"), q.Get("y"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := s.Session.Plan(to)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pathResponse{
		Found:        plan.Found(),
		Route:        plan.Route,
		TrueCosts:    plan.TrueCosts,
		DisplayCosts: plan.DisplayCosts,
		EstimateDays: round1(plan.TotalDisplay()),
		Danger:       round1(plan.Danger),
		Diverges:     plan.Diverged(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	if r.URL.Query().Get("source") == "archive" {
		if s.DB == nil {
			respondError(w, http.StatusServiceUnavailable, "no archive configured")
			return
		}
		events, err := s.DB.RecentEvents(s.WorldID, limit)
		if err != nil {
			slog.Error("read archived events", "error", err)
			respondError(w, http.StatusInternalServerError, "archive read failed")
			return
		}
		respondJSON(w, http.StatusOK, events)
		return
	}
	respondJSON(w, http.StatusOK, s.Session.Events(limit))
}

type travelRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleTravel(w http.ResponseWriter, r *http.Request) {
	var req travelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	plan, err := s.Session.Begin(world.Coord{X: req.X, Y: req.Y})
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	slog.Info("travel started via API", "to", world.Coord{X: req.X, Y: req.Y}, "steps", plan.Steps())
	respondJSON(w, http.StatusAccepted, pathResponse{
		Found:        plan.Found(),
		Route:        plan.Route,
		TrueCosts:    plan.TrueCosts,
		DisplayCosts: plan.DisplayCosts,
		EstimateDays: round1(plan.TotalDisplay()),
		Danger:       round1(plan.Danger),
		Diverges:     plan.Diverged(),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": s.Session.Cancel()})
}

type fogRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleFog(w http.ResponseWriter, r *http.Request) {
	var req fogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.Session.SetFog(req.Enabled)
	slog.Info("fog display changed via API", "enabled", req.Enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"fog": req.Enabled})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotPlaced), errors.Is(err, engine.ErrTravelling):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoRoute):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func coordParams(xs, ys string) (world.Coord, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return world.Coord{}, errors.New("x must be an integer")
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return world.Coord{}, errors.New("y must be an integer")
	}
	return world.Coord{X: x, Y: y}, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// respondError writes an error JSON response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
