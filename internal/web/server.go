// Package web is the HTTP presentation glue over the counter service. It
// owns no state of its own: every read and write goes through the service,
// and the websocket stream republishes the stores' change feeds.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nuggetcore/internal/counter"
	"nuggetcore/internal/store"
	"nuggetcore/pkg/domain"
)

// sessionCookie carries the opaque session token identifying a user.
const sessionCookie = "uid"

// Server routes HTTP and websocket traffic to the counter service.
type Server struct {
	router   *mux.Router
	svc      *counter.Service
	exporter *counter.SnapshotExporter
	hub      *hub
	upgrader websocket.Upgrader
	log      *zap.Logger
	cancels  []func()
}

// streamEvent is the payload pushed to websocket clients on every committed
// change relevant to their team.
type streamEvent struct {
	Type    string        `json:"type"`
	Team    *domain.Team  `json:"team,omitempty"`
	User    *domain.User  `json:"user,omitempty"`
	Members []domain.User `json:"members,omitempty"`
}

// NewServer wires routes and subscribes the stream hub to both stores.
// Pass a nil gatherer to disable the /metrics endpoint.
func NewServer(svc *counter.Service, teams *store.Store[domain.Team], users *store.Store[domain.User], exporter *counter.SnapshotExporter, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		router:   mux.NewRouter(),
		svc:      svc,
		exporter: exporter,
		hub:      newHub(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      log,
	}
	s.cancels = append(s.cancels,
		teams.OnChange(s.onTeamChange),
		users.OnChange(s.onUserChange))
	s.routes(gatherer)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close detaches the stream hub from the store change feeds.
func (s *Server) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.Use(s.logRequests)
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/teams/{team}/join", s.handleJoin).Methods(http.MethodPost)
	api.HandleFunc("/teams/{team}/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/teams/{team}", s.handleTeam).Methods(http.MethodGet)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/me/nom", s.handleNom).Methods(http.MethodPost)
	api.HandleFunc("/me/undo", s.handleUndo).Methods(http.MethodPost)
	api.HandleFunc("/admin/reconcile", s.handleReconcile).Methods(http.MethodPost)
	api.HandleFunc("/admin/snapshot", s.handleSnapshot).Methods(http.MethodPost)
	api.HandleFunc("/admin/snapshots", s.handleListSnapshots).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["team"]
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.svc.JoinTeam(r.Context(), teamID, body.Name)
	if err != nil {
		var invalid domain.ValidationError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    user.ID,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["team"]
	team, err := s.svc.GetTeam(teamID)
	if err != nil {
		var nf domain.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, "team not found; join it to create it")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team":    team,
		"members": s.svc.ListUsersByTeam(teamID),
	})
}

// currentUser resolves the session cookie to a user record. A missing or
// stale token means the caller has to re-run the join flow.
func (s *Server) currentUser(r *http.Request) (domain.User, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return domain.User{}, false
	}
	user, err := s.svc.GetUser(cookie.Value)
	if err != nil {
		return domain.User{}, false
	}
	return user, true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "please join a team")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleNom(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "please join a team")
		return
	}
	updated, err := s.svc.Increment(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "please join a team")
		return
	}
	updated, err := s.svc.Decrement(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Reconcile(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "snapshot store not configured")
		return
	}
	info, err := s.exporter.Export(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "snapshot store not configured")
		return
	}
	infos, err := s.exporter.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["team"]
	team, err := s.svc.GetTeam(teamID)
	if err != nil {
		writeError(w, http.StatusNotFound, "team not found; join it to create it")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newWSClient(conn, s.log)
	// Seed the client with the current team state before live events.
	if payload, err := json.Marshal(streamEvent{Type: "team", Team: &team, Members: s.svc.ListUsersByTeam(teamID)}); err == nil {
		if err := client.Send(payload); err != nil {
			return
		}
	}
	s.hub.register(teamID, client)
	defer s.hub.unregister(teamID, client)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) onTeamChange(ev domain.Event[domain.Team]) {
	team := ev.After
	payload, err := json.Marshal(streamEvent{Type: "team", Team: &team, Members: s.svc.ListUsersByTeam(team.ID)})
	if err != nil {
		return
	}
	s.hub.broadcast(team.ID, payload)
}

func (s *Server) onUserChange(ev domain.Event[domain.User]) {
	user := ev.After
	payload, err := json.Marshal(streamEvent{Type: "user", User: &user})
	if err != nil {
		return
	}
	s.hub.broadcast(user.TeamID, payload)
	if ev.Action == domain.ActionUpdate && ev.Before.TeamID != user.TeamID {
		s.hub.broadcast(ev.Before.TeamID, payload)
	}
}
