// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/user/postclaw/internal/flow"
	"github.com/user/postclaw/internal/posting"
	"github.com/user/postclaw/internal/types"
)

// Server is a lightweight read-only HTTP handler for debug endpoints.
type Server struct {
	sessions types.SessionStore
	posts    *posting.Provisioner
	mux      *http.ServeMux
}

// NewServer creates a new debug Server over the given stores.
func NewServer(sessions types.SessionStore, posts *posting.Provisioner) *Server {
	s := &Server{
		sessions: sessions,
		posts:    posts,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("GET /api/sessions/", s.handleAPISessionDetail)
	s.mux.HandleFunc("GET /api/posts", s.handleAPIPosts)
	s.mux.HandleFunc("GET /", s.handleIndex)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type sessionResponse struct {
	ActorID       string   `json:"actor_id"`
	State         string   `json:"state"`
	CreatedAt     string   `json:"created_at"`
	LastActivity  string   `json:"last_activity"`
	Date          string   `json:"date,omitempty"`
	Category      string   `json:"category,omitempty"`
	ResolvedLabel string   `json:"resolved_label,omitempty"`
	PostDir       string   `json:"post_dir,omitempty"`
	ArtifactCount int      `json:"artifact_count"`
	MissingFields []string `json:"missing_fields"`
}

func toSessionResponse(sess *types.Session) sessionResponse {
	return sessionResponse{
		ActorID:       string(sess.ActorID),
		State:         string(sess.State),
		CreatedAt:     sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastActivity:  sess.LastActivity.Format("2006-01-02T15:04:05Z07:00"),
		Date:          sess.Date,
		Category:      sess.Category,
		ResolvedLabel: sess.ResolvedLabel,
		PostDir:       sess.PostDir,
		ArtifactCount: len(sess.Artifacts),
		MissingFields: flow.MissingFields(sess),
	}
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, toSessionResponse(sess))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity > result[j].LastActivity
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type sessionDetailResponse struct {
	sessionResponse
	Log []*posting.LogEntry `json:"log"`
}

func (s *Server) handleAPISessionDetail(w http.ResponseWriter, r *http.Request) {
	actor := types.ActorID(strings.TrimPrefix(r.URL.Path, "/api/sessions/"))
	if actor == "" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	sess, _, err := s.sessions.Get(r.Context(), actor)
	if err != nil {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	detail := sessionDetailResponse{sessionResponse: toSessionResponse(sess)}
	if entries, err := s.posts.TailLog(sess, limit); err == nil {
		detail.Log = entries
	} else {
		slog.Warn("tail posting log failed", "actor_id", string(actor), "error", err)
	}
	if detail.Log == nil {
		detail.Log = []*posting.LogEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

func (s *Server) handleAPIPosts(w http.ResponseWriter, r *http.Request) {
	names, err := s.posts.List()
	if err != nil {
		slog.Error("list posts failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"posts": names})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body>debug ui placeholder</body></html>"))
}
