// File path: internal/api/server.go
package api

import (
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/data/orchestrator"
)

// Server exposes the knowledge hub over HTTP. Routing, upload plumbing, and
// deadlines live here; all domain behavior stays in the core packages.
type Server struct {
	orch   *orchestrator.Orchestrator
	router chi.Router
}

// NewServer builds the HTTP surface over an orchestrator.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	s := &Server{orch: orch}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleIngestDocument)
			r.Post("/batch", s.handleIngestBatch)
			r.Delete("/{docID}", s.handleDeleteDocument)
			r.Post("/{docID}/recommendation", s.handleRecommendation)
		})

		r.Post("/search", s.handleSearch)

		r.Route("/knowledge-bases", func(r chi.Router) {
			r.Get("/", s.handleListKnowledgeBases)
			r.Post("/", s.handleCreateKnowledgeBase)
			r.Route("/{kbID}", func(r chi.Router) {
				r.Get("/", s.handleGetKnowledgeBase)
				r.Patch("/", s.handleUpdateKnowledgeBase)
				r.Delete("/", s.handleDeleteKnowledgeBase)
				r.Get("/documents", s.handleKnowledgeBaseDocuments)
				r.Post("/documents", s.handleAddDocuments)
				r.Delete("/documents", s.handleRemoveDocuments)
			})
		})

		r.Get("/logs", s.handleLogs)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"chunks": s.orch.Index().Count(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": common.LogEntries()})
}
