// File path: internal/api/knowledgebases.go
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corpusworks/knowledgehub/internal/registry"
)

type createKnowledgeBaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

type updateKnowledgeBaseRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

type documentSetRequest struct {
	DocIDs []string `json:"doc_ids"`
}

func (s *Server) handleListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	records, err := s.orch.Registry().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list knowledge bases: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"knowledge_bases": records})
}

func (s *Server) handleCreateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req createKnowledgeBaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge base payload: %v", err)
		return
	}
	record, err := s.orch.Registry().Create(r.Context(), req.Name, req.Description, req.Color)
	if err != nil {
		if errors.Is(err, registry.ErrNameTaken) {
			writeError(w, http.StatusConflict, "%v", err)
			return
		}
		writeError(w, http.StatusBadRequest, "create knowledge base: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	record, err := s.orch.Registry().Get(r.Context(), chi.URLParam(r, "kbID"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUpdateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req updateKnowledgeBaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload: %v", err)
		return
	}
	record, err := s.orch.Registry().Update(r.Context(), chi.URLParam(r, "kbID"), req.Name, req.Description, req.Color)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	if err := s.orch.Registry().Delete(r.Context(), kbID); err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": kbID, "deleted": true})
}

func (s *Server) handleKnowledgeBaseDocuments(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	docs, exists, err := s.orch.Registry().DocumentsOf(r.Context(), kbID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list documents: %v", err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "knowledge base %s not found", kbID)
		return
	}
	if docs == nil {
		docs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_ids": docs})
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentSetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document list: %v", err)
		return
	}
	record, err := s.orch.Registry().AddDocuments(r.Context(), chi.URLParam(r, "kbID"), req.DocIDs)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRemoveDocuments(w http.ResponseWriter, r *http.Request) {
	var req documentSetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document list: %v", err)
		return
	}
	record, err := s.orch.Registry().RemoveDocuments(r.Context(), chi.URLParam(r, "kbID"), req.DocIDs)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "%v", err)
	case errors.Is(err, registry.ErrNameTaken):
		writeError(w, http.StatusConflict, "%v", err)
	case errors.Is(err, registry.ErrUnknownDocument):
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
	default:
		writeError(w, http.StatusInternalServerError, "%v", err)
	}
}
