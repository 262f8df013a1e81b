// File path: internal/api/documents.go
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/retriever"
)

type batchIngestRequest struct {
	Documents []retriever.DocumentInput `json:"documents"`
}

type batchIngestResponse struct {
	Results []retriever.IngestResult `json:"results"`
	Errors  []batchError             `json:"errors,omitempty"`
}

type batchError struct {
	Position int    `json:"position"`
	Error    string `json:"error"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var input retriever.DocumentInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document payload: %v", err)
		return
	}
	if strings.TrimSpace(input.Content) == "" {
		writeError(w, http.StatusBadRequest, "document content required")
		return
	}
	result, err := s.orch.Pipeline().ProcessDocument(r.Context(), input)
	if err != nil {
		common.Logger().Error("api: document ingestion failed", "file", input.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "ingest document: %v", err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyIngested {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchIngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch payload: %v", err)
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "batch requires at least one document")
		return
	}
	results, failures := s.orch.Pipeline().ProcessBatch(r.Context(), req.Documents)
	resp := batchIngestResponse{Results: results}
	for _, failure := range failures {
		resp.Errors = append(resp.Errors, batchError{Position: failure.Position, Error: failure.Err.Error()})
	}
	status := http.StatusCreated
	if len(failures) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": s.orch.Index().Documents()})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	existed, err := s.orch.Index().DeleteByDoc(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete document: %v", err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "document %s not found", docID)
		return
	}
	if err := s.orch.Registry().RemoveDocumentEverywhere(r.Context(), docID); err != nil {
		common.Logger().Error("api: association cleanup failed", "doc", docID, "error", err)
		writeError(w, http.StatusInternalServerError, "clean up associations: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	chunks := s.orch.Index().GetByDoc(docID)
	if len(chunks) == 0 {
		writeError(w, http.StatusNotFound, "document %s not found", docID)
		return
	}
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, chunk.Content)
	}
	filename := chunks[0].Metadata["filename"]
	rec, err := s.orch.Analyzer().Recommend(r.Context(), strings.Join(parts, "\n\n"), filename)
	if err != nil {
		writeError(w, http.StatusBadGateway, "recommendation failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
