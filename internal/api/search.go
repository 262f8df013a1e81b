// File path: internal/api/search.go
package api

import (
	"net/http"
	"strings"

	"github.com/corpusworks/knowledgehub/internal/kb"
)

type searchRequest struct {
	Query         string   `json:"query"`
	DocIDs        []string `json:"doc_ids,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinSimilarity float64  `json:"min_similarity,omitempty"`
}

type searchResponse struct {
	Results []kb.ScoredChunk `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search payload: %v", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusOK, searchResponse{Results: []kb.ScoredChunk{}})
		return
	}
	results, err := s.orch.Engine().Search(r.Context(), req.Query, req.DocIDs, req.TopK, req.MinSimilarity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed: %v", err)
		return
	}
	if results == nil {
		results = []kb.ScoredChunk{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}
