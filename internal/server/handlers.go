package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finrag/internal/domain"
)

type ingestRequest struct {
	// Text is the document's already-extracted text; raw PDF/DOCX parsing
	// happens upstream of this service.
	Text   string `json:"text"`
	Source string `json:"source"`
}

type queryHTTPRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type queryHTTPResponse struct {
	Success  bool           `json:"success"`
	Answer   string         `json:"answer,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata *queryMetadata `json:"metadata,omitempty"`
}

type queryMetadata struct {
	SourcesUsed     []string  `json:"sources_used"`
	NumSources      int       `json:"num_sources"`
	RelevanceScores []float64 `json:"relevance_scores"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		s.respondError(w, http.StatusBadRequest, "source is required")
		return
	}

	// Bound concurrent ingestions; a canceled client releases its slot.
	if err := s.ingests.Acquire(r.Context(), 1); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "ingestion canceled while queued")
		return
	}
	defer s.ingests.Release(1)

	s.logger.Debug("ingest request", zap.String("source", req.Source), zap.Int("bytes", len(req.Text)))
	result, err := s.ingest.Ingest(r.Context(), req.Source, req.Text)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("source", req.Source), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrEmptyDocument) {
			status = http.StatusBadRequest
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.logger.Debug("query request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))
	answer, err := s.query.Answer(r.Context(), req.Question, req.TopK)
	if err != nil {
		// Query failures are part of the response contract, not transport
		// errors: the original API shape carries success=false in a 200.
		s.respondJSON(w, http.StatusOK, queryHTTPResponse{Success: false, Error: err.Error()})
		return
	}

	resp := queryHTTPResponse{
		Success: true,
		Answer:  answer.Content,
		Error:   answer.GenerationErr,
		Metadata: &queryMetadata{
			SourcesUsed:     answer.SourcesUsed,
			NumSources:      answer.NumSources,
			RelevanceScores: answer.RelevanceScores,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.admin.Status(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{"success": false, "error": message})
}
