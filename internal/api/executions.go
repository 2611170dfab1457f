package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/taskflow/internal/backend"
	"github.com/seantiz/taskflow/internal/engine"
	"github.com/seantiz/taskflow/internal/model"
	"github.com/seantiz/taskflow/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// postRequest is the JSON body for POST /api/v1/post.
type postRequest struct {
	Pipeline string `json:"pipeline"`
	InputStr string `json:"input_str"`
}

type postResponse struct {
	Result model.Context `json:"result"`
}

// submitRequest is the JSON body for POST /api/v1/executions. Input may be
// any JSON value; InputStr is used when Input is absent.
type submitRequest struct {
	Pipeline string          `json:"pipeline"`
	Input    json.RawMessage `json:"input"`
	InputStr string          `json:"input_str"`
}

// listExecutionsResponse wraps the paginated list response.
type listExecutionsResponse struct {
	Executions []*model.Execution `json:"executions"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// handlePost runs a pipeline to completion within the request and returns
// its final context.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Pipeline == "" {
		s.writeError(w, http.StatusBadRequest, "pipeline is required")
		return
	}

	x, err := s.engine.Run(r.Context(), req.Pipeline, model.String(req.InputStr))
	if err != nil {
		s.writeRunError(w, req.Pipeline, err)
		return
	}
	s.writeJSON(w, http.StatusOK, postResponse{Result: x.Result})
}

func (s *Server) handleSubmitExecution(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Pipeline == "" {
		s.writeError(w, http.StatusBadRequest, "pipeline is required")
		return
	}

	input := model.String(req.InputStr)
	if len(req.Input) > 0 {
		v, err := model.ParseJSON(req.Input)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid input")
			return
		}
		input = v
	}

	x, err := s.engine.Submit(r.Context(), req.Pipeline, input)
	if err != nil {
		s.writeRunError(w, req.Pipeline, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, x)
}

// writeRunError maps an engine error to a response. Unknown pipelines are
// 404, malformed ones 422, anything else a failed execution.
func (s *Server) writeRunError(w http.ResponseWriter, pipeline string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "pipeline not found")
	case errors.Is(err, engine.ErrConfiguration):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backend.ErrBackendRequest),
		errors.Is(err, backend.ErrNoCapability),
		errors.Is(err, backend.ErrPollBudgetExhausted):
		s.logger.Error("execution failed", "pipeline", pipeline, "error", err)
		s.writeError(w, http.StatusBadGateway, "execution failed: "+err.Error())
	default:
		s.logger.Error("execution failed", "pipeline", pipeline, "error", err)
		s.writeError(w, http.StatusInternalServerError, "execution failed: "+err.Error())
	}
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	x, ok := s.lookupExecution(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, x)
}

// lookupExecution loads the execution named by the id URL parameter, writing
// the error response itself when that fails.
func (s *Server) lookupExecution(w http.ResponseWriter, r *http.Request) (*model.Execution, bool) {
	id := chi.URLParam(r, "id")
	if _, err := model.IDTime(id); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid execution id")
		return nil, false
	}

	x, err := s.executions.GetExecution(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get execution", "execution_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get execution")
		return nil, false
	}
	return x, true
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	executions, total, err := s.executions.ListExecutions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list executions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	if executions == nil {
		executions = []*model.Execution{}
	}

	s.writeJSON(w, http.StatusOK, listExecutionsResponse{
		Executions: executions,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
