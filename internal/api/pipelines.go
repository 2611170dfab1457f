package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/taskflow/internal/definition"
	"github.com/seantiz/taskflow/internal/model"
	"github.com/seantiz/taskflow/internal/store"
)

// pipelineResponse is a stored definition with its parsed form.
type pipelineResponse struct {
	*model.PipelineDefinition
	Pipeline *model.Pipeline `json:"pipeline,omitempty"`
}

type pipelineSummary struct {
	Name      string `json:"name"`
	Steps     int    `json:"steps"`
	Valid     bool   `json:"valid"`
	UpdatedAt string `json:"updated_at"`
}

type listPipelinesResponse struct {
	Pipelines []pipelineSummary `json:"pipelines"`
}

// handlePutPipeline stores the YAML or JSON definition in the request body
// under the name in the URL. The definition must validate and carry the same
// name.
func (s *Server) handlePutPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	src, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	p, err := definition.Parse(src)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if p.Name != name {
		s.writeError(w, http.StatusBadRequest, "pipeline name does not match URL")
		return
	}

	def := &model.PipelineDefinition{Name: name, Source: string(src)}
	if existing, err := s.pipelines.GetPipeline(r.Context(), name); err == nil {
		def.CreatedAt = existing.CreatedAt
	}
	if err := s.pipelines.PutPipeline(r.Context(), def); err != nil {
		s.logger.Error("put pipeline", "pipeline", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store pipeline")
		return
	}

	s.writeJSON(w, http.StatusOK, pipelineResponse{PipelineDefinition: def, Pipeline: p})
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	def, err := s.pipelines.GetPipeline(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	if err != nil {
		s.logger.Error("get pipeline", "pipeline", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get pipeline")
		return
	}

	resp := pipelineResponse{PipelineDefinition: def}
	if p, err := definition.Parse([]byte(def.Source)); err == nil {
		resp.Pipeline = p
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := s.pipelines.DeletePipeline(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	if err != nil {
		s.logger.Error("delete pipeline", "pipeline", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete pipeline")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	defs, err := s.pipelines.ListPipelines(r.Context())
	if err != nil {
		s.logger.Error("list pipelines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list pipelines")
		return
	}

	summaries := make([]pipelineSummary, 0, len(defs))
	for _, def := range defs {
		sum := pipelineSummary{Name: def.Name, UpdatedAt: def.UpdatedAt.Format(timeLayout)}
		if p, err := definition.Parse([]byte(def.Source)); err == nil {
			sum.Valid = true
			sum.Steps = len(p.Steps)
		}
		summaries = append(summaries, sum)
	}
	s.writeJSON(w, http.StatusOK, listPipelinesResponse{Pipelines: summaries})
}
