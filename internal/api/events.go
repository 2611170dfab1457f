package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seantiz/taskflow/internal/model"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	x, ok := s.lookupExecution(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if model.IsTerminal(x.Status) {
		w.WriteHeader(http.StatusOK)
		return
	}

	// SSE connections outlive any server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("set write deadline for SSE", "error", err)
	}

	// Subscribe on a finished execution yields a closed channel, so a run that
	// ends between the status check and here still terminates the loop.
	ch, unsub := s.engine.Broker().Subscribe(x.ID)
	defer unsub()
	eventStreamsActive.Inc()
	defer eventStreamsActive.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, ev.Seq, ev.Line); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// eventHistoryLine is a single event line in the history response.
type eventHistoryLine struct {
	Seq       int    `json:"seq"`
	Line      string `json:"line"`
	CreatedAt string `json:"created_at"`
}

type eventHistoryResponse struct {
	ExecutionID string             `json:"execution_id"`
	Status      string             `json:"status"`
	Lines       []eventHistoryLine `json:"lines"`
}

func (s *Server) handleGetEventHistory(w http.ResponseWriter, r *http.Request) {
	x, ok := s.lookupExecution(w, r)
	if !ok {
		return
	}

	events, err := s.executions.GetEventLines(r.Context(), x.ID)
	if err != nil {
		s.logger.Error("get event lines", "execution_id", x.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get event lines")
		return
	}

	lines := make([]eventHistoryLine, len(events))
	for i, ev := range events {
		lines[i] = eventHistoryLine{
			Seq:       ev.Seq,
			Line:      ev.Line,
			CreatedAt: ev.CreatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, eventHistoryResponse{
		ExecutionID: x.ID,
		Status:      x.Status,
		Lines:       lines,
	})
}

// writeSSEData writes one event with its sequence number as the SSE id.
// Multi-line text gets one "data:" field per line.
func writeSSEData(w http.ResponseWriter, seq int, line string) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", seq); err != nil {
		return err
	}
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
