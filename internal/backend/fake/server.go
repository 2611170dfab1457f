// Package fake is an in-memory OffloadMQ backend for tests and local runs.
// Tasks stay pending for a configurable number of polls and then complete
// with the content produced by a Responder.
package fake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/taskflow/internal/backend"
)

// Reply is the terminal state of a task.
type Reply struct {
	Status  string
	Content string
}

// Responder produces the reply for a submitted task.
type Responder func(req backend.TaskRequest) Reply

// Echo replies with the user message of the request.
func Echo(req backend.TaskRequest) Reply {
	var content string
	for _, m := range req.Payload.Messages {
		if m.Role == "user" {
			content = m.Content
		}
	}
	return Reply{Status: backend.StatusCompleted, Content: content}
}

type task struct {
	request backend.TaskRequest
	polls   int
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	mu           sync.Mutex
	apiKey       string
	capabilities []string
	pendingPolls int
	pollFailures int
	pendingState string
	responder    Responder
	tasks        map[string]*task
	submissions  []backend.TaskRequest
	requests     int
	nextID       int
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey makes the server reject requests carrying a different key.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithCapabilities sets the capabilities reported online.
func WithCapabilities(caps ...string) Option {
	return func(s *Server) {
		s.capabilities = caps
	}
}

// WithPendingPolls keeps every task pending for n polls before it finishes.
func WithPendingPolls(n int) Option {
	return func(s *Server) {
		s.pendingPolls = n
	}
}

// WithPollFailures makes the first n polls of the server fail with 503.
func WithPollFailures(n int) Option {
	return func(s *Server) {
		s.pollFailures = n
	}
}

// WithResponder sets how tasks are answered. The default is Echo.
func WithResponder(r Responder) Option {
	return func(s *Server) {
		s.responder = r
	}
}

// New creates a fake backend.
func New(opts ...Option) *Server {
	s := &Server{
		capabilities: []string{"LLM::fake"},
		pendingState: "processing",
		responder:    Echo,
		tasks:        make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving the OffloadMQ routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/capabilities/online", s.handleCapabilities)
	r.Post("/api/task/submit", s.handleSubmit)
	r.Post("/api/task/poll/{capability}/{id}", s.handlePoll)
	return r
}

// Submissions returns every task request received so far.
func (s *Server) Submissions() []backend.TaskRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.TaskRequest, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	s.mu.Lock()
	caps := append([]string(nil), s.capabilities...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, caps)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req backend.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.checkKey(w, req.APIKey) {
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("task-%d", s.nextID)
	s.tasks[id] = &task{request: req}
	s.submissions = append(s.submissions, req)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id": map[string]string{"id": id, "cap": req.Capability},
	})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	capability, _ := url.PathUnescape(chi.URLParam(r, "capability"))
	id, _ := url.PathUnescape(chi.URLParam(r, "id"))

	s.mu.Lock()
	if s.pollFailures > 0 {
		s.pollFailures--
		s.mu.Unlock()
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	t, ok := s.tasks[id]
	if !ok || t.request.Capability != capability {
		s.mu.Unlock()
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	t.polls++
	if t.polls <= s.pendingPolls {
		state := s.pendingState
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": state})
		return
	}
	req, responder := t.request, s.responder
	s.mu.Unlock()

	reply := responder(req)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": reply.Status,
		"output": map[string]any{
			"message": backend.Message{Role: "assistant", Content: reply.Content},
		},
	})
}

// authorize counts the request and checks the apiKey field of its body.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.count()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return s.checkKey(w, body.APIKey)
}

func (s *Server) checkKey(w http.ResponseWriter, key string) bool {
	s.count()
	if s.apiKey != "" && key != s.apiKey {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) count() {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
