package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/seantiz/taskflow/internal/model"
)

// Terminal task statuses reported by the backend.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// IsTerminalStatus reports whether status ends polling. The comparison is
// case-insensitive.
func IsTerminalStatus(status string) bool {
	switch strings.ToLower(status) {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// ErrBackendRequest is returned when the backend rejects or fails a request.
var ErrBackendRequest = errors.New("backend request failed")

// RequestError describes a failed backend call.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": backend request failed"
	}
}

// Unwrap exposes ErrBackendRequest and the underlying cause.
func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrBackendRequest, e.Err}
	}
	return []error{ErrBackendRequest}
}

// CapabilityLister reports the capabilities the backend currently serves.
type CapabilityLister interface {
	Capabilities(ctx context.Context) ([]string, error)
}

// TaskSubmitter enqueues a task.
type TaskSubmitter interface {
	SubmitTask(ctx context.Context, req TaskRequest) (*TaskHandle, error)
}

// TaskPoller fetches the current state of a task.
type TaskPoller interface {
	PollTask(ctx context.Context, capability, taskID string) (*TaskResult, error)
}

// Message is one chat message of a task payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TaskPayload is the model request carried by a task.
type TaskPayload struct {
	Model    string    `json:"model"`
	Format   string    `json:"format,omitempty"`
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
}

// TaskRequest is the body of a task submission. APIKey is filled in by Client.
type TaskRequest struct {
	Capability string      `json:"capability"`
	Urgent     bool        `json:"urgent"`
	Payload    TaskPayload `json:"payload"`
	APIKey     string      `json:"apiKey"`
}

// NewTaskRequest builds the submission for q on capability.
func NewTaskRequest(capability string, q model.Query) TaskRequest {
	payload := TaskPayload{
		Model: capability,
		Messages: []Message{
			{Role: "system", Content: q.System},
			{Role: "user", Content: q.User},
		},
	}
	if q.JSON {
		payload.Format = "json"
	}
	return TaskRequest{
		Capability: capability,
		Payload:    payload,
	}
}

// TaskHandle identifies a submitted task.
type TaskHandle struct {
	ID         string `json:"id"`
	Capability string `json:"cap"`
}

// OutputMessage is the message of a finished task. Content is kept as raw
// JSON since backends do not agree on its shape.
type OutputMessage struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Text returns the content when it is a JSON string and the raw JSON text
// of any other value. Null or absent content is "".
func (m OutputMessage) Text() string {
	if len(m.Content) == 0 || string(m.Content) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	return string(m.Content)
}

// TaskOutput is the result payload of a finished task.
type TaskOutput struct {
	Message OutputMessage `json:"message"`
}

// TaskResult is one poll response. Raw holds the response body exactly as
// received.
type TaskResult struct {
	Status string          `json:"status"`
	Output *TaskOutput     `json:"output,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// Content returns the output message content, or "" when there is none.
func (r *TaskResult) Content() string {
	if r == nil || r.Output == nil {
		return ""
	}
	return r.Output.Message.Text()
}

// decodeTaskResult reads a poll body. Only a body that is not an object or
// whose status is not a string is an error; the output is read leniently
// and left nil when it has no usable message.
func decodeTaskResult(body []byte) (*TaskResult, error) {
	var head struct {
		Status string          `json:"status"`
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, err
	}
	return &TaskResult{
		Status: head.Status,
		Output: decodeOutput(head.Output),
		Raw:    json.RawMessage(body),
	}, nil
}

func decodeOutput(raw json.RawMessage) *TaskOutput {
	var out struct {
		Message json.RawMessage `json:"message"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil || len(out.Message) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out.Message, &fields); err != nil {
		// A bare message value stands for its content.
		return &TaskOutput{Message: OutputMessage{Content: out.Message}}
	}
	var role string
	_ = json.Unmarshal(fields["role"], &role)
	return &TaskOutput{Message: OutputMessage{Role: role, Content: fields["content"]}}
}
