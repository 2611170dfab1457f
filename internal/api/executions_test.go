package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/taskflow/internal/model"
)

func TestPostRunsPipeline(t *testing.T) {
	env := newTestEnv(t)
	env.putPipeline(t, "echo", echoPipeline)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/post", `{"pipeline":"echo","input_str":"GET /admin"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Result map[string]model.Value `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s, _ := body.Result["input"].AsString(); s != "GET /admin" {
		t.Errorf("input = %v", body.Result["input"])
	}
	if s, _ := body.Result["echo"].AsString(); s != "GET /admin" {
		t.Errorf("echo = %v", body.Result["echo"])
	}

	subs := env.fake.Submissions()
	if len(subs) != 1 || subs[0].Payload.Messages[0].Content != "Repeat the input." {
		t.Errorf("submissions = %+v", subs)
	}
}

func TestPostErrors(t *testing.T) {
	env := newTestEnv(t)
	env.putPipeline(t, "broken", "name: broken\n")
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown pipeline", `{"pipeline":"nope","input_str":"x"}`, http.StatusNotFound},
		{"malformed pipeline", `{"pipeline":"broken","input_str":"x"}`, http.StatusUnprocessableEntity},
		{"missing pipeline", `{"input_str":"x"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/api/v1/post", tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestPostNoCapability(t *testing.T) {
	env := newTestEnv(t, fakeCapabilities("IMG::sd"))
	env.putPipeline(t, "echo", echoPipeline)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/post", `{"pipeline":"echo","input_str":"x"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

// waitForExecution polls the API until the execution is terminal.
func waitForExecution(t *testing.T, base, id string) model.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := do(t, http.MethodGet, base+"/api/v1/executions/"+id, "")
		var x model.Execution
		err := json.NewDecoder(resp.Body).Decode(&x)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if model.IsTerminal(x.Status) {
			return x
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("execution %s did not finish", id)
	return model.Execution{}
}

func TestSubmitExecution(t *testing.T) {
	env := newTestEnv(t)
	env.putPipeline(t, "echo", echoPipeline)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/executions", `{"pipeline":"echo","input":{"line":"x"}}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var x model.Execution
	if err := json.NewDecoder(resp.Body).Decode(&x); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(x.ID) != 26 || x.Status != model.StatusPending || x.Pipeline != "echo" {
		t.Errorf("execution = %+v", x)
	}

	done := waitForExecution(t, ts.URL, x.ID)
	if done.Status != model.StatusCompleted {
		t.Fatalf("status = %q, error = %q", done.Status, done.Error)
	}
	if s, _ := done.Result["echo"].AsString(); s != `{"line":"x"}` {
		t.Errorf("echo = %v", done.Result["echo"])
	}
	if done.Input.Kind() != model.KindMap {
		t.Errorf("input kind = %v, want map", done.Input.Kind())
	}
}

func TestListExecutionsPagination(t *testing.T) {
	env := newTestEnv(t)
	env.putPipeline(t, "echo", echoPipeline)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	for range 3 {
		resp := do(t, http.MethodPost, ts.URL+"/api/v1/post", `{"pipeline":"echo","input_str":"x"}`)
		resp.Body.Close()
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/executions?limit=2&offset=1", "")
	defer resp.Body.Close()
	var list listExecutionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 3 || len(list.Executions) != 2 || list.Limit != 2 || list.Offset != 1 {
		t.Errorf("list = total %d, len %d, limit %d, offset %d", list.Total, len(list.Executions), list.Limit, list.Offset)
	}
}

func TestGetExecutionErrors(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/executions/not-an-id", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/v1/executions/"+model.NewID(), "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.StatusCode)
	}
}
