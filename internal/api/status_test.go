package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/seantiz/taskflow/internal/backend"
	"github.com/seantiz/taskflow/internal/backend/fake"
)

func fakeCapabilities(caps ...string) fake.Option {
	return fake.WithCapabilities(caps...)
}

func TestStatusReportsCapabilities(t *testing.T) {
	env := newTestEnv(t, fakeCapabilities("LLM::a", "IMG::b"))
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/status", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "operational" || body.Version != Version {
		t.Errorf("body = %+v", body)
	}
	if !slices.Equal(body.Data, []string{"LLM::a", "IMG::b"}) {
		t.Errorf("data = %v", body.Data)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", body.Timestamp, err)
	}
}

func TestListPolicies(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Router())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/policies", "")
	defer resp.Body.Close()
	var body policiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Active != backend.PolicyFirst || len(body.Policies) != 2 {
		t.Errorf("body = %+v", body)
	}
}
