// fakebackend serves an in-memory OffloadMQ backend for local runs and
// end-to-end tests of taskflow.
// Usage: go run ./cmd/fakebackend
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/seantiz/taskflow/internal/backend"
	"github.com/seantiz/taskflow/internal/backend/fake"
	"github.com/seantiz/taskflow/internal/config"
)

func main() {
	addr := envOr("FAKEBACKEND_ADDR", ":3069")
	logger := config.NewLogger(os.Stderr, config.ParseLogLevel(os.Getenv("FAKEBACKEND_LOG_LEVEL")))

	opts := []fake.Option{}
	if key := os.Getenv("FAKEBACKEND_API_KEY"); key != "" {
		opts = append(opts, fake.WithAPIKey(key))
	}
	if caps := os.Getenv("FAKEBACKEND_CAPABILITIES"); caps != "" {
		opts = append(opts, fake.WithCapabilities(strings.Split(caps, ",")...))
	}
	if v := os.Getenv("FAKEBACKEND_PENDING_POLLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid FAKEBACKEND_PENDING_POLLS %q: %v", v, err)
		}
		opts = append(opts, fake.WithPendingPolls(n))
	}

	// JSON-format tasks get the canned reply; the rest are echoed.
	if reply := os.Getenv("FAKEBACKEND_JSON_REPLY"); reply != "" {
		opts = append(opts, fake.WithResponder(func(req backend.TaskRequest) fake.Reply {
			if req.Payload.Format == "json" {
				return fake.Reply{Status: backend.StatusCompleted, Content: reply}
			}
			return fake.Echo(req)
		}))
	}

	srv := fake.New(opts...)
	logger.Info("fakebackend: listening", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
