package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	appconfig "github.com/wolfman30/appointment-assistant/internal/config"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:               "0",
		LLMProvider:        "openai",
		OpenAIAPIKey:       "sk-test",
		LLMTimeout:         time.Second,
		UseMemoryStore:     true,
		ClinicTimezone:     "UTC",
		MaxOfferedSlots:    10,
		DisplaySlots:       3,
		RateLimitRPS:       5,
		RateLimitBurst:     10,
		CORSAllowedOrigins: []string{"*"},
	}
}

func TestBuildServerExposesHealthAndMetrics(t *testing.T) {
	srv, cleanup, err := buildServer(context.Background(), testConfig(), logging.Discard())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	defer cleanup()

	if srv.WriteTimeout != 17*time.Second {
		t.Fatalf("expected write timeout to cover two llm calls, got %v", srv.WriteTimeout)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector metrics to be exported")
	}
}

func TestBuildServerQueryTool(t *testing.T) {
	srv, cleanup, err := buildServer(context.Background(), testConfig(), logging.Discard())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/tools/query_available_appointments", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"success":true`) {
		t.Fatalf("expected successful search, got %s", rr.Body.String())
	}
}

func TestBuildServerRedisHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.UseMemoryStore = false
	cfg.RedisAddr = mr.Addr()

	srv, cleanup, err := buildServer(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	defer cleanup()

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200 with redis up, got %d", rr.Code)
	}

	mr.Close()
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected health 503 with redis down, got %d", rr.Code)
	}
}

func TestBuildServerUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "mystery"
	if _, _, err := buildServer(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
