package adminhttp

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (*Server, string, func()) {
	t.Helper()
	addr := "127.0.0.1:34991"
	s := NewServer(addr)

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get("http://" + addr + "/healthz"); err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return s, addr, func() {
		s.Shutdown(context.Background())
		if err := <-errCh; err != nil {
			t.Errorf("ListenAndServe returned %v", err)
		}
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	_, addr, stop := startTestServer(t)
	defer stop()

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	_, addr, stop := startTestServer(t)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("expected non-empty metrics body")
	}
}
