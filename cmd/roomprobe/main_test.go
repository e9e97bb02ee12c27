package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/capy-arena/game/relay"
	"github.com/wricardo/capy-arena/game/room"
	"github.com/wricardo/capy-arena/transport/websocket"
)

func startRelay(t *testing.T, capacity int) string {
	t.Helper()

	handler := relay.NewHandler(room.NewRegistry(capacity))
	hub := websocket.NewHub(handler, websocket.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRun_Scenario(t *testing.T) {
	url := startRelay(t, room.DefaultCapacity)

	report, err := Run(context.Background(), Options{
		URL:      url,
		Room:     "TEST01",
		Updates:  3,
		Timeout:  2 * time.Second,
		Attempts: 1,
	})
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if report.Failed() {
		t.Fatalf("Report has failed steps: %+v", report.Steps)
	}
	if len(report.Steps) != 6 {
		t.Errorf("Expected 6 steps, got %d: %+v", len(report.Steps), report.Steps)
	}

	last := report.Steps[len(report.Steps)-1]
	if !strings.Contains(last.Detail, "probe-alice") {
		t.Errorf("Expected player_left for probe-alice, got %s", last.Detail)
	}
}

func TestRun_DetectsWrongCapacity(t *testing.T) {
	// a three-seat room never rejects the extra player
	url := startRelay(t, 3)

	report, err := Run(context.Background(), Options{
		URL:      url,
		Room:     "BIGGER",
		Timeout:  300 * time.Millisecond,
		Attempts: 1,
	})
	if !errors.Is(err, ErrProbeFailed) {
		t.Fatalf("Expected ErrProbeFailed, got %v", err)
	}
	if !report.Failed() {
		t.Error("Report should contain a failed step")
	}
}

func TestConnect_RetriesThenFails(t *testing.T) {
	start := time.Now()
	_, err := connect(context.Background(), Options{URL: "ws://127.0.0.1:1/ws", Attempts: 3}, "nobody")
	if err == nil {
		t.Fatal("Expected dial error")
	}
	// two backoff waits of at least 100ms and 200ms minus jitter
	if time.Since(start) < 100*time.Millisecond {
		t.Errorf("Expected retries to back off, finished in %s", time.Since(start))
	}
}

func TestConnect_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := connect(ctx, Options{URL: "ws://127.0.0.1:1/ws", Attempts: 5}, "nobody")
	if err == nil {
		t.Fatal("Expected error with cancelled context")
	}
}

func TestReport_Failed(t *testing.T) {
	r := &Report{}
	r.pass("ok", "")
	if r.Failed() {
		t.Error("Report with only passing steps should not be failed")
	}

	err := r.fail("broken", errors.New("boom"))
	if !errors.Is(err, ErrProbeFailed) {
		t.Errorf("Expected ErrProbeFailed, got %v", err)
	}
	if !r.Failed() {
		t.Error("Report should be failed")
	}
}
