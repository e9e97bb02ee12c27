package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/wricardo/capy-arena/game/relay"
)

type player struct {
	id      string
	conn    *websocket.Conn
	timeout time.Duration
}

// connect dials the relay, retrying with exponential backoff.
func connect(ctx context.Context, opts Options, id string) (*player, error) {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
		if err == nil {
			return &player{id: id, conn: conn, timeout: opts.Timeout}, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		wait := b.Duration()
		log.Printf("Dial %s failed (attempt %d/%d), retrying in %s: %v", opts.URL, i+1, attempts, wait, err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("dial %s: %w", opts.URL, lastErr)
}

func (p *player) send(event string, payload interface{}) error {
	frame, err := relay.Encode(event, payload)
	if err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

func (p *player) join(code string) error {
	return p.send(relay.EventJoinRoom, map[string]interface{}{
		"roomCode":   code,
		"playerData": map[string]interface{}{"id": p.id, "x": 100, "y": 50, "health": 100, "maxHealth": 100, "facing": "right"},
	})
}

// expect reads the next frame and checks its event name.
func (p *player) expect(event string) (relay.Envelope, error) {
	var env relay.Envelope

	p.conn.SetReadDeadline(time.Now().Add(p.timeout))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return env, fmt.Errorf("waiting for %s: %w", event, err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("waiting for %s: invalid frame %q", event, data)
	}
	if env.Event != event {
		return env, fmt.Errorf("expected %s, got %s", event, env.Event)
	}
	return env, nil
}

func (p *player) close() {
	p.conn.Close()
}
