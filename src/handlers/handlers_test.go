package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"plaid-mcp-server/src/webhook"
)

// echoServer answers every message with the message itself, except
// notifications which get no response.
type echoServer struct{}

func (echoServer) HandleMessage(ctx context.Context, msg []byte) []byte {
	if strings.Contains(string(msg), "notifications/") {
		return nil
	}
	return msg
}

func newTestServer(t *testing.T, sessions *Sessions) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health(sessions))
	mux.HandleFunc("/sse", SSE(sessions))
	mux.HandleFunc("/message", Message(echoServer{}, sessions))
	mux.HandleFunc("/ws", WebSocket(echoServer{}, sessions, []string{"*"}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSERoundTrip(t *testing.T) {
	sessions := NewSessions()
	srv := newTestServer(t, sessions)

	resp, err := http.Get(srv.URL + "/sse")
	if err != nil {
		t.Fatalf("GET /sse: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	stream := bufio.NewReader(resp.Body)
	event, endpoint := readEvent(t, stream)
	if event != "endpoint" || !strings.HasPrefix(endpoint, "/message?connection=") {
		t.Fatalf("first event = %q %q", event, endpoint)
	}
	if sessions.Count() != 1 {
		t.Errorf("connections = %d, want 1", sessions.Count())
	}

	post, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("POST message: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", post.StatusCode)
	}

	event, data := readEvent(t, stream)
	if event != "message" || data != `{"jsonrpc":"2.0","id":1,"method":"ping"}` {
		t.Errorf("response event = %q %q", event, data)
	}
}

func TestMessageUnknownConnection(t *testing.T) {
	srv := newTestServer(t, NewSessions())

	resp, err := http.Post(srv.URL+"/message?connection=does-not-exist", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	sessions := NewSessions()
	srv := newTestServer(t, sessions)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0","id":7,"method":"tools/list"}` {
		t.Errorf("response = %s", data)
	}
}

func TestHealth(t *testing.T) {
	sessions := NewSessions()
	sessions.open()

	rec := httptest.NewRecorder()
	Health(sessions)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body struct {
		Status      string `json:"status"`
		Transport   string `json:"transport"`
		Connections int    `json:"connections"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Transport != "http" || body.Connections != 1 {
		t.Errorf("health = %+v", body)
	}
}

type fakeDispatcher struct {
	bodies chan string
	err    error
}

func (f *fakeDispatcher) Handle(ctx context.Context, body []byte) (*webhook.DispatchResult, error) {
	f.bodies <- string(body)
	if f.err != nil {
		return nil, f.err
	}
	return &webhook.DispatchResult{UserID: "u1", WebhookType: "TRANSACTIONS", WebhookCode: "SYNC_UPDATES_AVAILABLE"}, nil
}

func TestPlaidWebhookAlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "Dispatched"},
		{name: "Unknown item", err: webhook.ErrUnknownItem},
		{name: "Dispatch failure", err: errors.New("store unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{bodies: make(chan string, 1), err: tt.err}
			body := `{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`

			rec := httptest.NewRecorder()
			PlaidWebhook(dispatcher, time.Second)(rec, httptest.NewRequest(http.MethodPost, "/webhook/plaid", strings.NewReader(body)))

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"received":true`) {
				t.Errorf("body = %s", rec.Body.String())
			}

			select {
			case got := <-dispatcher.bodies:
				if got != body {
					t.Errorf("dispatched body = %s", got)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("webhook was not dispatched")
			}
		})
	}
}

func TestSessionsSendAfterClose(t *testing.T) {
	sessions := NewSessions()
	id, _ := sessions.open()
	sessions.close(id)

	if sessions.send(id, []byte("late")) {
		t.Error("send succeeded on a closed connection")
	}
	if sessions.Count() != 0 {
		t.Errorf("connections = %d, want 0", sessions.Count())
	}
}

type ctxDispatcher struct {
	ctxErrs chan error
}

func (d *ctxDispatcher) Handle(ctx context.Context, body []byte) (*webhook.DispatchResult, error) {
	d.ctxErrs <- ctx.Err()
	return &webhook.DispatchResult{UserID: "u1"}, nil
}

func TestPlaidWebhookZeroTimeoutIsUnbounded(t *testing.T) {
	dispatcher := &ctxDispatcher{ctxErrs: make(chan error, 1)}
	body := `{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`

	rec := httptest.NewRecorder()
	PlaidWebhook(dispatcher, 0)(rec, httptest.NewRequest(http.MethodPost, "/webhook/plaid", strings.NewReader(body)))

	select {
	case err := <-dispatcher.ctxErrs:
		if err != nil {
			t.Errorf("dispatch context already done: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not dispatched")
	}
}

func TestWriteLoopFailureStopsConnection(t *testing.T) {
	sessions := NewSessions()
	id, sess := sessions.open()
	defer sessions.close(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		writeLoop(ctx, cancel, id, sess, func(context.Context, []byte) error {
			return errors.New("broken pipe")
		})
		close(stopped)
	}()

	if !deliver(ctx, sess, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)) {
		t.Fatal("first response was not queued")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("writer kept running after a failed write")
	}
	if ctx.Err() == nil {
		t.Fatal("connection context not cancelled after a failed write")
	}

	// more responses than the buffer holds must not block the read side
	finished := make(chan struct{})
	go func() {
		for i := 0; i < sessionBuffer*2; i++ {
			deliver(ctx, sess, []byte("late"))
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("deliver blocked after the writer stopped")
	}
}
