package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"nhooyr.io/websocket"
)

const maxMessageSize = 1 << 20

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg []byte) []byte
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func Health(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"transport":   "http",
			"connections": sessions.Count(),
		})
	}
}

// SSE opens an event stream. The first event names the endpoint the client
// posts its messages to; responses arrive as message events.
func SSE(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "streaming unsupported"})
			return
		}

		id, sess := sessions.open()
		defer sessions.close(id)
		log.Printf("INFO: SSE connection %s opened", id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		fmt.Fprintf(w, "event: endpoint\ndata: /message?connection=%s\n\n", id)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				log.Printf("INFO: SSE connection %s closed", id)
				return
			case msg := <-sess.out:
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
				flusher.Flush()
			}
		}
	}
}

// Message accepts a client message for an open connection. It is processed
// in the background and the response goes out on the connection's stream.
func Message(server MessageHandler, sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("connection")
		if !sessions.exists(id) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "connection not found"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
		if err != nil {
			log.Printf("ERROR: Failed to read message for connection %s: %v", id, err)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request"})
			return
		}

		ctx := context.WithoutCancel(r.Context())
		go func() {
			if resp := server.HandleMessage(ctx, body); resp != nil {
				if !sessions.send(id, resp) {
					log.Printf("WARN: Connection %s closed before response was delivered", id)
				}
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "accepted": true})
	}
}

// WebSocket serves requests and responses on one socket.
func WebSocket(server MessageHandler, sessions *Sessions, allowedOrigins []string) http.HandlerFunc {
	opts := &websocket.AcceptOptions{OriginPatterns: allowedOrigins}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Printf("ERROR: Websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "connection closed")
		conn.SetReadLimit(maxMessageSize)

		id, sess := sessions.open()
		defer sessions.close(id)
		log.Printf("INFO: Websocket connection %s opened", id)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go writeLoop(ctx, cancel, id, sess, func(ctx context.Context, msg []byte) error {
			return conn.Write(ctx, websocket.MessageText, msg)
		})

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch {
				case websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway:
					conn.Close(websocket.StatusNormalClosure, "")
				case ctx.Err() != nil:
					log.Printf("INFO: Websocket connection %s stopped: %v", id, ctx.Err())
				default:
					log.Printf("INFO: Websocket connection %s ended: %v", id, err)
				}
				return
			}
			if resp := server.HandleMessage(ctx, data); resp != nil {
				if !deliver(ctx, sess, resp) {
					return
				}
			}
		}
	}
}

// writeLoop forwards queued responses to the socket. A failed write cancels
// the connection so the read side stops too.
func writeLoop(ctx context.Context, cancel context.CancelFunc, id string, sess *session, write func(ctx context.Context, msg []byte) error) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.done:
			return
		case msg := <-sess.out:
			if err := write(ctx, msg); err != nil {
				log.Printf("ERROR: Websocket write to %s failed: %v", id, err)
				return
			}
		}
	}
}

// deliver queues a response for the writer. It reports false once the
// connection has stopped.
func deliver(ctx context.Context, sess *session, msg []byte) bool {
	select {
	case sess.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
