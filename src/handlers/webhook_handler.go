package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"plaid-mcp-server/src/webhook"
)

type WebhookDispatcher interface {
	Handle(ctx context.Context, body []byte) (*webhook.DispatchResult, error)
}

// PlaidWebhook acknowledges every readable webhook and dispatches it in the
// background, so Plaid never retries because of a slow sync. A zero timeout
// leaves the dispatch unbounded.
func PlaidWebhook(dispatcher WebhookDispatcher, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
		if err != nil {
			log.Printf("ERROR: Failed to read webhook body: %v", err)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request"})
			return
		}

		go func() {
			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := dispatcher.Handle(ctx, body)
			if err != nil {
				log.Printf("ERROR: Failed to process webhook: %v", err)
				return
			}
			log.Printf("INFO: Processed webhook %s/%s for user %s (synced=%t)", result.WebhookType, result.WebhookCode, result.UserID, result.Synced)
		}()

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "received": true})
	}
}
