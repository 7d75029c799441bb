package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
)

// maxWebhookBody bounds how much of a webhook request is read for
// signature verification.
const maxWebhookBody = 1 << 20

type WebhookVerifier interface {
	Verify(ctx context.Context, body []byte, header http.Header) error
}

// WebhookAuthMiddleware rejects webhook requests whose Plaid-Verification
// JWT does not match the body. The body is restored for the next handler.
func WebhookAuthMiddleware(verifier WebhookVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body.Close()

			if err := verifier.Verify(r.Context(), body, r.Header); err != nil {
				log.Printf("WARN: Rejected webhook from %s: %v", r.RemoteAddr, err)
				writeError(w, http.StatusUnauthorized, "webhook verification failed")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
