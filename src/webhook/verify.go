package webhook

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plaid/plaid-go/v41/plaid"
)

// Verification follows https://plaid.com/docs/api/webhooks/webhook-verification/

var ErrUnverified = errors.New("webhook verification failed")

const VerificationHeader = "Plaid-Verification"

// KeyFetcher resolves a key id through /webhook_verification_key/get.
type KeyFetcher interface {
	GetWebhookVerificationKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error)
}

type Verifier struct {
	keys   KeyFetcher
	maxAge time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]*plaid.JWKPublicKey
}

func NewVerifier(keys KeyFetcher) *Verifier {
	return &Verifier{
		keys:   keys,
		maxAge: 5 * time.Minute,
		now:    time.Now,
		cache:  make(map[string]*plaid.JWKPublicKey),
	}
}

// Verify checks the signed JWT in the Plaid-Verification header against the
// raw request body. Every failure wraps ErrUnverified.
func (v *Verifier) Verify(ctx context.Context, body []byte, header http.Header) error {
	tokenString := header.Get(VerificationHeader)
	if tokenString == "" {
		return fmt.Errorf("%w: missing %s header", ErrUnverified, VerificationHeader)
	}

	parser := jwt.NewParser(jwt.WithLeeway(30*time.Second), jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))

	unverified, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: parse unverified token: %v", ErrUnverified, err)
	}
	if unverified.Method.Alg() != jwt.SigningMethodES256.Alg() {
		return fmt.Errorf("%w: unexpected alg %q", ErrUnverified, unverified.Method.Alg())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return fmt.Errorf("%w: missing kid in token header", ErrUnverified)
	}

	jwk, err := v.key(ctx, kid)
	if err != nil {
		return fmt.Errorf("%w: get key %s: %v", ErrUnverified, kid, err)
	}
	pubKey, err := jwkToECDSAPublicKey(jwk)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnverified, err)
	}

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return pubKey, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: invalid token: %v", ErrUnverified, err)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return fmt.Errorf("%w: missing iat", ErrUnverified)
	}
	if v.now().Sub(iat.Time) > v.maxAge {
		return fmt.Errorf("%w: token older than %s", ErrUnverified, v.maxAge)
	}

	wantHash, _ := claims["request_body_sha256"].(string)
	if wantHash == "" {
		return fmt.Errorf("%w: missing request_body_sha256", ErrUnverified)
	}
	sum := sha256.Sum256(body)
	gotHex := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(gotHex), []byte(strings.ToLower(wantHash))) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrUnverified)
	}

	return nil
}

// key returns the key for kid, fetching it when it is not cached. Plaid
// rotates keys, so a cached key past its expired_at is dropped and fetched
// again.
func (v *Verifier) key(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	now := v.now()

	v.mu.Lock()
	key, ok := v.cache[kid]
	if ok && keyExpired(key, now) {
		delete(v.cache, kid)
		ok = false
	}
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := v.keys.GetWebhookVerificationKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	if keyExpired(key, now) {
		return nil, fmt.Errorf("key %s expired", kid)
	}
	if key.Kid == kid {
		v.mu.Lock()
		v.cache[kid] = key
		v.mu.Unlock()
	}
	return key, nil
}

// keyExpired reports whether expired_at is set and not after now.
func keyExpired(key *plaid.JWKPublicKey, now time.Time) bool {
	expiredAt := key.GetExpiredAt()
	return expiredAt != 0 && !time.Unix(int64(expiredAt), 0).After(now)
}

func jwkToECDSAPublicKey(jwk *plaid.JWKPublicKey) (*ecdsa.PublicKey, error) {
	if jwk == nil || jwk.X == "" || jwk.Y == "" || jwk.Kty != "EC" || jwk.Crv != "P-256" {
		return nil, errors.New("invalid or unsupported JWK")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
