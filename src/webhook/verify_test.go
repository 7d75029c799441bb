package webhook

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plaid/plaid-go/v41/plaid"
)

type fakeKeys struct {
	key   *plaid.JWKPublicKey
	calls int
}

func (f *fakeKeys) GetWebhookVerificationKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	f.calls++
	if f.key == nil || f.key.Kid != kid {
		return nil, errors.New("key not found")
	}
	return f.key, nil
}

func newSigningKey(t *testing.T) (*ecdsa.PrivateKey, *plaid.JWKPublicKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	jwk := &plaid.JWKPublicKey{
		Alg: "ES256",
		Crv: "P-256",
		Kid: "kid-1",
		Kty: "EC",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(priv.PublicKey.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(priv.PublicKey.Y.FillBytes(make([]byte, 32))),
	}
	return priv, jwk
}

func sign(t *testing.T, priv *ecdsa.PrivateKey, kid string, iat time.Time, body []byte) string {
	t.Helper()
	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iat":                 iat.Unix(),
		"request_body_sha256": hex.EncodeToString(sum[:]),
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestVerify(t *testing.T) {
	priv, jwk := newSigningKey(t)
	other, _ := newSigningKey(t)
	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`)
	now := time.Now()

	tests := []struct {
		name    string
		token   string
		body    []byte
		wantErr bool
	}{
		{name: "Valid signature", token: sign(t, priv, "kid-1", now, body), body: body},
		{name: "Missing header", token: "", body: body, wantErr: true},
		{name: "Tampered body", token: sign(t, priv, "kid-1", now, body), body: []byte(`{"item_id":"item-2"}`), wantErr: true},
		{name: "Stale token", token: sign(t, priv, "kid-1", now.Add(-10*time.Minute), body), body: body, wantErr: true},
		{name: "Wrong signing key", token: sign(t, other, "kid-1", now, body), body: body, wantErr: true},
		{name: "Unknown kid", token: sign(t, priv, "kid-2", now, body), body: body, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(&fakeKeys{key: jwk})
			header := http.Header{}
			if tt.token != "" {
				header.Set(VerificationHeader, tt.token)
			}

			err := v.Verify(context.Background(), tt.body, header)
			if tt.wantErr {
				if !errors.Is(err, ErrUnverified) {
					t.Errorf("error = %v, want ErrUnverified", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifyCachesKeys(t *testing.T) {
	priv, jwk := newSigningKey(t)
	keys := &fakeKeys{key: jwk}
	v := NewVerifier(keys)
	body := []byte(`{}`)

	for i := 0; i < 3; i++ {
		header := http.Header{}
		header.Set(VerificationHeader, sign(t, priv, "kid-1", time.Now(), body))
		if err := v.Verify(context.Background(), body, header); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
	if keys.calls != 1 {
		t.Errorf("key fetches = %d, want 1", keys.calls)
	}
}

func TestVerifyRefetchesExpiredKey(t *testing.T) {
	priv, jwk := newSigningKey(t)
	keys := &fakeKeys{key: jwk}
	v := NewVerifier(keys)
	now := time.Now()
	v.now = func() time.Time { return now }
	body := []byte(`{}`)

	verify := func() error {
		header := http.Header{}
		header.Set(VerificationHeader, sign(t, priv, "kid-1", now, body))
		return v.Verify(context.Background(), body, header)
	}

	if err := verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// the cached key is rotated out; Plaid now serves a fresh copy
	fresh := *jwk
	jwk.SetExpiredAt(int32(now.Add(-time.Minute).Unix()))
	keys.key = &fresh

	if err := verify(); err != nil {
		t.Fatalf("Verify after rotation: %v", err)
	}
	if keys.calls != 2 {
		t.Errorf("key fetches = %d, want 2", keys.calls)
	}
}

func TestVerifyRejectsExpiredKey(t *testing.T) {
	priv, jwk := newSigningKey(t)
	now := time.Now()
	jwk.SetExpiredAt(int32(now.Add(-time.Hour).Unix()))
	v := NewVerifier(&fakeKeys{key: jwk})
	v.now = func() time.Time { return now }

	body := []byte(`{}`)
	header := http.Header{}
	header.Set(VerificationHeader, sign(t, priv, "kid-1", now, body))
	if err := v.Verify(context.Background(), body, header); !errors.Is(err, ErrUnverified) {
		t.Errorf("error = %v, want ErrUnverified", err)
	}

	future, jwk2 := newSigningKey(t)
	jwk2.SetExpiredAt(int32(now.Add(time.Hour).Unix()))
	v = NewVerifier(&fakeKeys{key: jwk2})
	v.now = func() time.Time { return now }
	header.Set(VerificationHeader, sign(t, future, "kid-1", now, body))
	if err := v.Verify(context.Background(), body, header); err != nil {
		t.Errorf("key expiring later rejected: %v", err)
	}
}
