// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

// Package auth provides signed subscriber tokens for the socket transport.
// Livegate does not own identity: tokens are minted by the platform's auth
// service (or the `livegate token` command for operators) and only verified
// here, before a connection is registered.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/oops"
)

// MinSecretLen is the minimum accepted signing secret length in bytes.
const MinSecretLen = 32

// DefaultTokenTTL is the validity window for newly issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the signed identity payload carried by a token.
type Claims struct {
	Subject   string `json:"sub"`
	Name      string `json:"name"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Verifier issues and verifies HMAC-SHA256 signed tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier from a signing secret. Short secrets are
// rejected outright rather than silently accepted.
func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < MinSecretLen {
		return nil, oops.Code("AUTH_WEAK_SECRET").
			With("min_length", MinSecretLen).
			Errorf("token secret must be at least %d bytes", MinSecretLen)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Issue mints a signed token for a principal.
func (v *Verifier) Issue(subject, name string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", oops.Code("AUTH_INVALID_SUBJECT").Errorf("subject cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		Subject:   subject,
		Name:      name,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", oops.Code("AUTH_ENCODE_FAILED").Wrap(err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + v.sign(encoded), nil
}

// Verify checks a token's signature and expiry and returns its claims.
// Every failure maps to the UNAUTHORIZED code; callers reject the connection
// before any registry entry exists.
func (v *Verifier) Verify(token string) (*Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return nil, oops.Code("UNAUTHORIZED").Errorf("malformed token")
	}

	// Constant-time signature check before the payload is trusted.
	if !hmac.Equal([]byte(v.sign(encoded)), []byte(signature)) {
		return nil, oops.Code("UNAUTHORIZED").Errorf("invalid token signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, oops.Code("UNAUTHORIZED").Wrap(err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, oops.Code("UNAUTHORIZED").Wrap(err)
	}
	if claims.Subject == "" {
		return nil, oops.Code("UNAUTHORIZED").Errorf("token has no subject")
	}
	if time.Now().Unix() >= claims.ExpiresAt {
		return nil, oops.Code("UNAUTHORIZED").
			With("subject", claims.Subject).
			Errorf("token expired")
	}

	return &claims, nil
}

func (v *Verifier) sign(encoded string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// IsUnauthorized reports whether the error is a token verification failure.
func IsUnauthorized(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == "UNAUTHORIZED"
}
