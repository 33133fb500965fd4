// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livegate/livegate/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	return v
}

func TestNewVerifier_WeakSecret(t *testing.T) {
	_, err := NewVerifier("short")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_WEAK_SECRET")
}

func TestVerifier_IssueVerify(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("u-1", "Ada", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.Greater(t, claims.ExpiresAt, claims.IssuedAt)
}

func TestVerifier_IssueEmptySubject(t *testing.T) {
	v := newTestVerifier(t)
	_, err := v.Issue("", "Ada", time.Hour)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_SUBJECT")
}

func TestVerifier_IssueDefaultTTL(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue("u-1", "Ada", 0)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.InDelta(t, claims.IssuedAt+int64(DefaultTokenTTL/time.Second), claims.ExpiresAt, 1)
}

func TestVerifier_VerifyMalformed(t *testing.T) {
	v := newTestVerifier(t)

	for _, token := range []string{"", "noseparator", ".onlysig", "onlypayload."} {
		_, err := v.Verify(token)
		require.Error(t, err, "token %q", token)
		assert.True(t, IsUnauthorized(err))
	}
}

func TestVerifier_VerifyTamperedPayload(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue("u-1", "Ada", time.Hour)
	require.NoError(t, err)

	// Swap in a forged payload while keeping the original signature.
	_, signature, _ := strings.Cut(token, ".")
	forged := Claims{Subject: "u-2", Name: "Mallory", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	payload, err := json.Marshal(forged)
	require.NoError(t, err)
	tampered := base64.RawURLEncoding.EncodeToString(payload) + "." + signature

	_, err = v.Verify(tampered)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "UNAUTHORIZED")
}

func TestVerifier_VerifyWrongSecret(t *testing.T) {
	v := newTestVerifier(t)
	other, err := NewVerifier("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	token, err := other.Issue("u-1", "Ada", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestVerifier_VerifyExpired(t *testing.T) {
	v := newTestVerifier(t)

	// Sign an already-expired claims payload directly.
	claims := Claims{
		Subject:   "u-1",
		Name:      "Ada",
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	token := encoded + "." + v.sign(encoded)

	_, err = v.Verify(token)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "UNAUTHORIZED")
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifier_VerifyNoSubject(t *testing.T) {
	v := newTestVerifier(t)

	claims := Claims{Name: "Nobody", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	encoded := base64.RawURLEncoding.EncodeToString(payload)

	_, err = v.Verify(encoded + "." + v.sign(encoded))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "UNAUTHORIZED")
}

func TestIsUnauthorized(t *testing.T) {
	v := newTestVerifier(t)
	_, err := v.Verify("bogus.token")
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsUnauthorized(nil))
	assert.False(t, IsUnauthorized(assert.AnError))
}
