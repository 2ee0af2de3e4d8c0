package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HMACVerifier validates HS256-signed bearer credentials
// (header.payload.signature, base64url) minted with a shared secret. The
// subject claim carries the tenant id. This keeps the collector agnostic
// to whichever provider issues the credentials, as long as it signs with
// the shared secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

type claims struct {
	Subject  string `json:"sub"`
	IssuedAt int64  `json:"iat,omitempty"`
	Expiry   int64  `json:"exp"`
}

// Verify checks the credential's signature and expiry and returns its
// subject. Every failure is ErrInvalidCredential.
func (v *HMACVerifier) Verify(_ context.Context, credential string) (string, error) {
	parts := strings.SplitN(credential, ".", 3)
	if len(parts) != 3 {
		return "", ErrInvalidCredential
	}

	signingInput := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signingInput))
	expectedSig := base64URLEncode(mac.Sum(nil))

	if !hmac.Equal([]byte(parts[2]), []byte(expectedSig)) {
		return "", ErrInvalidCredential
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return "", ErrInvalidCredential
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return "", ErrInvalidCredential
	}
	if c.Expiry == 0 || time.Now().Unix() > c.Expiry {
		return "", ErrInvalidCredential
	}
	if c.Subject == "" {
		return "", ErrInvalidCredential
	}

	return c.Subject, nil
}

// credentialHeader is the fixed base64url-encoded header for HS256.
var credentialHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Sign mints a credential for the tenant, valid for ttl. Production
// credentials come from the identity provider; this backs local
// development and tests.
func (v *HMACVerifier) Sign(tenantID string, ttl time.Duration) (string, error) {
	now := time.Now()
	payload, err := json.Marshal(claims{
		Subject:  tenantID,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := credentialHeader + "." + base64URLEncode(payload)
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signingInput))
	sig := base64URLEncode(mac.Sum(nil))

	return signingInput + "." + sig, nil
}

func base64URLEncode(data []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(data), "=")
}

func base64URLDecode(s string) ([]byte, error) {
	// Add padding back
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}
