package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// issuer is checked on every Verify so cookies minted by another service
// sharing the secret are rejected.
const issuer = "userdesk"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// Signer turns a session id into a tamper-evident cookie value and back.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"sub":"<session id>","exp":...,"iss":"userdesk"}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// Unlike a stateless JWT setup, the token here is only a pointer: the
// session it names must still exist in the Store.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer with the given secret.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewSigner(secret string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session: secret must be at least %d characters", MinSecretLength)
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign issues a cookie value for sessionID that expires at expiresAt.
func (s *Signer) Sign(sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify returns the session id carried by a cookie value.
func (s *Signer) Verify(token string) (string, error) {
	return s.VerifyAt(token, time.Now())
}

// VerifyAt is Verify with expiry judged at the given instant.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches
//   - Algorithm is HS256 (prevents "alg: none" confusion attacks)
func (s *Signer) VerifyAt(token string, at time.Time) (string, error) {
	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(
		token,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return at }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("session: cookie expired")
		}
		return "", fmt.Errorf("session: invalid cookie: %w", err)
	}

	if c.Subject == "" {
		return "", fmt.Errorf("session: cookie has no subject")
	}
	return c.Subject, nil
}
