// Package token issues and verifies the signed credentials that grant a chat
// widget access to one conversations service.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidCredential is returned when a presented credential fails
// signature, expiry, or structural validation.
var ErrInvalidCredential = errors.New("invalid credential")

// contentType marks the credential as a scoped access token in the JWT header.
const contentType = "twilio-fpa;v=1"

// ChatGrant scopes a credential to one conversations service.
type ChatGrant struct {
	ServiceSID string `json:"service_sid"`
}

// Grants carries the identity and chat grant embedded in a credential.
type Grants struct {
	Identity string    `json:"identity"`
	Chat     ChatGrant `json:"chat"`
}

// Claims is the claim set of a webchat credential.
type Claims struct {
	Grants Grants `json:"grants"`
	jwt.RegisteredClaims
}

// Issuer mints signed, time-bounded webchat credentials. It is a pure
// function of its configuration and the identity; it performs no I/O.
type Issuer struct {
	accountSID string
	apiKey     string
	apiSecret  string
	serviceSID string
	ttl        time.Duration
}

// NewIssuer creates a credential issuer signing with the given key pair and
// scoping every credential to the given conversations service.
func NewIssuer(accountSID, apiKey, apiSecret, serviceSID string, ttl time.Duration) *Issuer {
	return &Issuer{
		accountSID: accountSID,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		serviceSID: serviceSID,
		ttl:        ttl,
	}
}

// Issue signs a credential for identity and returns it with its expiry.
func (i *Issuer) Issue(identity string) (string, time.Time, error) {
	if strings.TrimSpace(identity) == "" {
		return "", time.Time{}, errors.New("identity is required")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Grants: Grants{
			Identity: identity,
			Chat:     ChatGrant{ServiceSID: i.serviceSID},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        i.apiKey + "-" + uuid.NewString(),
			Issuer:    i.apiKey,
			Subject:   i.accountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["cty"] = contentType

	signed, err := tok.SignedString([]byte(i.apiSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Verifier validates previously issued credentials against the shared secret.
type Verifier struct {
	apiSecret string
}

// NewVerifier creates a credential verifier for the given signing secret.
func NewVerifier(apiSecret string) *Verifier {
	return &Verifier{apiSecret: apiSecret}
}

// Verify checks signature and expiry and returns the embedded identity.
// Any failure collapses to ErrInvalidCredential; no claim of an unverified
// token is ever returned.
func (v *Verifier) Verify(raw string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.apiSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", ErrInvalidCredential
	}

	identity := strings.TrimSpace(claims.Grants.Identity)
	if identity == "" {
		return "", ErrInvalidCredential
	}
	return identity, nil
}
