package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

// Role names accepted by the facade.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Identity describes an authenticated caller.
type Identity struct {
	Subject string
	Role    string
}

// TokenVerifier resolves a bearer token to an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ErrInvalidToken is returned by verifiers for unknown or malformed tokens.
var ErrInvalidToken = errors.New("httpapi: invalid token")

// VerifierFunc adapts a function to the TokenVerifier interface.
type VerifierFunc func(ctx context.Context, token string) (*Identity, error)

// Verify implements TokenVerifier.
func (f VerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// StaticVerifier authenticates against a fixed token-to-identity table.
// Suitable for single-tenant deployments configured from the environment.
type StaticVerifier struct {
	identities map[string]Identity
}

// NewStaticVerifier builds a verifier from a token-to-identity map.
func NewStaticVerifier(tokens map[string]Identity) *StaticVerifier {
	m := make(map[string]Identity, len(tokens))
	for token, ident := range tokens {
		m[token] = ident
	}
	return &StaticVerifier{identities: m}
}

// Verify implements TokenVerifier using constant-time token comparison.
func (v *StaticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	for candidate, ident := range v.identities {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			out := ident
			return &out, nil
		}
	}
	return nil, ErrInvalidToken
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
