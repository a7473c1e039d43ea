// Package auth verifies identity tokens issued by the external identity
// provider. The token subject is the session key; issuance is out of scope.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
)

// Verifier validates HS256 identity tokens against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (*domain.IdentityClaims, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", domain.ErrInvalidToken)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}

	username, _ := claims["username"].(string)
	return &domain.IdentityClaims{Subject: subject, Username: username}, nil
}
