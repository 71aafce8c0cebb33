// Package identity is the narrow bearer-token verification facade the
// platform delegates to an external identity provider for: it never owns
// user registration or passwords, only validates the tokens that provider
// issues and authenticates service-to-service calls via a shared secret.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/aidocs/platform/internal/config"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// Claims is the subset of the external identity provider's JWT payload the
// platform trusts.
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the external identity
// provider.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier from the configured JWT secret.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret)}
}

// Verify validates a bearer token and returns the authenticated user ID.
func (v *Verifier) Verify(ctx context.Context, bearerToken string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(bearerToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", pkgmodels.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", pkgmodels.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", pkgmodels.ErrInvalidToken
	}
	return claims.UserID, nil
}

// IssueServiceToken signs a short-lived token for internal service-to-
// service calls, where the platform itself is the issuer (e.g. the worker
// plane calling back into the API for a status update).
func (v *Verifier) IssueServiceToken(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ServiceAuthenticator checks the shared-secret header service-to-service
// callers present, hashed with bcrypt the same way the teacher's
// systemkey/servicekey services hash their API keys.
type ServiceAuthenticator struct {
	secretHash []byte
}

// NewServiceAuthenticator constructs a ServiceAuthenticator from the
// configured bcrypt hash of the shared secret.
func NewServiceAuthenticator(cfg config.AuthConfig) *ServiceAuthenticator {
	return &ServiceAuthenticator{secretHash: []byte(cfg.ServiceSharedSecretHash)}
}

// Authenticate reports whether the presented secret matches the configured
// shared secret.
func (a *ServiceAuthenticator) Authenticate(presented string) error {
	if len(a.secretHash) == 0 {
		return pkgmodels.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(a.secretHash, []byte(presented)); err != nil {
		return pkgmodels.ErrInvalidCredentials
	}
	return nil
}

// HashSecret bcrypt-hashes a shared secret for storage in configuration,
// used by the operator tooling that provisions ServiceSharedSecretHash.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash service secret: %w", err)
	}
	return string(hash), nil
}
