// Package auth issues and verifies the HS256 bearer tokens of gophauth and
// resolves them to stored users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/store"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed claim set {id, username, exp}.
type Claims struct {
	UserID   string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// FailureKind classifies why a token failed verification.
type FailureKind string

const (
	FailureExpired      FailureKind = "expired"
	FailureBadSignature FailureKind = "bad-signature"
	FailureMalformed    FailureKind = "malformed"
)

// VerificationError is returned by Verify. It unwraps to common.ErrTokenExpired,
// common.ErrBadSignature or common.ErrInvalidToken.
type VerificationError struct {
	Kind FailureKind
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("token verification failed (%s): %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error {
	switch e.Kind {
	case FailureExpired:
		return common.ErrTokenExpired
	case FailureBadSignature:
		return common.ErrBadSignature
	default:
		return common.ErrInvalidToken
	}
}

// UserLookup is the part of the credential store the token service reads.
type UserLookup interface {
	FindOne(ctx context.Context, f store.Filter) (*models.User, error)
}

// Option customises a TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// TokenService signs and verifies tokens. It keeps no state besides its
// configuration, so one instance is shared by all requests.
type TokenService struct {
	secret   []byte
	validity time.Duration
	users    UserLookup
	now      func() time.Time
}

func NewTokenService(secret []byte, validity time.Duration, users UserLookup, opts ...Option) *TokenService {
	s := &TokenService{
		secret:   secret,
		validity: validity,
		users:    users,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for user valid for the configured duration.
func (s *TokenService) Issue(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.validity)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Failures are always reported as
// *VerificationError.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, &VerificationError{Kind: classify(err), Err: err}
	}

	return claims, nil
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return FailureBadSignature
	default:
		return FailureMalformed
	}
}

// Resolve maps a token to its stored user. A token that fails verification,
// lacks an id claim or points at a deleted user resolves to (nil, nil):
// no session is not an error. Only store failures are returned.
func (s *TokenService) Resolve(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, nil
	}
	if claims.UserID == "" {
		return nil, nil
	}

	user, err := s.users.FindOne(ctx, store.Filter{ID: claims.UserID})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup token user: %w", err)
	}
	return user, nil
}
