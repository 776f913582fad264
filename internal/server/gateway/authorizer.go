// Package gateway authenticates inbound calls. It extracts the bearer
// credential, resolves it to a user and attaches the resulting Session to
// the request context before any handler runs.
package gateway

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Requirement states whether an operation needs an authenticated caller.
type Requirement int

const (
	AuthOptional Requirement = iota
	AuthRequired
)

// TokenResolver maps a raw token to its user; nil means no session.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
}

type Authorizer struct {
	resolver TokenResolver
	logger   logging.Logger
}

func NewAuthorizer(resolver TokenResolver, logger logging.Logger) *Authorizer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Authorizer{resolver: resolver, logger: logger.With("module", "gateway")}
}

// ParseAuthorization extracts the token from a "<scheme> <token>" header
// value. Only the schemes in common.AuthSchemes are accepted.
func ParseAuthorization(header string) (string, bool) {
	for _, scheme := range common.AuthSchemes {
		if token, ok := strings.CutPrefix(header, scheme+" "); ok {
			token = strings.TrimSpace(token)
			return token, token != ""
		}
	}
	return "", false
}

// Authorize resolves the credential in header. Resolution failures are
// logged and treated as anonymous. When req is AuthRequired and no user
// was resolved it returns common.ErrUnauthorized; otherwise it returns ctx
// with the Session attached when one exists.
func (a *Authorizer) Authorize(ctx context.Context, header string, req Requirement) (context.Context, error) {
	var user *models.User

	token, ok := ParseAuthorization(header)
	if ok {
		u, err := a.resolver.ResolveToken(ctx, token)
		if err != nil {
			a.logger.Warn(ctx, "token resolution failed", "error", err)
		} else {
			user = u
		}
	}

	if user == nil {
		if req == AuthRequired {
			return ctx, common.ErrUnauthorized
		}
		return ctx, nil
	}

	a.logger.Info(ctx, "Authenticated via JWT", "username", user.Username)
	return WithSession(ctx, Session{User: user, Token: token}), nil
}
