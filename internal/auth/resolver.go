package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/giftorder/internal/domain"
)

const bearerPrefix = "Bearer "

// MemberFinder looks a member up by email. It returns nil, nil when no
// member has that email.
type MemberFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.Member, error)
}

// Principal is the outcome of authentication: either an authenticated
// member or anonymous (the zero value).
type Principal struct {
	member *domain.Member
}

func Authenticated(member *domain.Member) Principal {
	return Principal{member: member}
}

// Anonymous is the principal of a request without usable credentials.
var Anonymous = Principal{}

func (p Principal) IsAuthenticated() bool {
	return p.member != nil
}

// Member returns the authenticated member, or nil for Anonymous.
func (p Principal) Member() *domain.Member {
	return p.member
}

// Resolver turns an Authorization header value into a Principal. It never
// fails: every problem with the credential collapses into Anonymous.
type Resolver struct {
	verifier TokenVerifier
	members  MemberFinder
	logger   *slog.Logger
}

func NewResolver(verifier TokenVerifier, members MemberFinder, logger *slog.Logger) *Resolver {
	return &Resolver{
		verifier: verifier,
		members:  members,
		logger:   logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, authorization string) Principal {
	token := strings.TrimPrefix(authorization, bearerPrefix)

	email, err := r.verifier.Decode(token)
	if err != nil {
		r.logger.DebugContext(ctx, "token rejected", "error", err)
		return Anonymous
	}

	member, err := r.members.FindByEmail(ctx, email)
	if err != nil {
		r.logger.WarnContext(ctx, "member lookup failed during authentication", "error", err)
		return Anonymous
	}
	if member == nil {
		r.logger.DebugContext(ctx, "token subject has no member", "email", email)
		return Anonymous
	}

	return Authenticated(member)
}
