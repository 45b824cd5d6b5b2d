// Package tenancy turns a bearer credential into a Principal whose tenant and
// role come from the stored user, never from client input.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-console/internal/auth"
	"agent-console/internal/directory"
	"agent-console/internal/rbac"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated   = errors.New("tenancy: unauthenticated")
	ErrPrincipalNotFound = errors.New("tenancy: principal not found")
)

// Principal is the authenticated caller for one request.
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     rbac.Role
	Email    string
}

type UserLookup interface {
	UserByID(ctx context.Context, userID uuid.UUID) (directory.User, error)
}

type Guard struct {
	tokens *auth.Manager
	users  UserLookup
	clock  func() time.Time
}

func NewGuard(tokens *auth.Manager, users UserLookup) *Guard {
	return &Guard{tokens: tokens, users: users, clock: time.Now}
}

// Resolve validates an access token and loads its user.
func (g *Guard) Resolve(ctx context.Context, credential string) (Principal, error) {
	return g.resolve(ctx, credential, auth.TokenTypeAccess)
}

// ResolveRefresh is Resolve for refresh tokens.
func (g *Guard) ResolveRefresh(ctx context.Context, credential string) (Principal, error) {
	return g.resolve(ctx, credential, auth.TokenTypeRefresh)
}

func (g *Guard) resolve(ctx context.Context, credential string, typ auth.TokenType) (Principal, error) {
	if credential == "" {
		return Principal{}, fmt.Errorf("%w: missing credential", ErrUnauthenticated)
	}
	claims, err := g.tokens.Verify(credential, typ, g.clock())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: malformed user id", ErrUnauthenticated)
	}

	u, err := g.users.UserByID(ctx, userID)
	if errors.Is(err, directory.ErrNotFound) {
		return Principal{}, ErrPrincipalNotFound
	}
	if err != nil {
		return Principal{}, err
	}
	if !u.Active {
		return Principal{}, fmt.Errorf("%w: user inactive", ErrPrincipalNotFound)
	}
	// A token minted for another tenant is never honoured, even if the user moved.
	if claims.TenantID != u.TenantID.String() {
		return Principal{}, fmt.Errorf("%w: tenant mismatch", ErrUnauthenticated)
	}

	return Principal{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Role:     u.Role,
		Email:    u.Email,
	}, nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
