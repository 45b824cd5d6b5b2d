package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// TenantID is informational: the tenancy guard re-reads the tenant from the
// user row and rejects tokens whose tenant no longer matches.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}
