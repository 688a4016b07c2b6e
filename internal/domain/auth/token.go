// Package auth defines the access-token contract used by the HTTP boundary
// to resolve caller identity. Tokens are stored as HMAC-SHA256 hashes; the
// plaintext never reaches persistence.
package auth

import "context"

// Token holds the identity data for a validated access token.
type Token struct {
	ID      int64
	UserID  int64
	KeyHash string
	Name    string
}

// Repository provides lookup of access tokens by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Token, error)
}
