package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/digigoods/internal/domain/auth"
)

const getTokenByHashSQL = `SELECT id, user_id, token_hash, name FROM access_tokens WHERE token_hash = $1`

// ErrTokenNotFound is returned when no access token matches the given hash.
var ErrTokenNotFound = errors.New("access token not found")

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository implements auth.Repository backed by PostgreSQL.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindByHash looks up an access token by its HMAC-SHA256 hash.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.Token, error) {
	rows, err := r.pool.Query(ctx, getTokenByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding access token: %w", err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[auth.Token])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("finding access token: %w", err)
	}
	return &t, nil
}
