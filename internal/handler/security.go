package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/xenking/digigoods/internal/domain/auth"
)

// callerKey is the context key for the authenticated caller's user ID.
type callerKey struct{}

// CallerID extracts the authenticated user ID from the context. The second
// return value is false when the request was not authenticated.
func CallerID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(callerKey{}).(int64)
	return id, ok
}

// Auth returns a middleware that authenticates requests via bearer access
// tokens. The presented token is hashed with HMAC-SHA256 and the given
// pepper, looked up in the repository, and compared in constant time. On
// success the resolved user ID is stored in the request context; the domain
// layer trusts this identity, never a payload field.
func Auth(tokens auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing access token")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(token))
			hash := mac.Sum(nil)

			info, err := tokens.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			// Constant-time comparison guards against timing side-channels
			// even though the lookup already succeeded.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, info.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
