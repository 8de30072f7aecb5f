package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/model"
)

// contextKey is unexported so no other package can read or overwrite the
// identity stored by this middleware.
type contextKey string

const identityKey contextKey = "identity"

// Identity is who the request acts as. Exactly one of User or SuperAdmin
// is set.
type Identity struct {
	User       *model.User
	SuperAdmin bool
}

// Authenticator resolves a bearer token to a user. A nil result means the
// token is not acceptable, whatever the reason.
type Authenticator interface {
	Validate(ctx context.Context, token string) *model.User
}

// ErrorWriter renders an error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token and stores the caller's Identity in the request context.
//
// HOW A REQUEST IS CHECKED:
//  1. No header, another scheme, or an empty token → 401 "token not provided".
//  2. Token equal to masterKey (when masterKey != "") → super-admin identity,
//     no user lookup.
//  3. Otherwise authn.Validate resolves the token to a user. A nil user
//     → 401 "invalid or expired token". The response never says which
//     check failed.
//  4. The identity goes into the context and next runs.
//
// WHY CONSTANT-TIME COMPARISON?
// A plain == on strings returns as soon as two bytes differ, so response
// timing leaks how many leading bytes of a guess were right. An attacker
// can recover the master key one byte at a time that way.
// subtle.ConstantTimeCompare always looks at every byte.
//
// WHY IS THE MASTER KEY OPTIONAL?
// Anyone holding the signing secret is a super admin while it is enabled.
// Pass "" to turn that path off; tokens then always go through authn.
func RequireBearer(authn Authenticator, masterKey string, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeErr(w, r, apperror.Unauthorized("token not provided"))
				return
			}

			if masterKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(masterKey)) == 1 {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{SuperAdmin: true})))
				return
			}

			user := authn.Validate(r.Context(), token)
			if user == nil {
				writeErr(w, r, apperror.Unauthorized("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{User: user})))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by RequireBearer.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
