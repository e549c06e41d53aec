package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// DefaultCookieName is the session cookie checked when no bearer header is
// present.
const DefaultCookieName = "torque_token"

const queryParam = "token"

// Guard resolves identities from inbound requests and enforces role sets.
// RequireRoles is self-sufficient: it uses an identity already resolved by
// Authenticate when one is in context, and otherwise resolves the raw
// request itself, so guards compose in either order.
type Guard struct {
	codec      *Codec
	cookieName string
	logger     *slog.Logger
}

// NewGuard constructs a Guard. An empty cookieName selects DefaultCookieName.
func NewGuard(codec *Codec, cookieName string, logger *slog.Logger) Guard {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return Guard{codec: codec, cookieName: cookieName, logger: logger}
}

// Authenticate resolves the caller's identity and injects it into the
// request context, rejecting the request with 401 otherwise.
func (g Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Resolve(r)
		if err != nil {
			g.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireRoles admits the request iff the caller's role is in the permitted
// set. Unresolvable identity yields 401; a resolved identity outside the set
// yields 403. The resolved identity is injected for downstream handlers.
func (g Guard) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	permitted := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		permitted[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				resolved, err := g.Resolve(r)
				if err != nil {
					g.reject(w, r, err)
					return
				}
				id = resolved
				r = r.WithContext(ContextWithIdentity(r.Context(), id))
			}
			if _, ok := permitted[id.Role]; !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Resolve extracts a token from the request's credential carriers and
// verifies it. Carrier priority: Authorization bearer header, then the
// session cookie, then the token query parameter. First match wins.
func (g Guard) Resolve(r *http.Request) (Identity, error) {
	token, ok := g.extractToken(r)
	if !ok {
		return Identity{}, ErrTokenMissing
	}
	return g.codec.Verify(token)
}

func (g Guard) extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found && token != "" {
			return token, true
		}
	}
	if cookie, err := r.Cookie(g.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if token := r.URL.Query().Get(queryParam); token != "" {
		return token, true
	}
	return "", false
}

func (g Guard) reject(w http.ResponseWriter, r *http.Request, err error) {
	if g.logger != nil {
		g.logger.Warn("credential rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", credentialMessage(err))
}

func credentialMessage(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "Token is missing!"
	case errors.Is(err, ErrTokenExpired):
		return "Token is expired!"
	default:
		return "Token is invalid!"
	}
}
