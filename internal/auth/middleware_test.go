package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (Guard, *Codec) {
	t.Helper()
	codec, err := NewCodec("test-signing-secret", time.Hour)
	require.NoError(t, err)
	return NewGuard(codec, "", nil), codec
}

func identityEcho(t *testing.T, captured *Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateBearerHeader(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(7, RoleMechanic)
	require.NoError(t, err)

	var got Identity
	handler := guard.Authenticate(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/mechanics/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Identity{SubjectID: 7, Role: RoleMechanic}, got)
}

func TestAuthenticateCookieFallback(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(3, RoleCustomer)
	require.NoError(t, err)

	var got Identity
	handler := guard.Authenticate(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/customers/profile", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(3), got.SubjectID)
}

func TestAuthenticateQueryFallback(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(3, RoleCustomer)
	require.NoError(t, err)

	var got Identity
	handler := guard.Authenticate(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/customers/profile?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHeaderWinsOverOtherCarriers(t *testing.T) {
	guard, codec := newTestGuard(t)
	headerToken, err := codec.Issue(1, RoleAdmin)
	require.NoError(t, err)
	cookieToken, err := codec.Issue(2, RoleCustomer)
	require.NoError(t, err)
	queryToken, err := codec.Issue(3, RoleMechanic)
	require.NoError(t, err)

	var got Identity
	handler := guard.Authenticate(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/customers?token="+queryToken, nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookieToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Identity{SubjectID: 1, Role: RoleAdmin}, got)
}

func TestAuthenticateMissingToken(t *testing.T) {
	guard, _ := newTestGuard(t)

	handler := guard.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/mechanics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Token is missing!")
}

func TestAuthenticateExpiredToken(t *testing.T) {
	guard, codec := newTestGuard(t)

	codec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := codec.Issue(5, RoleAdmin)
	require.NoError(t, err)
	codec.now = time.Now

	handler := guard.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/mechanics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Token is expired!")
}

func TestRequireRolesForbidden(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(7, RoleMechanic)
	require.NoError(t, err)

	handler := guard.RequireRoles(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/mechanics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesNoImplicitAdminOverride(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(1, RoleAdmin)
	require.NoError(t, err)

	handler := guard.RequireRoles(RoleCustomer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/customers/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesSelfSufficient(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(9, RoleAdmin)
	require.NoError(t, err)

	// No Authenticate in front: the role gate resolves the raw request.
	var got Identity
	handler := guard.RequireRoles(RoleAdmin)(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodDelete, "/customers/4", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(9), got.SubjectID)
}

func TestRequireRolesComposedAfterAuthenticate(t *testing.T) {
	guard, codec := newTestGuard(t)
	token, err := codec.Issue(9, RoleAdmin)
	require.NoError(t, err)

	var got Identity
	handler := guard.Authenticate(guard.RequireRoles(RoleAdmin)(identityEcho(t, &got)))

	req := httptest.NewRequest(http.MethodGet, "/mechanics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(9), got.SubjectID)
}

func TestRequireRolesMissingCredential(t *testing.T) {
	guard, _ := newTestGuard(t)

	handler := guard.RequireRoles(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/mechanics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
