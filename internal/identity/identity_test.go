package identity_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/intent/internal/identity"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "intent-api"
)

// payloadKeySet accepts any signature and returns the token payload.
type payloadKeySet struct{}

func (payloadKeySet) VerifySignature(_ context.Context, jwt string) ([]byte, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

func token(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT", "kid": "test"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("signature"))
}

func baseClaims(org string) map[string]any {
	return map[string]any{
		"iss":    testIssuer,
		"aud":    testClientID,
		"sub":    "user-1",
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Add(-time.Minute).Unix(),
		"org_id": org,
		"role":   "editor",
	}
}

func bearerResolver(t *testing.T) identity.Resolver {
	t.Helper()
	cfg := &identity.Config{Mode: identity.ModeOIDC, Issuer: testIssuer, ClientID: testClientID}
	require.NoError(t, cfg.Finalize(nil))

	verifier := oidc.NewVerifier(testIssuer, payloadKeySet{}, &oidc.Config{ClientID: testClientID})
	return identity.NewBearer(verifier, cfg)
}

func TestBearerResolve(t *testing.T) {
	org := uuid.New()
	resolver := bearerResolver(t)

	req := httptest.NewRequest("GET", "/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, baseClaims(org.String())))

	id, err := resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, org, id.OrganizationID)
	assert.Equal(t, "editor", id.Role)
}

func TestBearerResolveRejects(t *testing.T) {
	resolver := bearerResolver(t)

	t.Run("missing header", func(t *testing.T) {
		_, err := resolver.Resolve(httptest.NewRequest("GET", "/", nil))
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})

	t.Run("missing organization claim", func(t *testing.T) {
		claims := baseClaims("")
		delete(claims, "org_id")

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, claims))

		_, err := resolver.Resolve(req)
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := baseClaims(uuid.NewString())
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, claims))

		_, err := resolver.Resolve(req)
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	org := uuid.New()

	cfg := &identity.Config{Mode: identity.ModeStatic, StaticOrganizationID: org.String()}
	require.NoError(t, cfg.Finalize(nil))

	resolver, err := identity.New(context.Background(), cfg)
	require.NoError(t, err)

	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.Organization(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	identity.Middleware(resolver, logger)(next).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, org, seen)
}

func TestMiddlewareUnauthorized(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	identity.Middleware(bearerResolver(t), logger)(next).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestOrganizationWithoutIdentity(t *testing.T) {
	_, err := identity.Organization(context.Background())
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestConfigFinalize(t *testing.T) {
	t.Run("oidc requires issuer", func(t *testing.T) {
		cfg := &identity.Config{}
		assert.Error(t, cfg.Finalize(nil))
	})

	t.Run("static requires organization", func(t *testing.T) {
		cfg := &identity.Config{Mode: identity.ModeStatic, StaticOrganizationID: "nope"}
		assert.Error(t, cfg.Finalize(nil))
	})

	t.Run("env overrides", func(t *testing.T) {
		org := uuid.NewString()
		t.Setenv("TEST_IDENTITY_MODE", identity.ModeStatic)
		t.Setenv("TEST_IDENTITY_ORG", org)

		cfg := &identity.Config{}
		err := cfg.Finalize(&identity.Env{Mode: "TEST_IDENTITY_MODE", StaticOrganizationID: "TEST_IDENTITY_ORG"})
		require.NoError(t, err)
		assert.Equal(t, org, cfg.Static().OrganizationID.String())
		assert.Equal(t, "org_id", cfg.OrganizationClaim)
	})
}
