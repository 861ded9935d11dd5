package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"

	"github.com/JaimeStill/intent/pkg/handlers"
)

// Resolver turns an inbound request into an Identity.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// New creates the resolver selected by cfg.Mode. OIDC mode performs provider
// discovery against the configured issuer.
func New(ctx context.Context, cfg *Config) (Resolver, error) {
	if cfg.Mode == ModeStatic {
		return staticResolver{id: cfg.Static()}, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}

	return NewBearer(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), cfg), nil
}

// NewBearer creates a resolver that verifies bearer tokens with verifier
// and reads organization and role from the configured claims.
func NewBearer(verifier *oidc.IDTokenVerifier, cfg *Config) Resolver {
	return &bearerResolver{
		verifier:  verifier,
		orgClaim:  cfg.OrganizationClaim,
		roleClaim: cfg.RoleClaim,
	}
}

type staticResolver struct {
	id Identity
}

func (s staticResolver) Resolve(*http.Request) (Identity, error) {
	return s.id, nil
}

type bearerResolver struct {
	verifier  *oidc.IDTokenVerifier
	orgClaim  string
	roleClaim string
}

func (b *bearerResolver) Resolve(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Identity{}, ErrUnauthenticated
	}

	token, err := b.verifier.Verify(r.Context(), raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: decode claims: %v", ErrUnauthenticated, err)
	}

	orgRaw, _ := claims[b.orgClaim].(string)
	org, err := uuid.Parse(orgRaw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: missing or invalid %s claim", ErrUnauthenticated, b.orgClaim)
	}

	role, _ := claims[b.roleClaim].(string)

	return Identity{
		UserID:         token.Subject,
		OrganizationID: org,
		Role:           role,
	}, nil
}

// Middleware rejects requests that cannot be resolved and attaches the
// resolved identity to the request context.
func Middleware(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "identity")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
