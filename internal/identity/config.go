package identity

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

const (
	ModeOIDC   = "oidc"
	ModeStatic = "static"
)

// Config selects how callers are resolved. Static mode attaches a fixed
// identity to every request and is intended for local development.
type Config struct {
	Mode                 string `toml:"mode"`
	Issuer               string `toml:"issuer"`
	ClientID             string `toml:"client_id"`
	OrganizationClaim    string `toml:"organization_claim"`
	RoleClaim            string `toml:"role_claim"`
	StaticUserID         string `toml:"static_user_id"`
	StaticOrganizationID string `toml:"static_organization_id"`
	StaticRole           string `toml:"static_role"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Mode                 string
	Issuer               string
	ClientID             string
	StaticUserID         string
	StaticOrganizationID string
	StaticRole           string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Mode != "" {
		c.Mode = overlay.Mode
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.OrganizationClaim != "" {
		c.OrganizationClaim = overlay.OrganizationClaim
	}
	if overlay.RoleClaim != "" {
		c.RoleClaim = overlay.RoleClaim
	}
	if overlay.StaticUserID != "" {
		c.StaticUserID = overlay.StaticUserID
	}
	if overlay.StaticOrganizationID != "" {
		c.StaticOrganizationID = overlay.StaticOrganizationID
	}
	if overlay.StaticRole != "" {
		c.StaticRole = overlay.StaticRole
	}
}

// Static returns the fixed identity configured for static mode.
func (c *Config) Static() Identity {
	org, _ := uuid.Parse(c.StaticOrganizationID)
	return Identity{
		UserID:         c.StaticUserID,
		OrganizationID: org,
		Role:           c.StaticRole,
	}
}

func (c *Config) loadDefaults() {
	if c.Mode == "" {
		c.Mode = ModeOIDC
	}
	if c.OrganizationClaim == "" {
		c.OrganizationClaim = "org_id"
	}
	if c.RoleClaim == "" {
		c.RoleClaim = "role"
	}
	if c.StaticUserID == "" {
		c.StaticUserID = "local-user"
	}
	if c.StaticRole == "" {
		c.StaticRole = "owner"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Mode != "" {
		if v := os.Getenv(env.Mode); v != "" {
			c.Mode = v
		}
	}
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.ClientID != "" {
		if v := os.Getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
	}
	if env.StaticUserID != "" {
		if v := os.Getenv(env.StaticUserID); v != "" {
			c.StaticUserID = v
		}
	}
	if env.StaticOrganizationID != "" {
		if v := os.Getenv(env.StaticOrganizationID); v != "" {
			c.StaticOrganizationID = v
		}
	}
	if env.StaticRole != "" {
		if v := os.Getenv(env.StaticRole); v != "" {
			c.StaticRole = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeOIDC:
		if c.Issuer == "" {
			return fmt.Errorf("issuer required for oidc mode")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id required for oidc mode")
		}
	case ModeStatic:
		if _, err := uuid.Parse(c.StaticOrganizationID); err != nil {
			return fmt.Errorf("invalid static_organization_id: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}
