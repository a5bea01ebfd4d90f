package config

import (
	"errors"
	"net/url"
	"strings"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

// ProfileConfig controls how the user profile is derived.
type ProfileConfig struct {
	// PhotoEnabled turns the background photo fetch on.
	PhotoEnabled bool     `env:"PHOTO_ENABLED" envDefault:"true"`
	PhotoScopes  []string `env:"PHOTO_SCOPES"  envDefault:"User.Read"  envSeparator:";"`
	// PhotoURL overrides the Microsoft Graph photo endpoint.
	PhotoURL string `env:"PHOTO_URL"`

	// JMESPath expressions evaluated against the ID token claims.
	FirstNameClaim string `env:"FIRST_NAME_CLAIM" envDefault:"given_name"`
	LastNameClaim  string `env:"LAST_NAME_CLAIM"  envDefault:"family_name"`
	JobTitleClaim  string `env:"JOB_TITLE_CLAIM"  envDefault:"jobTitle"`
	RolesClaim     string `env:"ROLES_CLAIM"      envDefault:"roles"`
}

// Sanitize applies guardrails to profile configuration values.
func (c *ProfileConfig) Sanitize() {
	c.PhotoScopes = trimList(c.PhotoScopes)
	c.PhotoURL = strings.TrimSpace(c.PhotoURL)
	defaults := domainauth.DefaultClaimPaths()
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&c.FirstNameClaim, defaults.FirstName},
		{&c.LastNameClaim, defaults.LastName},
		{&c.JobTitleClaim, defaults.JobTitle},
		{&c.RolesClaim, defaults.Roles},
	} {
		if *f.v = strings.TrimSpace(*f.v); *f.v == "" {
			*f.v = f.def
		}
	}
}

// Validate checks the photo endpoint when one is configured.
func (c ProfileConfig) Validate() error {
	if c.PhotoURL == "" {
		return nil
	}
	u, err := url.Parse(c.PhotoURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("PROFILE_PHOTO_URL must be an absolute URL")
	}
	return nil
}

// ClaimPaths returns the configured claim expressions.
func (c ProfileConfig) ClaimPaths() domainauth.ClaimPaths {
	return domainauth.ClaimPaths{
		FirstName: c.FirstNameClaim,
		LastName:  c.LastNameClaim,
		JobTitle:  c.JobTitleClaim,
		Roles:     c.RolesClaim,
	}
}
