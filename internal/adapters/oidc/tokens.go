package oidc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/ports"
	"golang.org/x/oauth2"
)

// OAuth error codes that can only be resolved by the user.
var interactionErrorCodes = map[string]bool{
	"invalid_grant":        true,
	"interaction_required": true,
	"login_required":       true,
	"consent_required":     true,
}

func authorizationError(code, description string) error {
	if interactionErrorCodes[code] {
		return fmt.Errorf("%w: %s", domainauth.ErrInteractionRequired, code)
	}
	if description != "" {
		return fmt.Errorf("identity provider error %s: %s", code, description)
	}
	return fmt.Errorf("identity provider error %s", code)
}

func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && interactionErrorCodes[re.ErrorCode] {
		return fmt.Errorf("%w: %s", domainauth.ErrInteractionRequired, re.ErrorCode)
	}
	return err
}

// AcquireTokenSilent serves a cached access token covering req.Scopes or
// refreshes it. Anything only the user can fix is ErrInteractionRequired.
func (p *Provider) AcquireTokenSilent(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	if req.Account == nil {
		return domainauth.AuthResult{}, domainauth.ErrNoAccount
	}
	entry, ok := p.lookup(req.Account.HomeAccountID)
	if !ok {
		return domainauth.AuthResult{}, fmt.Errorf("%w: account not cached", domainauth.ErrInteractionRequired)
	}
	if p.usable(entry, req.Scopes) {
		return resultFrom(entry), nil
	}
	if entry.RefreshToken == "" {
		return domainauth.AuthResult{}, fmt.Errorf("%w: no refresh token", domainauth.ErrInteractionRequired)
	}

	cfg := p.scopedConfig(req.Scopes)
	tok, err := cfg.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: entry.RefreshToken}).Token()
	if err != nil {
		return domainauth.AuthResult{}, fmt.Errorf("refresh token: %w", mapTokenError(err))
	}

	acct, rawID := entry.Account, entry.IDToken
	if id, idErr := getIDTokenFromToken(tok); idErr == nil {
		claims, verifyErr := p.verifyIDToken(ctx, id)
		if verifyErr != nil {
			return domainauth.AuthResult{}, verifyErr
		}
		acct, rawID = accountFromClaims(claims), id
	}
	next := p.entryFor(acct, rawID, tok, cfg.Scopes)
	if next.RefreshToken == "" {
		next.RefreshToken = entry.RefreshToken
	}
	if err := p.save(ctx, next); err != nil {
		return domainauth.AuthResult{}, err
	}
	p.logger.DebugContext(ctx, "refreshed access token", "account", acct.Username)
	return resultFrom(next), nil
}

// AcquireTokenInteractive runs the device authorization grant. The requested
// account is ignored; whoever completes the prompt becomes the result.
func (p *Provider) AcquireTokenInteractive(ctx context.Context, req domainauth.TokenRequest) (domainauth.AuthResult, error) {
	if err := p.beginInteraction(domainauth.InteractionAcquireToken); err != nil {
		return domainauth.AuthResult{}, err
	}
	defer p.endInteraction()

	res, err := p.deviceLogin(ctx, req.Scopes)
	if err != nil {
		p.events.Publish(domainauth.Event{Type: domainauth.EventAcquireTokenFailure, Err: err})
		return domainauth.AuthResult{}, err
	}
	acct := res.Account
	p.events.Publish(domainauth.Event{Type: domainauth.EventAcquireTokenSuccess, Account: &acct})
	return res, nil
}

func (p *Provider) deviceLogin(ctx context.Context, scopes []string) (domainauth.AuthResult, error) {
	cfg := p.scopedConfig(scopes)
	if cfg.Endpoint.DeviceAuthURL == "" {
		return domainauth.AuthResult{}, errors.New("identity provider does not support device authorization")
	}
	cctx := p.clientContext(ctx)
	da, err := cfg.DeviceAuth(cctx)
	if err != nil {
		return domainauth.AuthResult{}, fmt.Errorf("device authorization: %w", err)
	}
	if err := p.prompt(ctx, da); err != nil {
		return domainauth.AuthResult{}, fmt.Errorf("device prompt: %w", err)
	}
	tok, err := cfg.DeviceAccessToken(cctx, da)
	if err != nil {
		return domainauth.AuthResult{}, fmt.Errorf("device access token: %w", err)
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	claims, err := p.verifyIDToken(ctx, rawID)
	if err != nil {
		return domainauth.AuthResult{}, err
	}
	entry := p.entryFor(accountFromClaims(claims), rawID, tok, cfg.Scopes)
	if err := p.save(ctx, entry); err != nil {
		return domainauth.AuthResult{}, err
	}
	return resultFrom(entry), nil
}

func (p *Provider) scopedConfig(scopes []string) *oauth2.Config {
	cfg := *p.config
	cfg.Scopes = mergeScopes(defaultScopes, scopes)
	return &cfg
}

// usable reports whether entry holds an unexpired access token covering scopes.
func (p *Provider) usable(entry ports.CachedAccount, scopes []string) bool {
	if entry.AccessToken == "" || !p.now().Add(expirySkew).Before(entry.ExpiresAt) {
		return false
	}
	for _, s := range scopes {
		if !slices.Contains(entry.Scopes, s) {
			return false
		}
	}
	return true
}

func (p *Provider) entryFor(acct domainauth.Account, rawID string, tok *oauth2.Token, requested []string) ports.CachedAccount {
	expires := tok.Expiry
	if expires.IsZero() {
		expires = p.now().Add(time.Hour)
	}
	scopes := requested
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		scopes = mergeScopes(strings.Fields(granted), requested)
	}
	return ports.CachedAccount{
		Account:      acct,
		IDToken:      rawID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scopes:       scopes,
		ExpiresAt:    expires,
	}
}

func resultFrom(entry ports.CachedAccount) domainauth.AuthResult {
	return domainauth.AuthResult{
		Account:     entry.Account,
		AccessToken: entry.AccessToken,
		IDToken:     entry.IDToken,
		Scopes:      append([]string(nil), entry.Scopes...),
		ExpiresOn:   entry.ExpiresAt,
	}
}

func (p *Provider) verifyIDToken(ctx context.Context, rawID string) (domainauth.Claims, error) {
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	var claims domainauth.Claims
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}
	return claims, nil
}

// accountFromClaims builds the cached account for a verified ID token. Entra
// accounts are keyed by object and tenant ID, others by subject.
func accountFromClaims(claims domainauth.Claims) domainauth.Account {
	home := claims.String("sub")
	if oid, tid := claims.String("oid"), claims.String("tid"); oid != "" && tid != "" {
		home = oid + "." + tid
	}
	username := firstNonEmpty(claims.String("preferred_username"), claims.String("email"),
		claims.String("upn"), claims.String("sub"))
	return domainauth.Account{
		HomeAccountID: home,
		Username:      username,
		DisplayName:   firstNonEmpty(claims.String("name"), username),
		Claims:        claims,
	}
}

// decodeClaims reads the claims of a previously verified ID token.
func decodeClaims(rawID string) (domainauth.Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawID, claims); err != nil {
		return nil, fmt.Errorf("decode id_token: %w", err)
	}
	return domainauth.Claims(claims), nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
