package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"golang.org/x/oauth2"
)

// LoginRedirect stores a fresh login request and navigates to the
// authorization endpoint. The status stays Login until HandleRedirect runs.
func (p *Provider) LoginRedirect(ctx context.Context) error {
	if err := p.beginInteraction(domainauth.InteractionLogin); err != nil {
		return err
	}
	authURL, err := p.prepareLogin(ctx)
	if err != nil {
		p.endInteraction()
		return err
	}
	if err := p.nav.NavigateExternal(ctx, authURL); err != nil {
		p.endInteraction()
		return fmt.Errorf("navigate to identity provider: %w", err)
	}
	return nil
}

func (p *Provider) prepareLogin(ctx context.Context) (string, error) {
	state, err := generateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	for _, kv := range [][2]string{
		{requestStateKey, state},
		{requestNonceKey, nonce},
		{requestVerifierKey, verifier},
	} {
		if err := p.storage.Set(ctx, kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("store login request: %w", err)
		}
	}

	return p.config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

type redirectResponse struct {
	code        string
	state       string
	errCode     string
	description string
}

func parseRedirectResponse(loc domainauth.Location) redirectResponse {
	q, err := url.ParseQuery(strings.TrimPrefix(loc.Query, "?"))
	if err != nil {
		return redirectResponse{}
	}
	return redirectResponse{
		code:        q.Get("code"),
		state:       q.Get("state"),
		errCode:     q.Get("error"),
		description: q.Get("error_description"),
	}
}

func (r redirectResponse) empty() bool {
	return r.code == "" && r.errCode == ""
}

// HandleRedirect completes a pending login from the navigator's current
// location. It returns nil, nil when the location carries no response or no
// login request is pending, which also ends an abandoned login.
func (p *Provider) HandleRedirect(ctx context.Context) (*domainauth.AuthResult, error) {
	resp := parseRedirectResponse(p.nav.Location())
	state, pending, err := p.storage.Get(ctx, requestStateKey)
	if err != nil {
		return nil, fmt.Errorf("read login request: %w", err)
	}
	if resp.empty() || !pending {
		if p.Status() == domainauth.InteractionLogin {
			p.logger.InfoContext(ctx, "no redirect response, ending login")
			p.endInteraction()
		}
		return nil, nil
	}

	if err := p.beginInteraction(domainauth.InteractionHandleRedirect, domainauth.InteractionLogin); err != nil {
		return nil, err
	}
	defer p.endInteraction()
	defer p.clearRequest(ctx)

	res, err := p.completeLogin(ctx, resp, state)
	if err != nil {
		p.events.Publish(domainauth.Event{Type: domainauth.EventLoginFailure, Err: err})
		return nil, err
	}
	acct := res.Account
	p.events.Publish(domainauth.Event{Type: domainauth.EventLoginSuccess, Account: &acct})
	p.logger.InfoContext(ctx, "login completed", "account", acct.Username)
	return res, nil
}

func (p *Provider) completeLogin(ctx context.Context, resp redirectResponse, state string) (*domainauth.AuthResult, error) {
	if resp.errCode != "" {
		return nil, authorizationError(resp.errCode, resp.description)
	}
	if resp.state != state {
		return nil, errors.New("state mismatch")
	}
	nonce, _, err := p.storage.Get(ctx, requestNonceKey)
	if err != nil {
		return nil, fmt.Errorf("read login request: %w", err)
	}
	verifier, _, err := p.storage.Get(ctx, requestVerifierKey)
	if err != nil {
		return nil, fmt.Errorf("read login request: %w", err)
	}

	tok, err := p.config.Exchange(p.clientContext(ctx), resp.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code for token: %w", mapTokenError(err))
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	claims, err := p.verifyIDToken(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if nonce == "" || claims.String("nonce") != nonce {
		return nil, errors.New("invalid nonce")
	}

	entry := p.entryFor(accountFromClaims(claims), rawID, tok, p.config.Scopes)
	if err := p.save(ctx, entry); err != nil {
		return nil, err
	}
	res := resultFrom(entry)
	return &res, nil
}

func (p *Provider) clearRequest(ctx context.Context) {
	err := errors.Join(
		p.storage.Delete(ctx, requestStateKey),
		p.storage.Delete(ctx, requestNonceKey),
		p.storage.Delete(ctx, requestVerifierKey),
	)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to clear login request", "error", err)
	}
}
