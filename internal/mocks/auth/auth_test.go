package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
)

var (
	alice = domainauth.Account{HomeAccountID: "alice-id", Username: "alice@example.com"}
	bob   = domainauth.Account{HomeAccountID: "bob-id", Username: "bob@example.com"}
)

func TestMockIdentityProvider_AccountCache(t *testing.T) {
	p := NewMockIdentityProvider(alice, bob)

	assert.Nil(t, p.ActiveAccount())
	assert.Len(t, p.AllAccounts(), 2)

	p.SetActiveAccount(&bob)
	require.NotNil(t, p.ActiveAccount())
	assert.Equal(t, "bob-id", p.ActiveAccount().HomeAccountID)
	assert.Len(t, p.SetActiveCalls(), 1)

	p.RemoveAccount("bob-id")
	assert.Nil(t, p.ActiveAccount())
	assert.Equal(t, []domainauth.Account{alice}, p.AllAccounts())
}

func TestMockIdentityProvider_ClearAccountCache(t *testing.T) {
	p := NewMockIdentityProvider(alice, bob)
	ctx := context.Background()

	require.NoError(t, p.ClearAccountCache(ctx, domainauth.ClearCacheRequest{Account: alice, CorrelationID: "c1"}))
	assert.Equal(t, []domainauth.Account{bob}, p.AllAccounts())

	p.ClearAccountCacheFunc = func(context.Context, domainauth.ClearCacheRequest) error {
		return errors.New("boom")
	}
	require.Error(t, p.ClearAccountCache(ctx, domainauth.ClearCacheRequest{Account: bob, CorrelationID: "c2"}))
	assert.Equal(t, []domainauth.Account{bob}, p.AllAccounts())
	assert.Len(t, p.ClearRequests(), 2)
}

func TestMockIdentityProvider_DefaultTokens(t *testing.T) {
	p := NewMockIdentityProvider()
	ctx := context.Background()

	res, err := p.AcquireTokenSilent(ctx, domainauth.TokenRequest{Scopes: []string{"a"}, Account: &alice})
	require.NoError(t, err)
	assert.Equal(t, "silent-token", res.AccessToken)
	assert.Equal(t, alice, res.Account)

	res, err = p.AcquireTokenInteractive(ctx, domainauth.TokenRequest{Scopes: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "interactive-token", res.AccessToken)
}

func TestMockIdentityProvider_Streams(t *testing.T) {
	p := NewMockIdentityProvider()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status := p.InteractionStatus(ctx)
	events := p.Events(ctx)
	assert.Equal(t, 2, p.Subscribers())

	select {
	case s := <-status:
		assert.Equal(t, domainauth.InteractionNone, s)
	case <-time.After(time.Second):
		t.Fatal("no initial status")
	}

	p.EmitStatus(domainauth.InteractionLogin)
	p.EmitEvent(domainauth.Event{Type: domainauth.EventLogoutSuccess})

	assert.Equal(t, domainauth.InteractionLogin, <-status)
	assert.Equal(t, domainauth.EventLogoutSuccess, (<-events).Type)
}

func TestRecordingPhotoFetcher(t *testing.T) {
	f := &RecordingPhotoFetcher{URL: "data:image/jpeg;base64,AA=="}
	url, err := f.FetchPhoto(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AA==", url)
	assert.Equal(t, []string{"tok"}, f.Tokens())
}
