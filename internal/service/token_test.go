package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/mocks"
)

var testScopes = []string{"api://mmk/user_impersonation"}

func newTestAcquirer(t *testing.T) (*TokenAcquirer, *mocks.MockIdentityProvider) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockIdentityProvider(ctrl)
	acq, err := NewTokenAcquirer(TokenAcquirerOptions{Provider: provider})
	require.NoError(t, err)
	return acq, provider
}

func TestNewTokenAcquirer_RequiresProvider(t *testing.T) {
	_, err := NewTokenAcquirer(TokenAcquirerOptions{})
	require.Error(t, err)
}

func TestTokenAcquirer_SilentSuccess(t *testing.T) {
	acq, provider := newTestAcquirer(t)

	provider.EXPECT().
		AcquireTokenSilent(gomock.Any(), domainauth.TokenRequest{Scopes: testScopes, Account: &testAlice}).
		Return(domainauth.AuthResult{AccessToken: "tok-silent"}, nil)

	token, err := acq.Acquire(context.Background(), &testAlice, testScopes)
	require.NoError(t, err)
	assert.Equal(t, "tok-silent", token)
}

func TestTokenAcquirer_InteractionRequiredEscalatesWithSameScopes(t *testing.T) {
	acq, provider := newTestAcquirer(t)

	gomock.InOrder(
		provider.EXPECT().
			AcquireTokenSilent(gomock.Any(), gomock.Any()).
			Return(domainauth.AuthResult{}, fmt.Errorf("refresh: %w", domainauth.ErrInteractionRequired)),
		provider.EXPECT().
			AcquireTokenInteractive(gomock.Any(), domainauth.TokenRequest{Scopes: testScopes}).
			Return(domainauth.AuthResult{AccessToken: "tok-interactive"}, nil),
	)

	token, err := acq.Acquire(context.Background(), &testAlice, testScopes)
	require.NoError(t, err)
	assert.Equal(t, "tok-interactive", token)
}

func TestTokenAcquirer_OtherErrorsDoNotEscalate(t *testing.T) {
	acq, provider := newTestAcquirer(t)
	netErr := errors.New("network unreachable")

	provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).Return(domainauth.AuthResult{}, netErr)
	provider.EXPECT().AcquireTokenInteractive(gomock.Any(), gomock.Any()).Times(0)

	token, err := acq.Acquire(context.Background(), &testAlice, testScopes)
	assert.Empty(t, token)
	assert.Same(t, netErr, err, "non-interaction errors are surfaced unchanged")
}

func TestTokenAcquirer_InteractiveFailure(t *testing.T) {
	acq, provider := newTestAcquirer(t)
	denied := errors.New("user cancelled")

	provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).
		Return(domainauth.AuthResult{}, domainauth.ErrInteractionRequired)
	provider.EXPECT().AcquireTokenInteractive(gomock.Any(), gomock.Any()).
		Return(domainauth.AuthResult{}, denied)

	_, err := acq.Acquire(context.Background(), &testAlice, testScopes)
	require.Error(t, err)
	assert.ErrorIs(t, err, denied)
}

func TestTokenAcquirer_NoAccount(t *testing.T) {
	acq, _ := newTestAcquirer(t)
	_, err := acq.Acquire(context.Background(), nil, testScopes)
	assert.ErrorIs(t, err, domainauth.ErrNoAccount)
}

func TestTokenAcquirer_CollapsesConcurrentIdenticalRequests(t *testing.T) {
	acq, provider := newTestAcquirer(t)

	release := make(chan struct{})
	var calls atomic.Int32
	provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domainauth.TokenRequest) (domainauth.AuthResult, error) {
			calls.Add(1)
			<-release
			return domainauth.AuthResult{AccessToken: "shared"}, nil
		}).
		Times(1)

	const callers = 5
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scopes := []string{"b", "a"}
			if i%2 == 0 {
				scopes = []string{"a", "b"}
			}
			tokens[i], _ = acq.Acquire(context.Background(), &testAlice, scopes)
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight request.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, "shared", tok)
	}
}

func TestFlightKey(t *testing.T) {
	assert.Equal(t, flightKey("a", []string{"y", "x", "x"}), flightKey("a", []string{"x", "y"}))
	assert.NotEqual(t, flightKey("a", []string{"x"}), flightKey("b", []string{"x"}))
}
