package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/mmk-ui-auth/internal/domain/auth"
	"github.com/target/mmk-ui-auth/internal/mocks"
	authmocks "github.com/target/mmk-ui-auth/internal/mocks/auth"
)

type stubTokens struct {
	token string
	err   error
}

func (s stubTokens) Acquire(context.Context, *domainauth.Account, []string) (string, error) {
	return s.token, s.err
}

func TestProfileCache_RefreshPublishesClaimsImmediately(t *testing.T) {
	cache, err := NewProfileCache(ProfileCacheOptions{})
	require.NoError(t, err)

	cache.Refresh(context.Background(), &testAlice)

	want := &domainauth.UserProfile{
		DisplayName: "Alice Example",
		Email:       "alice@example.com",
		Username:    "alice@example.com",
		FirstName:   "Alice",
		LastName:    "Example",
		JobTitle:    "Engineer",
		Roles:       []string{"reader", "writer"},
		Claims:      testAlice.Claims,
	}
	if diff := cmp.Diff(want, cache.Current()); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileCache_AccountWithoutClaims(t *testing.T) {
	cache, err := NewProfileCache(ProfileCacheOptions{})
	require.NoError(t, err)

	cache.Refresh(context.Background(), &testBob)

	got := cache.Current()
	require.NotNil(t, got)
	assert.Equal(t, "Bob Example", got.DisplayName)
	assert.Equal(t, []string{}, got.Roles)
	assert.Empty(t, got.FirstName)
}

func TestProfileCache_CustomClaimPaths(t *testing.T) {
	paths := domainauth.ClaimPaths{
		FirstName: "name.first",
		LastName:  "name.last",
		JobTitle:  "extension_title",
		Roles:     "groups[?starts_with(@, 'mmk-')]",
	}
	cache, err := NewProfileCache(ProfileCacheOptions{ClaimPaths: &paths})
	require.NoError(t, err)

	acct := domainauth.Account{
		HomeAccountID: "c",
		Claims: domainauth.Claims{
			"name":            map[string]any{"first": "Carol", "last": "Jones"},
			"extension_title": "SRE",
			"groups":          []any{"mmk-admin", "other"},
		},
	}
	cache.Refresh(context.Background(), &acct)

	got := cache.Current()
	require.NotNil(t, got)
	assert.Equal(t, "Carol", got.FirstName)
	assert.Equal(t, "Jones", got.LastName)
	assert.Equal(t, "SRE", got.JobTitle)
	assert.Equal(t, []string{"mmk-admin"}, got.Roles)
}

func TestNewProfileCache_Validation(t *testing.T) {
	paths := domainauth.ClaimPaths{FirstName: "given_name[", Roles: "roles"}
	_, err := NewProfileCache(ProfileCacheOptions{ClaimPaths: &paths})
	require.Error(t, err)

	_, err = NewProfileCache(ProfileCacheOptions{Photos: &authmocks.RecordingPhotoFetcher{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tokens is required")
}

func TestProfileCache_PhotoDecoratesProfile(t *testing.T) {
	photos := &authmocks.RecordingPhotoFetcher{URL: "data:image/jpeg;base64,AAAA"}
	cache, err := NewProfileCache(ProfileCacheOptions{
		Tokens: stubTokens{token: "graph-token"},
		Photos: photos,
	})
	require.NoError(t, err)

	cache.Refresh(context.Background(), &testAlice)
	cache.wait()

	got := cache.Current()
	require.NotNil(t, got)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", got.PhotoURL)
	assert.Equal(t, "Alice", got.FirstName)
	assert.Equal(t, []string{"graph-token"}, photos.Tokens())
}

func TestProfileCache_PhotoFailureLeavesProfileIntact(t *testing.T) {
	tests := []struct {
		name   string
		tokens stubTokens
		photos *authmocks.RecordingPhotoFetcher
	}{
		{name: "token error", tokens: stubTokens{err: errors.New("no consent")}, photos: &authmocks.RecordingPhotoFetcher{URL: "x"}},
		{name: "fetch error", tokens: stubTokens{token: "t"}, photos: &authmocks.RecordingPhotoFetcher{Err: errors.New("404")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, err := NewProfileCache(ProfileCacheOptions{Tokens: tt.tokens, Photos: tt.photos})
			require.NoError(t, err)

			cache.Refresh(context.Background(), &testAlice)
			cache.wait()

			got := cache.Current()
			require.NotNil(t, got)
			assert.Empty(t, got.PhotoURL)
			assert.Equal(t, "Alice Example", got.DisplayName)
		})
	}
}

func blockingPhotoFetcher(t *testing.T) (*mocks.MockPhotoFetcher, chan struct{}) {
	t.Helper()
	ctrl := gomock.NewController(t)
	photos := mocks.NewMockPhotoFetcher(ctrl)
	release := make(chan struct{})
	photos.EXPECT().FetchPhoto(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string) (string, error) {
			<-release
			return "data:image/png;base64,STALE", nil
		}).
		AnyTimes()
	return photos, release
}

func TestProfileCache_ClearDiscardsInFlightPhoto(t *testing.T) {
	photos, release := blockingPhotoFetcher(t)
	cache, err := NewProfileCache(ProfileCacheOptions{Tokens: stubTokens{token: "t"}, Photos: photos})
	require.NoError(t, err)

	cache.Refresh(context.Background(), &testAlice)
	cache.Clear()
	close(release)
	cache.wait()

	assert.Nil(t, cache.Current())
}

type accountTokens struct{}

func (accountTokens) Acquire(_ context.Context, account *domainauth.Account, _ []string) (string, error) {
	return account.HomeAccountID, nil
}

func TestProfileCache_AccountSwitchDiscardsStalePhoto(t *testing.T) {
	ctrl := gomock.NewController(t)
	photos := mocks.NewMockPhotoFetcher(ctrl)
	release := make(chan struct{})
	photos.EXPECT().FetchPhoto(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, token string) (string, error) {
			<-release
			return "photo-" + token, nil
		}).
		Times(2)

	cache, err := NewProfileCache(ProfileCacheOptions{Tokens: accountTokens{}, Photos: photos})
	require.NoError(t, err)

	cache.Refresh(context.Background(), &testAlice)
	cache.Refresh(context.Background(), &testBob)
	close(release)
	cache.wait()

	got := cache.Current()
	require.NotNil(t, got)
	assert.Equal(t, "bob@example.com", got.Username)
	assert.Equal(t, "photo-bob-id", got.PhotoURL)
}

func TestProfileCache_RefreshNilClears(t *testing.T) {
	cache, err := NewProfileCache(ProfileCacheOptions{})
	require.NoError(t, err)

	unsub, ch := cache.Profile().Subscribe()
	defer unsub()
	assert.Nil(t, <-ch)

	cache.Refresh(context.Background(), &testAlice)
	select {
	case p := <-ch:
		require.NotNil(t, p)
	case <-time.After(time.Second):
		t.Fatal("profile not published")
	}

	cache.Refresh(context.Background(), nil)
	assert.Nil(t, cache.Current())
}

func TestProfileCache_Claims(t *testing.T) {
	cache, err := NewProfileCache(ProfileCacheOptions{})
	require.NoError(t, err)

	acct := domainauth.Account{Claims: domainauth.Claims{
		"nonce": "n",
		"aud":   "a",
		"iss":   "i",
		"name":  "Alice",
		"roles": []any{"r1"},
	}}
	got := cache.Claims(&acct)
	assert.Equal(t, []domainauth.ClaimEntry{
		{Name: "name", Value: "Alice"},
		{Name: "roles", Value: `["r1"]`},
	}, got)
	assert.Nil(t, cache.Claims(nil))
}

func TestProfileCache_CloseClosesSubscribers(t *testing.T) {
	cache, err := NewProfileCache(ProfileCacheOptions{})
	require.NoError(t, err)
	_, ch := cache.Profile().Subscribe()
	<-ch

	cache.Close()
	_, ok := <-ch
	assert.False(t, ok)
}
