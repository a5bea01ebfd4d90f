// Package mocks provides mock implementations of the auth session ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockIdP := mocks.NewMockIdentityProvider(ctrl)
//	mockIdP.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).Return(result, nil)
package mocks

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods for all IdentityProvider interface methods:
// ActiveAccount, AllAccounts, SetActiveAccount, HandleRedirect, LoginRedirect, AcquireTokenSilent,
// AcquireTokenInteractive, ClearAccountCache, InteractionStatus, Events
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/target/mmk-ui-auth/internal/ports IdentityProvider

// Generate mock for SessionStorage interface from internal/ports package.
// This creates MockSessionStorage with methods for all SessionStorage interface methods:
// Get, Set, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_storage_mock.go github.com/target/mmk-ui-auth/internal/ports SessionStorage

// Generate mock for Navigator interface from internal/ports package.
// This creates MockNavigator with methods for all Navigator interface methods:
// Location, Navigate, NavigateExternal
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=navigator_mock.go github.com/target/mmk-ui-auth/internal/ports Navigator

// Generate mock for PhotoFetcher interface from internal/ports package.
// This creates MockPhotoFetcher with methods for all PhotoFetcher interface methods:
// FetchPhoto
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=photo_fetcher_mock.go github.com/target/mmk-ui-auth/internal/ports PhotoFetcher
