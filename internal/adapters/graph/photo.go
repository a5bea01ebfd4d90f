// Package graph fetches profile data from Microsoft Graph.
package graph

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultPhotoURL is the Graph endpoint for the signed-in user's photo.
const DefaultPhotoURL = "https://graph.microsoft.com/v1.0/me/photo/$value"

const maxPhotoBytes = 4 << 20

// ErrNoPhoto is returned when the user has no profile photo.
var ErrNoPhoto = errors.New("no profile photo")

// PhotoFetcherOptions configures PhotoFetcher.
type PhotoFetcherOptions struct {
	URL        string       // Optional, defaults to DefaultPhotoURL
	HTTPClient *http.Client // Optional
	Logger     *slog.Logger // Optional
}

// PhotoFetcher implements ports.PhotoFetcher. The photo is returned inline as
// a data: URL so clients never need the access token.
type PhotoFetcher struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewPhotoFetcher constructs a PhotoFetcher.
func NewPhotoFetcher(opts PhotoFetcherOptions) *PhotoFetcher {
	url := opts.URL
	if url == "" {
		url = DefaultPhotoURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoFetcher{url: url, client: client, logger: logger.With("component", "graph_photo")}
}

// FetchPhoto downloads the photo with accessToken and encodes it as a data: URL.
func (f *PhotoFetcher) FetchPhoto(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", errors.New("access token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, f.client), ts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("build photo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch photo: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.DebugContext(ctx, "failed to close photo response", "error", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNoPhoto
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("fetch photo: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	if len(body) > maxPhotoBytes {
		return "", fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}

	contentType := "image/jpeg"
	if mt, _, parseErr := mime.ParseMediaType(resp.Header.Get("Content-Type")); parseErr == nil && mt != "" {
		contentType = mt
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
