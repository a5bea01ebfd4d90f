package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-ui-auth/internal/data/cryptoutil"
)

// CreateEncryptor builds the encryptor for cached refresh tokens. Without a
// key, development falls back to the noop encryptor and production fails.
//
//nolint:ireturn // callers only need the Encryptor behavior.
func CreateEncryptor(key string, isDev bool, logger *slog.Logger) (cryptoutil.Encryptor, error) {
	if key == "" {
		if !isDev {
			return nil, errors.New("SECRETS_ENCRYPTION_KEY is required outside development")
		}
		if logger != nil {
			logger.Warn("encryption key is empty, cached tokens are stored unencrypted")
		}
		return &cryptoutil.NoopEncryptor{}, nil
	}

	enc, err := cryptoutil.FromKey(key)
	if err != nil {
		return nil, fmt.Errorf("create encryptor: %w", err)
	}
	return enc, nil
}
