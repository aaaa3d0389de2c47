package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const SecretBoxKeySize = 32

var (
	ErrSecretBoxKeyMissing = errors.New("SECRET_BOX_KEY is not configured: set SECRET_BOX_KEY, SECRET_BOX_KEY_FILE or provide the default key file")
	ErrInvalidSecretBoxKey = errors.New("SECRET_BOX_KEY must be 32 bytes encoded as base64 or hex")
)

// SecretBoxKeyBytes returns the 32-byte symmetric key used to seal bot
// credentials. Sources are tried in order: the inline SECRET_BOX_KEY value,
// the SECRET_BOX_KEY_FILE path and finally SECRET_BOX_KEY_DEFAULT_PATH. An
// inline value that fails to decode is an error, it never falls through to
// the files.
func (c *Config) SecretBoxKeyBytes() ([]byte, error) {
	if strings.TrimSpace(c.SecretBoxKey) != "" {
		return ParseSecretBoxKey(c.SecretBoxKey)
	}

	fs := c.osInterface
	if fs == nil {
		fs = defaultOS
	}
	for _, path := range []string{c.SecretBoxKeyFile, c.SecretBoxKeyDefaultPath} {
		if path == "" || !fs.Exists(path) {
			continue
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading secret box key file %s: %w", path, err)
		}
		return ParseSecretBoxKey(string(data))
	}

	return nil, ErrSecretBoxKeyMissing
}

// ParseSecretBoxKey decodes a trimmed key as strict standard base64 first and
// hex second. Either decoding must produce exactly 32 bytes.
func ParseSecretBoxKey(raw string) ([]byte, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, ErrInvalidSecretBoxKey
	}

	if key, err := base64.StdEncoding.Strict().DecodeString(value); err == nil && len(key) == SecretBoxKeySize {
		return key, nil
	}

	if key, err := hex.DecodeString(value); err == nil && len(key) == SecretBoxKeySize {
		return key, nil
	}

	return nil, ErrInvalidSecretBoxKey
}
