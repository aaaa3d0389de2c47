package config_test

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/dbcv/platform/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, config.SecretBoxKeySize)
}

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret_box_key")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseSecretBoxKey(t *testing.T) {
	key := testKey()

	tests := []struct {
		name    string
		raw     string
		want    []byte
		wantErr bool
	}{
		{
			name: "base64",
			raw:  base64.StdEncoding.EncodeToString(key),
			want: key,
		},
		{
			name: "hex",
			raw:  hex.EncodeToString(key),
			want: key,
		},
		{
			name: "surrounding whitespace is trimmed",
			raw:  "  " + base64.StdEncoding.EncodeToString(key) + "\n",
			want: key,
		},
		{
			name:    "base64 of the wrong length",
			raw:     base64.StdEncoding.EncodeToString(key[:16]),
			wantErr: true,
		},
		{
			name:    "hex of the wrong length",
			raw:     hex.EncodeToString(key[:31]),
			wantErr: true,
		},
		{
			name:    "url-safe base64 is rejected",
			raw:     base64.URLEncoding.EncodeToString(bytes.Repeat([]byte{0xfb}, 32)),
			wantErr: true,
		},
		{
			name:    "garbage",
			raw:     "not a key",
			wantErr: true,
		},
		{
			name:    "blank",
			raw:     "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.ParseSecretBoxKey(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidSecretBoxKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecretBoxKeyBytes(t *testing.T) {
	key := testKey()
	otherKey := bytes.Repeat([]byte{0x07}, config.SecretBoxKeySize)

	t.Run("inline key wins over files", func(t *testing.T) {
		c := config.Config{
			SecretBoxKey:     base64.StdEncoding.EncodeToString(key),
			SecretBoxKeyFile: writeKeyFile(t, hex.EncodeToString(otherKey)),
		}
		got, err := c.SecretBoxKeyBytes()
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("invalid inline key does not fall through", func(t *testing.T) {
		c := config.Config{
			SecretBoxKey:     "short",
			SecretBoxKeyFile: writeKeyFile(t, hex.EncodeToString(otherKey)),
		}
		_, err := c.SecretBoxKeyBytes()
		assert.ErrorIs(t, err, config.ErrInvalidSecretBoxKey)
	})

	t.Run("blank inline key uses the key file", func(t *testing.T) {
		c := config.Config{
			SecretBoxKey:     "   ",
			SecretBoxKeyFile: writeKeyFile(t, hex.EncodeToString(otherKey)+"\n"),
		}
		got, err := c.SecretBoxKeyBytes()
		require.NoError(t, err)
		assert.Equal(t, otherKey, got)
	})

	t.Run("missing key file falls back to default path", func(t *testing.T) {
		c := config.Config{
			SecretBoxKeyFile:        filepath.Join(t.TempDir(), "absent"),
			SecretBoxKeyDefaultPath: writeKeyFile(t, base64.StdEncoding.EncodeToString(key)),
		}
		got, err := c.SecretBoxKeyBytes()
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		c := config.Config{
			SecretBoxKeyDefaultPath: filepath.Join(t.TempDir(), "absent"),
		}
		_, err := c.SecretBoxKeyBytes()
		assert.ErrorIs(t, err, config.ErrSecretBoxKeyMissing)
	})

	t.Run("invalid key file content", func(t *testing.T) {
		c := config.Config{
			SecretBoxKeyFile: writeKeyFile(t, "garbage"),
		}
		_, err := c.SecretBoxKeyBytes()
		assert.ErrorIs(t, err, config.ErrInvalidSecretBoxKey)
	})
}

func TestSecretBoxKeyBytesReadsThroughOSInterface(t *testing.T) {
	key := testKey()

	t.Run("key file", func(t *testing.T) {
		mockOS := newMockOS()
		mockOS.envVars["SECRET_BOX_KEY_FILE"] = "/run/secrets/box"
		mockOS.files["/run/secrets/box"] = []byte(hex.EncodeToString(key) + "\n")

		cfg, err := config.ParseWithOS(config.Flags{}, mockOS)
		require.NoError(t, err)

		got, err := cfg.SecretBoxKeyBytes()
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("default path", func(t *testing.T) {
		mockOS := newMockOS()
		mockOS.files["secrets/secret_box_key"] = []byte(base64.StdEncoding.EncodeToString(key))

		cfg, err := config.ParseWithOS(config.Flags{}, mockOS)
		require.NoError(t, err)

		got, err := cfg.SecretBoxKeyBytes()
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("files only on the real filesystem are not seen", func(t *testing.T) {
		mockOS := newMockOS()
		mockOS.envVars["SECRET_BOX_KEY_FILE"] = writeKeyFile(t, hex.EncodeToString(key))

		cfg, err := config.ParseWithOS(config.Flags{}, mockOS)
		require.NoError(t, err)

		_, err = cfg.SecretBoxKeyBytes()
		assert.ErrorIs(t, err, config.ErrSecretBoxKeyMissing)
	})
}
