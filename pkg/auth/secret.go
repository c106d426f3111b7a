package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key-schedule parameters for the identity-derived client secret.
var clientSecretSalt = []byte("omadm-go client secret v1")

const clientSecretInfo = "dm-client-auth"

// clientSecretLen is the derived secret length in bytes before encoding.
const clientSecretLen = 16

// DeriveClientSecret derives the client authentication secret from the
// device identity. The derivation is deterministic: the same identity
// always yields the same secret, matching what the server provisions.
func DeriveClientSecret(deviceID string) (string, error) {
	if deviceID == "" {
		return "", errors.New("empty device identity")
	}

	r := hkdf.New(sha256.New, []byte(deviceID), clientSecretSalt, []byte(clientSecretInfo))
	key := make([]byte, clientSecretLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", fmt.Errorf("failed to derive client secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
