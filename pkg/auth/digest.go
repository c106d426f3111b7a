package auth

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"

	"github.com/omadm-protocol/omadm-go/pkg/wire"
)

// DigestProvider computes authentication digests for outgoing message
// credentials. Type and Format identify the scheme in credential and
// challenge metadata.
type DigestProvider interface {
	// Type returns the algorithm identifier (e.g. "syncml:auth-md5").
	Type() string

	// Format returns the digest encoding identifier (e.g. "b64").
	Format() string

	// Digest computes the credential value for the given identity,
	// shared secret and nonce.
	Digest(ctx context.Context, identity, secret string, nonce []byte) (string, error)
}

// MD5Digest implements the OMA DM MD5 digest scheme:
//
//	b64(md5(b64(md5(identity ":" secret)) ":" nonce))
type MD5Digest struct{}

// Compile-time interface satisfaction check.
var _ DigestProvider = MD5Digest{}

// Type returns the MD5 scheme identifier.
func (MD5Digest) Type() string { return wire.AuthTypeMD5 }

// Format returns the base64 encoding identifier.
func (MD5Digest) Format() string { return wire.FormatB64 }

// Digest computes the MD5 credential value.
func (MD5Digest) Digest(_ context.Context, identity, secret string, nonce []byte) (string, error) {
	if identity == "" {
		return "", errors.New("empty identity")
	}
	if len(nonce) == 0 {
		return "", errors.New("empty nonce")
	}

	inner := md5.Sum([]byte(identity + ":" + secret))
	innerB64 := base64.StdEncoding.EncodeToString(inner[:])

	outer := md5.New()
	outer.Write([]byte(innerB64))
	outer.Write([]byte(":"))
	outer.Write(nonce)
	return base64.StdEncoding.EncodeToString(outer.Sum(nil)), nil
}
