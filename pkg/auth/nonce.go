package auth

import (
	"crypto/rand"
	"fmt"
)

// factoryNonceSuffix marks locally generated nonces. The server replaces
// a factory nonce with its own via a challenge on the first response.
const factoryNonceSuffix = "+OMADM"

// factoryNonceRandomLen is the number of random bytes in a factory nonce.
const factoryNonceRandomLen = 16

// FactoryNonce generates a fresh local nonce: random bytes followed by a
// fixed protocol suffix. A new value is produced on every call; factory
// nonces are never reused across digest computations.
func FactoryNonce() ([]byte, error) {
	buf := make([]byte, factoryNonceRandomLen, factoryNonceRandomLen+len(factoryNonceSuffix))
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return append(buf, factoryNonceSuffix...), nil
}
