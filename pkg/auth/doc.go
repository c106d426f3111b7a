// Package auth provides the authentication material for DM sessions:
// the digest provider used to build message credentials, factory nonce
// generation, and derivation of the identity-bound client secret.
package auth
