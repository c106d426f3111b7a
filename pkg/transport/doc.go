// Package transport moves encoded DM messages over HTTP(S).
//
// The Transport interface covers the three network operations the
// session engine and descriptor resolver need: one-time device
// registration, posting an encoded message and returning the encoded
// response, and fetching a descriptor document. HTTPTransport is the
// production implementation; tests substitute fakes.
package transport
