// Package fumo resolves firmware-update descriptor documents into
// structured firmware objects.
//
// The server references a download descriptor out-of-band (e.g. in a
// generic alert during a DM session). Resolve fetches and parses it.
// Missing or malformed server data is never fatal: the resolver logs the
// anomaly and reports ErrNotAvailable, since a server with nothing to
// offer is an expected outcome.
package fumo
