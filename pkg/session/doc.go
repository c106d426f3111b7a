// Package session implements the DM session engine: message sequencing,
// credential generation, nonce lifecycle, and interpretation of server
// responses (challenges, aborts, redirects).
//
// A Session drives one conversation with a management server. It is an
// exclusive-owner state machine: all mutation flows through Send, Abort
// and response processing, and no two of those calls may run
// concurrently against the same Session. Distinct Sessions are fully
// independent and may run in parallel.
package session
