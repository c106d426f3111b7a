// Package log provides structured protocol logging for DM sessions.
//
// This package defines the Logger interface and Event types for capturing
// session-level protocol events: messages in and out, session state
// changes, and tolerated anomalies (unrecognized challenges, malformed
// descriptor data). It is separate from operational logging (slog) -
// protocol capture provides a machine-readable trace of a session for
// debugging and analysis.
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/dm/session.dmlog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// Log files use CBOR encoding with .dmlog extension; Reader streams them
// back with optional filtering.
package log
