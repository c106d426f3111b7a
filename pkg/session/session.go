package session

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/omadm-protocol/omadm-go/pkg/auth"
	"github.com/omadm-protocol/omadm-go/pkg/log"
	"github.com/omadm-protocol/omadm-go/pkg/transport"
	"github.com/omadm-protocol/omadm-go/pkg/wire"
)

// Defaults applied by New when the config leaves them zero. All of them
// are part of the observable contract and overridable per session.
const (
	DefaultServerURL      = "https://dm.example.com/syncml"
	DefaultServerID       = "DM-Server"
	DefaultServerPassword = "dmserver"
)

// Config configures a Session.
type Config struct {
	// ClientID is the device identity (e.g. "IMEI:..."). Required.
	ClientID string

	// ServerURL is the initial management endpoint. The server may
	// redirect it mid-session.
	ServerURL string

	// ServerID and ServerPassword are the server's identity and shared
	// secret.
	ServerID       string
	ServerPassword string

	// MaxMsgSize and MaxObjSize are the transport limits announced in
	// every header.
	MaxMsgSize int64
	MaxObjSize int64

	// Codec converts messages to and from the wire representation.
	// Defaults to wire.XMLCodec.
	Codec wire.Codec

	// Digest computes credential values. Defaults to auth.MD5Digest.
	Digest auth.DigestProvider

	// Logger receives protocol events. Defaults to log.NoopLogger.
	Logger log.Logger
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.ServerID == "" {
		c.ServerID = DefaultServerID
	}
	if c.ServerPassword == "" {
		c.ServerPassword = DefaultServerPassword
	}
	if c.MaxMsgSize == 0 {
		c.MaxMsgSize = wire.MaxMsgSize
	}
	if c.MaxObjSize == 0 {
		c.MaxObjSize = wire.MaxObjSize
	}
	if c.Codec == nil {
		c.Codec = wire.XMLCodec{}
	}
	if c.Digest == nil {
		c.Digest = auth.MD5Digest{}
	}
	c.Logger = log.OrNoop(c.Logger)
}

// Session drives one DM conversation. It is not safe for concurrent use:
// the message counter, nonce, endpoint and abort flag are read-then-
// written without locking, matching the protocol's half-duplex nature.
// Run one goroutine per session.
type Session struct {
	cfg       Config
	transport transport.Transport

	sessionID    string
	msgID        int
	clientSecret string
	serverURL    string
	serverNonce  []byte
	lastResp     *wire.Message
	aborted      bool
	registered   bool
}

// New creates a Session bound to a device identity and server endpoint.
// The client secret is derived here, before the session is usable, so
// the first authenticated Send never races the derivation.
func New(cfg Config, tr transport.Transport) (*Session, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("session: ClientID is required")
	}
	if tr == nil {
		return nil, errors.New("session: transport is required")
	}
	cfg.applyDefaults()

	secret, err := auth.DeriveClientSecret(cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("session: derive client secret: %w", err)
	}

	id := uuid.New()
	return &Session{
		cfg:          cfg,
		transport:    tr,
		sessionID:    strings.ToUpper(hex.EncodeToString(id[:4])),
		msgID:        1,
		clientSecret: secret,
		serverURL:    cfg.ServerURL,
	}, nil
}

// SessionID returns the conversation identifier, stable for the
// session's lifetime.
func (s *Session) SessionID() string { return s.sessionID }

// MsgID returns the current message counter.
func (s *Session) MsgID() int { return s.msgID }

// ServerURL returns the endpoint in effect, reflecting any redirect.
func (s *Session) ServerURL() string { return s.serverURL }

// Aborted reports whether the session has ended. Once true it never
// reverts.
func (s *Session) Aborted() bool { return s.aborted }

// LastResponse returns the most recently processed server response, or
// nil before the first round trip.
func (s *Session) LastResponse() *wire.Message { return s.lastResp }

// Register performs the one-time registration call. It succeeds at most
// once; later calls are no-ops. A failed registration may be retried.
func (s *Session) Register(ctx context.Context) error {
	if s.registered {
		return nil
	}
	if err := s.transport.Register(ctx, s.cfg.ClientID); err != nil {
		return &TransportError{Op: "register", Err: err}
	}
	s.registered = true
	s.cfg.Logger.Log(log.NewStateEvent(s.sessionID, "unregistered", "registered", ""))
	return nil
}

// Send performs one message round trip: build header, encode, transmit,
// decode, process. The decoded response is returned even when the server
// aborted the session in it; the abort is observable via Aborted.
//
// On a transport failure the counter and nonce are unchanged, so the
// same exchange can be retried by the caller.
func (s *Session) Send(ctx context.Context, body *wire.Body) (*wire.Message, error) {
	if s.aborted {
		return nil, ErrAborted
	}
	if err := s.Register(ctx); err != nil {
		return nil, err
	}

	hdr, err := s.buildHeader(ctx)
	if err != nil {
		return nil, err
	}
	msg := &wire.Message{Hdr: *hdr, Body: *body}

	data, err := s.cfg.Codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("session: encode message %d: %w", s.msgID, err)
	}

	s.cfg.Logger.Log(log.NewMessageEvent(s.sessionID, log.DirectionOut, s.serverURL, log.MessageEvent{
		MsgID:         s.msgID,
		Commands:      summarize(body),
		Final:         body.Final,
		Authenticated: hdr.Cred != nil,
	}))

	raw, err := s.transport.Send(ctx, s.serverURL, data)
	if err != nil {
		return nil, &TransportError{Op: "send", MsgID: s.msgID, Err: err}
	}

	resp, err := s.cfg.Codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("session: decode response to message %d: %w", s.msgID, err)
	}

	s.cfg.Logger.Log(log.NewMessageEvent(s.sessionID, log.DirectionIn, s.serverURL, log.MessageEvent{
		MsgID:    resp.Hdr.MsgID,
		Commands: summarize(&resp.Body),
		Final:    resp.Body.Final,
	}))

	s.processResponse(resp)
	s.lastResp = resp
	return resp, nil
}

// Abort ends the session. A session-abort alert is sent with the normal
// header-building logic, but a transmission failure is only logged: the
// local intent to stop sending takes effect unconditionally. Aborting an
// already-ended session is a logged no-op.
func (s *Session) Abort(ctx context.Context) error {
	if s.aborted {
		s.cfg.Logger.Log(log.NewStateEvent(s.sessionID, "aborted", "aborted", "abort of ended session"))
		return nil
	}

	body := &wire.Body{
		Commands: []wire.Command{
			&wire.Alert{CmdID: 1, Data: wire.AlertSessionAbort},
		},
		Final: true,
	}
	if _, err := s.Send(ctx, body); err != nil {
		s.cfg.Logger.Log(log.NewErrorEvent(s.sessionID, "abort", err))
	}

	if !s.aborted {
		s.cfg.Logger.Log(log.NewStateEvent(s.sessionID, "active", "aborted", "client abort"))
		s.aborted = true
	}
	return nil
}

// BuildAuthStatus constructs the status command acknowledging the
// server's SyncHdr from the previous round trip. Pure function of
// current state.
func (s *Session) BuildAuthStatus(cmdID int) *wire.Status {
	return &wire.Status{
		CmdID:     cmdID,
		MsgRef:    s.msgID - 1,
		CmdRef:    0,
		Cmd:       wire.CmdSyncHdr,
		TargetRef: s.cfg.ClientID,
		SourceRef: stripQuery(s.serverURL),
		Data:      wire.StatusAuthAccepted,
	}
}

// buildHeader assembles the SyncHdr for the next outgoing message,
// attaching a fresh credential unless the previous response acknowledged
// our authentication.
func (s *Session) buildHeader(ctx context.Context) (*wire.Header, error) {
	hdr := &wire.Header{
		VerDTD:    wire.VerDTD,
		VerProto:  wire.VerProto,
		SessionID: s.sessionID,
		MsgID:     s.msgID,
		Target:    wire.LocURI{URI: s.serverURL},
		Source:    wire.LocURI{URI: s.cfg.ClientID},
		Meta: &wire.HeaderMeta{
			MaxMsgSize: s.cfg.MaxMsgSize,
			MaxObjSize: s.cfg.MaxObjSize,
		},
	}
	if s.needsCredential() {
		cred, err := s.buildCredential(ctx)
		if err != nil {
			return nil, err
		}
		hdr.Cred = cred
	}
	return hdr, nil
}

// needsCredential reports whether the next outgoing header must carry a
// credential: always before the first response, then whenever the prior
// response did not acknowledge our SyncHdr authentication.
func (s *Session) needsCredential() bool {
	if s.lastResp == nil {
		return true
	}
	for _, st := range s.lastResp.Body.Statuses() {
		if st.Cmd == wire.CmdSyncHdr && st.Data == wire.StatusAuthAccepted {
			return false
		}
	}
	return true
}

// buildCredential computes the digest for the next message. The nonce is
// the most recent server-issued one; if the server has never issued a
// nonce, a factory nonce is generated fresh for this computation.
func (s *Session) buildCredential(ctx context.Context) (*wire.Cred, error) {
	nonce := s.serverNonce
	if len(nonce) == 0 {
		n, err := auth.FactoryNonce()
		if err != nil {
			return nil, fmt.Errorf("session: factory nonce: %w", err)
		}
		nonce = n
	}

	digest, err := s.cfg.Digest.Digest(ctx, s.cfg.ClientID, s.clientSecret, nonce)
	if err != nil {
		return nil, fmt.Errorf("session: compute digest: %w", err)
	}
	return &wire.Cred{
		Meta: wire.CredMeta{Type: s.cfg.Digest.Type(), Format: s.cfg.Digest.Format()},
		Data: digest,
	}, nil
}

// processResponse applies a decoded response to session state, in this
// order: challenge extraction, abort detection, then redirect and
// counter advancement. The counter does not advance when the server
// aborted.
func (s *Session) processResponse(resp *wire.Message) {
	for _, st := range resp.Body.Statuses() {
		if st.Chal == nil {
			continue
		}
		meta := st.Chal.Meta
		if meta.Type != s.cfg.Digest.Type() || meta.Format != s.cfg.Digest.Format() {
			s.cfg.Logger.Log(log.NewAnomalyEvent(s.sessionID, "challenge",
				fmt.Sprintf("unrecognized scheme %s/%s", meta.Type, meta.Format)))
			continue
		}
		nonce, err := base64.StdEncoding.DecodeString(meta.NextNonce)
		if err != nil {
			s.cfg.Logger.Log(log.NewAnomalyEvent(s.sessionID, "challenge",
				fmt.Sprintf("undecodable nonce: %v", err)))
			continue
		}
		s.serverNonce = nonce
	}

	for _, al := range resp.Body.Alerts() {
		if al.Data == wire.AlertSessionAbort {
			s.cfg.Logger.Log(log.NewStateEvent(s.sessionID, "active", "aborted", "server abort"))
			s.aborted = true
			return
		}
	}

	if uri := resp.Hdr.RespURI; uri != "" && uri != s.serverURL {
		s.cfg.Logger.Log(log.NewStateEvent(s.sessionID, s.serverURL, uri, "server redirect"))
		s.serverURL = uri
	}
	s.msgID++
}

// stripQuery removes any query string from a URL.
func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// summarize renders a body command list for logging, e.g.
// "Status(212) Alert(1223)".
func summarize(body *wire.Body) string {
	var parts []string
	for _, cmd := range body.Commands {
		switch c := cmd.(type) {
		case *wire.Status:
			parts = append(parts, fmt.Sprintf("Status(%s)", c.Data))
		case *wire.Alert:
			parts = append(parts, fmt.Sprintf("Alert(%s)", c.Data))
		case *wire.Replace:
			parts = append(parts, fmt.Sprintf("Replace(%d)", len(c.Items)))
		}
	}
	return strings.Join(parts, " ")
}
