package session_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omadm-protocol/omadm-go/pkg/session"
	"github.com/omadm-protocol/omadm-go/pkg/wire"
)

// fakeTransport scripts server responses and records everything the
// session sends.
type fakeTransport struct {
	registerCalls int
	registerErr   error

	sendCalls  int
	sendURLs   []string
	sendBodies [][]byte
	sendErr    error
	responses  [][]byte
}

func (f *fakeTransport) Register(_ context.Context, _ string) error {
	f.registerCalls++
	return f.registerErr
}

func (f *fakeTransport) Send(_ context.Context, url string, body []byte) ([]byte, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sendURLs = append(f.sendURLs, url)
	f.sendBodies = append(f.sendBodies, body)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeTransport) FetchDocument(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (f *fakeTransport) queue(t *testing.T, resp *wire.Message) {
	t.Helper()
	data, err := wire.XMLCodec{}.Encode(resp)
	require.NoError(t, err)
	f.responses = append(f.responses, data)
}

// recordingDigest records every nonce it is asked to digest.
type recordingDigest struct {
	nonces [][]byte
}

func (d *recordingDigest) Type() string   { return wire.AuthTypeMD5 }
func (d *recordingDigest) Format() string { return wire.FormatB64 }

func (d *recordingDigest) Digest(_ context.Context, _, _ string, nonce []byte) (string, error) {
	d.nonces = append(d.nonces, append([]byte(nil), nonce...))
	return "digest-" + strconv.Itoa(len(d.nonces)), nil
}

const testClientID = "IMEI:490154203237518"

func newTestSession(t *testing.T, tr *fakeTransport, digest *recordingDigest) *session.Session {
	t.Helper()
	cfg := session.Config{
		ClientID:  testClientID,
		ServerURL: "https://dm.test.example/syncml",
	}
	if digest != nil {
		cfg.Digest = digest
	}
	s, err := session.New(cfg, tr)
	require.NoError(t, err)
	return s
}

// serverResponse builds a minimal valid server message.
func serverResponse(msgID int, cmds []wire.Command, respURI string) *wire.Message {
	return &wire.Message{
		Hdr: wire.Header{
			VerDTD:    wire.VerDTD,
			VerProto:  wire.VerProto,
			SessionID: "SRV",
			MsgID:     msgID,
			Target:    wire.LocURI{URI: testClientID},
			Source:    wire.LocURI{URI: "https://dm.test.example/syncml"},
			RespURI:   respURI,
		},
		Body: wire.Body{Commands: cmds, Final: true},
	}
}

func authAccepted() wire.Command {
	return &wire.Status{
		CmdID: 1, MsgRef: 1, CmdRef: 0,
		Cmd:  wire.CmdSyncHdr,
		Data: wire.StatusAuthAccepted,
	}
}

func challenge(scheme, format, nonceB64 string) wire.Command {
	return &wire.Status{
		CmdID: 1, MsgRef: 1, CmdRef: 0,
		Cmd:  wire.CmdSyncHdr,
		Data: wire.StatusUnauthorized,
		Chal: &wire.Chal{Meta: wire.ChalMeta{Type: scheme, Format: format, NextNonce: nonceB64}},
	}
}

func decodeSent(t *testing.T, data []byte) *wire.Message {
	t.Helper()
	msg, err := wire.XMLCodec{}.Decode(data)
	require.NoError(t, err)
	return msg
}

func simpleBody() *wire.Body {
	return &wire.Body{
		Commands: []wire.Command{&wire.Alert{CmdID: 1, Data: wire.AlertClientSession}},
		Final:    true,
	}
}

func TestNewRequiresClientIDAndTransport(t *testing.T) {
	_, err := session.New(session.Config{}, &fakeTransport{})
	require.Error(t, err)

	_, err = session.New(session.Config{ClientID: testClientID}, nil)
	require.Error(t, err)
}

func TestCounterAdvancesPerRoundTrip(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)
	require.Equal(t, 1, s.MsgID())

	for i := 1; i <= 3; i++ {
		tr.queue(t, serverResponse(i, []wire.Command{authAccepted()}, ""))
		_, err := s.Send(context.Background(), simpleBody())
		require.NoError(t, err)
		assert.Equal(t, 1+i, s.MsgID())
	}

	// Outgoing message IDs were 1, 2, 3.
	for i, data := range tr.sendBodies {
		msg := decodeSent(t, data)
		assert.Equal(t, i+1, msg.Hdr.MsgID)
	}
}

func TestCredentialAttachment(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	// No prior response: credential attached.
	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	require.NotNil(t, decodeSent(t, tr.sendBodies[0]).Hdr.Cred)

	// Prior response acknowledged authentication: no credential.
	tr.queue(t, serverResponse(2, []wire.Command{
		&wire.Status{CmdID: 1, MsgRef: 2, Cmd: wire.CmdSyncHdr, Data: wire.StatusOK},
	}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.Nil(t, decodeSent(t, tr.sendBodies[1]).Hdr.Cred)

	// Prior response lacked the acceptance status: credential again.
	tr.queue(t, serverResponse(3, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.NotNil(t, decodeSent(t, tr.sendBodies[2]).Hdr.Cred)
}

func TestServerAbortStopsSession(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	tr.queue(t, serverResponse(1, []wire.Command{
		&wire.Alert{CmdID: 1, Data: wire.AlertSessionAbort},
	}, ""))
	resp, err := s.Send(context.Background(), simpleBody())

	// The final exchange is still returned to the caller.
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, s.Aborted())
	assert.Equal(t, 1, s.MsgID(), "counter must not advance on server abort")

	calls := tr.sendCalls
	_, err = s.Send(context.Background(), simpleBody())
	require.ErrorIs(t, err, session.ErrAborted)
	assert.Equal(t, calls, tr.sendCalls, "no network call after abort")
}

func TestChallengeNonceUsedForNextDigest(t *testing.T) {
	tr := &fakeTransport{}
	digest := &recordingDigest{}
	s := newTestSession(t, tr, digest)

	nonce := []byte("ServerNonce")
	tr.queue(t, serverResponse(1, []wire.Command{
		challenge(wire.AuthTypeMD5, wire.FormatB64, base64.StdEncoding.EncodeToString(nonce)),
	}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	tr.queue(t, serverResponse(2, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	require.Len(t, digest.nonces, 2)
	assert.NotEqual(t, nonce, digest.nonces[0], "first digest uses a factory nonce")
	assert.Equal(t, nonce, digest.nonces[1], "second digest uses the server nonce")
}

func TestFactoryNonceFreshPerDigest(t *testing.T) {
	tr := &fakeTransport{}
	digest := &recordingDigest{}
	s := newTestSession(t, tr, digest)

	// Neither response carries a challenge or an auth acknowledgment, so
	// both sends compute a digest from a fresh factory nonce.
	for i := 1; i <= 2; i++ {
		tr.queue(t, serverResponse(i, []wire.Command{
			&wire.Status{CmdID: 1, MsgRef: i, Cmd: wire.CmdSyncHdr, Data: wire.StatusUnauthorized},
		}, ""))
		_, err := s.Send(context.Background(), simpleBody())
		require.NoError(t, err)
	}

	require.Len(t, digest.nonces, 2)
	assert.NotEmpty(t, digest.nonces[0])
	assert.NotEqual(t, digest.nonces[0], digest.nonces[1])
}

func TestUnrecognizedChallengeIgnored(t *testing.T) {
	tr := &fakeTransport{}
	digest := &recordingDigest{}
	s := newTestSession(t, tr, digest)

	bogus := base64.StdEncoding.EncodeToString([]byte("BogusNonce"))
	tr.queue(t, serverResponse(1, []wire.Command{
		challenge("syncml:auth-sha256", wire.FormatB64, bogus),
	}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	tr.queue(t, serverResponse(2, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	require.Len(t, digest.nonces, 2)
	assert.NotEqual(t, []byte("BogusNonce"), digest.nonces[1],
		"nonce from an unrecognized scheme must not be honored")
}

func TestRedirectUpdatesEndpoint(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	redirected := "https://dm2.test.example/syncml"
	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, redirected))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.Equal(t, redirected, s.ServerURL())

	tr.queue(t, serverResponse(2, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	assert.Equal(t, redirected, tr.sendURLs[1])
	assert.Equal(t, redirected, decodeSent(t, tr.sendBodies[1]).Hdr.Target.URI)
	// Absent a new redirect the endpoint is unchanged.
	assert.Equal(t, redirected, s.ServerURL())
}

func TestRegisterIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	require.NoError(t, s.Register(context.Background()))
	require.NoError(t, s.Register(context.Background()))
	assert.Equal(t, 1, tr.registerCalls)

	// Send does not register again.
	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.Equal(t, 1, tr.registerCalls)
}

func TestSendRegistersFirst(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.Equal(t, 1, tr.registerCalls)
}

func TestRegisterFailureSurfacesAndRetries(t *testing.T) {
	tr := &fakeTransport{registerErr: errors.New("connection refused")}
	s := newTestSession(t, tr, nil)

	_, err := s.Send(context.Background(), simpleBody())
	var te *session.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "register", te.Op)

	// A later attempt may succeed.
	tr.registerErr = nil
	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.Equal(t, 2, tr.registerCalls)
}

func TestTransportFailureLeavesStateUnchanged(t *testing.T) {
	tr := &fakeTransport{}
	digest := &recordingDigest{}
	s := newTestSession(t, tr, digest)

	nonce := []byte("ServerNonce")
	tr.queue(t, serverResponse(1, []wire.Command{
		challenge(wire.AuthTypeMD5, wire.FormatB64, base64.StdEncoding.EncodeToString(nonce)),
	}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	require.Equal(t, 2, s.MsgID())

	tr.sendErr = errors.New("network unreachable")
	_, err = s.Send(context.Background(), simpleBody())
	var te *session.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, s.MsgID(), "counter unchanged on transport failure")
	assert.False(t, s.Aborted())

	// Retry succeeds and still uses the held server nonce.
	tr.sendErr = nil
	tr.queue(t, serverResponse(2, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)
	assert.Equal(t, nonce, digest.nonces[len(digest.nonces)-1])
}

func TestUndecodableResponseIsHardFailure(t *testing.T) {
	tr := &fakeTransport{responses: [][]byte{[]byte("this is not syncml")}}
	s := newTestSession(t, tr, nil)

	_, err := s.Send(context.Background(), simpleBody())
	require.Error(t, err)
	assert.Equal(t, 1, s.MsgID())
}

func TestAbortSendsAlertAndAlwaysTakesEffect(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	tr.queue(t, serverResponse(1, nil, ""))
	require.NoError(t, s.Abort(context.Background()))
	assert.True(t, s.Aborted())

	sent := decodeSent(t, tr.sendBodies[0])
	alerts := sent.Body.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, wire.AlertSessionAbort, alerts[0].Data)

	// Idempotent: no further network traffic.
	calls := tr.sendCalls
	require.NoError(t, s.Abort(context.Background()))
	assert.Equal(t, calls, tr.sendCalls)

	_, err := s.Send(context.Background(), simpleBody())
	require.ErrorIs(t, err, session.ErrAborted)
}

func TestAbortSwallowsTransportFailure(t *testing.T) {
	tr := &fakeTransport{sendErr: errors.New("network unreachable")}
	s := newTestSession(t, tr, nil)

	require.NoError(t, s.Abort(context.Background()))
	assert.True(t, s.Aborted(), "local abort intent takes effect unconditionally")
}

func TestBuildAuthStatus(t *testing.T) {
	tr := &fakeTransport{}
	cfg := session.Config{
		ClientID:  testClientID,
		ServerURL: "https://dm.test.example/syncml?sessionid=42",
	}
	s, err := session.New(cfg, tr)
	require.NoError(t, err)

	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, ""))
	_, err = s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	st := s.BuildAuthStatus(2)
	assert.Equal(t, 2, st.CmdID)
	assert.Equal(t, 1, st.MsgRef)
	assert.Equal(t, 0, st.CmdRef)
	assert.Equal(t, wire.CmdSyncHdr, st.Cmd)
	assert.Equal(t, wire.StatusAuthAccepted, st.Data)
	assert.Equal(t, testClientID, st.TargetRef)
	assert.Equal(t, "https://dm.test.example/syncml", st.SourceRef,
		"query string is stripped from the source reference")
}

func TestHeaderCarriesTransportLimits(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, nil)

	tr.queue(t, serverResponse(1, []wire.Command{authAccepted()}, ""))
	_, err := s.Send(context.Background(), simpleBody())
	require.NoError(t, err)

	hdr := decodeSent(t, tr.sendBodies[0]).Hdr
	require.NotNil(t, hdr.Meta)
	assert.Equal(t, int64(wire.MaxMsgSize), hdr.Meta.MaxMsgSize)
	assert.Equal(t, int64(wire.MaxObjSize), hdr.Meta.MaxObjSize)
	assert.Equal(t, wire.VerDTD, hdr.VerDTD)
	assert.Equal(t, wire.VerProto, hdr.VerProto)
	assert.Equal(t, s.SessionID(), hdr.SessionID)
}
