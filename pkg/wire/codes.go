package wire

// Protocol version identifiers carried in every SyncHdr.
const (
	VerDTD   = "1.2"
	VerProto = "DM/1.2"
)

// MediaType is the MIME type of an encoded DM message.
const MediaType = "application/vnd.syncml.dm+xml"

// Transport limits announced in the SyncHdr Meta element.
const (
	MaxMsgSize = 5120
	MaxObjSize = 1048576
)

// Authentication metadata identifiers. Only this combination is honored
// when a challenge is received; anything else is ignored.
const (
	AuthTypeMD5 = "syncml:auth-md5"
	FormatB64   = "b64"
)

// CmdSyncHdr is the command name used in status references to the
// message header itself.
const CmdSyncHdr = "SyncHdr"

// Status codes.
const (
	StatusOK           = "200"
	StatusAuthAccepted = "212"
	StatusNotFound     = "404"
	StatusUnauthorized = "401"
	StatusAuthRequired = "407"
)

// Alert codes.
const (
	// AlertServerSession announces a server-initiated management session.
	AlertServerSession = "1200"

	// AlertClientSession announces a client-initiated management session.
	AlertClientSession = "1201"

	// AlertGeneric carries out-of-band data such as a firmware
	// descriptor reference.
	AlertGeneric = "1226"

	// AlertSessionAbort ends the session. Sent by either side; once
	// seen, no further messages are exchanged.
	AlertSessionAbort = "1223"
)
