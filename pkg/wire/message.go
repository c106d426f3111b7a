package wire

import (
	"encoding/xml"
	"fmt"
)

// Message is the logical representation of one SyncML DM message:
// a header and an ordered command body.
//
// XML shape:
//
//	<SyncML>
//	  <SyncHdr>...</SyncHdr>
//	  <SyncBody>...</SyncBody>
//	</SyncML>
type Message struct {
	XMLName xml.Name `xml:"SyncML"`
	Hdr     Header   `xml:"SyncHdr"`
	Body    Body     `xml:"SyncBody"`
}

// Validate checks that the message carries the fields every outgoing
// message must have.
func (m *Message) Validate() error {
	if m.Hdr.SessionID == "" {
		return fmt.Errorf("missing session id")
	}
	if m.Hdr.MsgID < 1 {
		return fmt.Errorf("invalid message id: %d", m.Hdr.MsgID)
	}
	if m.Hdr.Target.URI == "" {
		return fmt.Errorf("missing target URI")
	}
	if m.Hdr.Source.URI == "" {
		return fmt.Errorf("missing source URI")
	}
	return nil
}

// Header represents the SyncHdr element.
//
// XML shape:
//
//	<SyncHdr>
//	  <VerDTD>1.2</VerDTD>
//	  <VerProto>DM/1.2</VerProto>
//	  <SessionID>4F21A80E</SessionID>
//	  <MsgID>2</MsgID>
//	  <Target><LocURI>https://dm.example.com/syncml</LocURI></Target>
//	  <Source><LocURI>IMEI:490154203237518</LocURI></Source>
//	  <RespURI>...</RespURI>       (responses only, optional)
//	  <Cred>...</Cred>             (optional)
//	  <Meta>...</Meta>             (transport limits)
//	</SyncHdr>
type Header struct {
	VerDTD    string      `xml:"VerDTD"`
	VerProto  string      `xml:"VerProto"`
	SessionID string      `xml:"SessionID"`
	MsgID     int         `xml:"MsgID"`
	Target    LocURI      `xml:"Target"`
	Source    LocURI      `xml:"Source"`
	RespURI   string      `xml:"RespURI,omitempty"`
	Cred      *Cred       `xml:"Cred,omitempty"`
	Meta      *HeaderMeta `xml:"Meta,omitempty"`
}

// LocURI wraps an addressing element (Target, Source).
type LocURI struct {
	URI string `xml:"LocURI"`
}

// HeaderMeta carries the transport limits announced with each message.
type HeaderMeta struct {
	MaxMsgSize int64 `xml:"MaxMsgSize,omitempty"`
	MaxObjSize int64 `xml:"MaxObjSize,omitempty"`
}

// Cred is an authentication credential attached to an outgoing header.
type Cred struct {
	Meta CredMeta `xml:"Meta"`
	Data string   `xml:"Data"`
}

// CredMeta identifies the digest algorithm and encoding of a credential.
type CredMeta struct {
	Type   string `xml:"Type"`
	Format string `xml:"Format"`
}

// Chal is a server challenge instructing the client which nonce to use
// for the next authenticated message.
type Chal struct {
	Meta ChalMeta `xml:"Meta"`
}

// ChalMeta carries the challenge algorithm, encoding and next nonce.
type ChalMeta struct {
	Type      string `xml:"Type"`
	Format    string `xml:"Format"`
	NextNonce string `xml:"NextNonce"`
}

// Command is the closed set of body commands. Scan sites switch on the
// concrete type; the marker method keeps the set sealed.
type Command interface {
	isCommand()
}

func (*Status) isCommand()  {}
func (*Alert) isCommand()   {}
func (*Replace) isCommand() {}

// Status acknowledges a command (or the SyncHdr) from a previous message.
type Status struct {
	CmdID     int    `xml:"CmdID"`
	MsgRef    int    `xml:"MsgRef"`
	CmdRef    int    `xml:"CmdRef"`
	Cmd       string `xml:"Cmd"`
	TargetRef string `xml:"TargetRef,omitempty"`
	SourceRef string `xml:"SourceRef,omitempty"`
	Chal      *Chal  `xml:"Chal,omitempty"`
	Data      string `xml:"Data"`
}

// Alert signals a protocol event (session initiation, session abort,
// generic out-of-band data).
type Alert struct {
	CmdID int    `xml:"CmdID"`
	Data  string `xml:"Data"`
	Items []Item `xml:"Item,omitempty"`
}

// Replace announces device information to the server.
type Replace struct {
	CmdID int    `xml:"CmdID"`
	Items []Item `xml:"Item"`
}

// Item is the payload element shared by Alert and Replace.
type Item struct {
	Target *LocURI `xml:"Target,omitempty"`
	Source *LocURI `xml:"Source,omitempty"`
	Data   string  `xml:"Data,omitempty"`
}

// Body is the ordered command sequence of a message. Final marks the
// last message of a package.
type Body struct {
	Commands []Command
	Final    bool
}

// Statuses returns the status commands in body order.
func (b *Body) Statuses() []*Status {
	var out []*Status
	for _, cmd := range b.Commands {
		if st, ok := cmd.(*Status); ok {
			out = append(out, st)
		}
	}
	return out
}

// Alerts returns the alert commands in body order.
func (b *Body) Alerts() []*Alert {
	var out []*Alert
	for _, cmd := range b.Commands {
		if al, ok := cmd.(*Alert); ok {
			out = append(out, al)
		}
	}
	return out
}

// MarshalXML encodes the body preserving command order.
func (b Body) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, cmd := range b.Commands {
		var name string
		switch cmd.(type) {
		case *Status:
			name = "Status"
		case *Alert:
			name = "Alert"
		case *Replace:
			name = "Replace"
		default:
			return fmt.Errorf("unknown command type %T", cmd)
		}
		el := xml.StartElement{Name: xml.Name{Local: name}}
		if err := e.EncodeElement(cmd, el); err != nil {
			return err
		}
	}
	if b.Final {
		el := xml.StartElement{Name: xml.Name{Local: "Final"}}
		if err := e.EncodeElement(struct{}{}, el); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML decodes the body, skipping unknown command elements for
// forward compatibility.
func (b *Body) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Status":
				var st Status
				if err := d.DecodeElement(&st, &t); err != nil {
					return err
				}
				b.Commands = append(b.Commands, &st)
			case "Alert":
				var al Alert
				if err := d.DecodeElement(&al, &t); err != nil {
					return err
				}
				b.Commands = append(b.Commands, &al)
			case "Replace":
				var rp Replace
				if err := d.DecodeElement(&rp, &t); err != nil {
					return err
				}
				b.Commands = append(b.Commands, &rp)
			case "Final":
				b.Final = true
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}
