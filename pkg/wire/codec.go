package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Codec converts between logical messages and their wire representation.
// The default implementation is the XML representation of SyncML 1.2;
// a binary (WBXML) codec can be slotted in behind the same interface.
type Codec interface {
	// Encode serializes a message. The message is validated first.
	Encode(msg *Message) ([]byte, error)

	// Decode parses wire bytes back into a logical message.
	Decode(data []byte) (*Message, error)
}

// XMLCodec encodes messages as SyncML 1.2 XML.
type XMLCodec struct{}

// Compile-time interface satisfaction check.
var _ Codec = XMLCodec{}

// Encode serializes the message as an XML document.
func (XMLCodec) Encode(msg *Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an XML document into a message. Unknown body elements
// are skipped; a malformed document is a hard failure.
func (XMLCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := xml.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}
