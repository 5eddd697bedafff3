// Package qi implements a small client for the NAOqi messaging protocol,
// enough to look up services on a robot and call their methods.
package qi

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	headerSize = 28
	magic      = 0x42dead42

	// maxPayload bounds the payload of a single message.
	maxPayload = 64 << 20
)

// MessageType identifies the kind of a message.
type MessageType uint8

// Message types.
const (
	TypeNone MessageType = iota
	TypeCall
	TypeReply
	TypeError
	TypePost
	TypeEvent
	TypeCapability
	TypeCancel
	TypeCanceled
)

func (t MessageType) String() string {
	switch t {
	case TypeCall:
		return "call"
	case TypeReply:
		return "reply"
	case TypeError:
		return "error"
	case TypePost:
		return "post"
	case TypeEvent:
		return "event"
	case TypeCapability:
		return "capability"
	case TypeCancel:
		return "cancel"
	case TypeCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// Flags modify how a message payload is interpreted.
type Flags uint8

const (
	// FlagDynamicPayload marks a payload that starts with its own signature.
	FlagDynamicPayload Flags = 1 << iota
	// FlagReturnType marks a call that carries the expected return signature.
	FlagReturnType
)

// Address routes a message to an action of an object in a service.
type Address struct {
	Service uint32
	Object  uint32
	Action  uint32
}

// Message is a single protocol frame.
type Message struct {
	ID      uint32
	Version uint16
	Type    MessageType
	Flags   Flags
	Address
	Payload []byte
}

// WriteTo writes the header and payload of m to w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	if len(m.Payload) > maxPayload {
		return 0, errors.Errorf("qi: payload of %d bytes exceeds limit", len(m.Payload))
	}

	buf := make([]byte, headerSize+len(m.Payload))
	binary.BigEndian.PutUint32(buf[0:], magic)
	binary.LittleEndian.PutUint32(buf[4:], m.ID)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(m.Payload)))
	binary.LittleEndian.PutUint16(buf[12:], m.Version)
	buf[14] = byte(m.Type)
	buf[15] = byte(m.Flags)
	binary.LittleEndian.PutUint32(buf[16:], m.Service)
	binary.LittleEndian.PutUint32(buf[20:], m.Object)
	binary.LittleEndian.PutUint32(buf[24:], m.Action)
	copy(buf[headerSize:], m.Payload)

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadMessage reads one message from r.
func ReadMessage(r io.Reader) (*Message, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	if got := binary.BigEndian.Uint32(hdr[0:]); got != magic {
		return nil, errors.Errorf("qi: bad magic %#x", got)
	}

	size := binary.LittleEndian.Uint32(hdr[8:])
	if size > maxPayload {
		return nil, errors.Errorf("qi: payload of %d bytes exceeds limit", size)
	}

	m := &Message{
		ID:      binary.LittleEndian.Uint32(hdr[4:]),
		Version: binary.LittleEndian.Uint16(hdr[12:]),
		Type:    MessageType(hdr[14]),
		Flags:   Flags(hdr[15]),
		Address: Address{
			Service: binary.LittleEndian.Uint32(hdr[16:]),
			Object:  binary.LittleEndian.Uint32(hdr[20:]),
			Action:  binary.LittleEndian.Uint32(hdr[24:]),
		},
	}

	if size > 0 {
		m.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, errors.Wrap(err, "qi: read payload")
		}
	}

	return m, nil
}
