// Package protocol implements the GridClash wire format: a fixed 24-byte
// big-endian header shared by every message type, plus per-message payload
// encoding and decoding.
package protocol

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed width, in bytes, of every GridClash datagram
// header: protocol_id(4) + version(1) + msg_type(1) + snapshot_id(4) +
// seq_num(4) + timestamp_ms(8) + payload_len(2).
const HeaderSize = 24

// ProtocolID is the fixed ASCII tag identifying GridClash datagrams.
const ProtocolID = "GSCP"

// Version is the only protocol version this implementation speaks. Earlier
// drafts of the source protocol are not supported.
const Version = 7

// ErrMalformed is returned when a datagram fails header validation. Every
// caller treats it as "drop silently" per the error handling design.
var ErrMalformed = errors.New("protocol: malformed datagram")

// MessageType enumerates the GridClash message taxonomy.
type MessageType uint8

const (
	MsgJoin MessageType = iota + 1
	MsgJoinAck
	MsgReady
	MsgPlayerColor
	MsgPlayerColorAck
	MsgEvent
	MsgEventAck
	MsgSnapshot
	MsgGameOver
	MsgGameOverAck
	MsgHeartbeat
)

// String renders a human-readable name for logging.
func (t MessageType) String() string {
	switch t {
	case MsgJoin:
		return "JOIN"
	case MsgJoinAck:
		return "JOIN_ACK"
	case MsgReady:
		return "READY"
	case MsgPlayerColor:
		return "PLAYER_COLOR"
	case MsgPlayerColorAck:
		return "PLAYER_COLOR_ACK"
	case MsgEvent:
		return "EVENT"
	case MsgEventAck:
		return "EVENT_ACK"
	case MsgSnapshot:
		return "SNAPSHOT"
	case MsgGameOver:
		return "GAME_OVER"
	case MsgGameOverAck:
		return "GAME_OVER_ACK"
	case MsgHeartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

// Header is the fixed preamble carried by every GridClash datagram.
type Header struct {
	MsgType     MessageType
	SnapshotID  uint32
	SeqNum      uint32
	TimestampMs uint64
	PayloadLen  uint16
}

// Encode writes the header followed by payload into a single datagram byte
// slice, sized exactly HeaderSize+len(payload).
func Encode(h Header, payload []byte) []byte {
	h.PayloadLen = uint16(len(payload))
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:4], ProtocolID)
	buf[4] = Version
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.SnapshotID)
	binary.BigEndian.PutUint32(buf[10:14], h.SeqNum)
	binary.BigEndian.PutUint64(buf[14:22], h.TimestampMs)
	binary.BigEndian.PutUint16(buf[22:24], h.PayloadLen)
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode validates and parses the header from a raw datagram, returning the
// header and the payload slice (a view into data, not a copy). Any datagram
// with length < HeaderSize, a mismatched protocol_id, or a mismatched
// version returns ErrMalformed and must be dropped silently by the caller.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, ErrMalformed
	}
	if string(data[0:4]) != ProtocolID {
		return Header{}, nil, ErrMalformed
	}
	if data[4] != Version {
		return Header{}, nil, ErrMalformed
	}
	h := Header{
		MsgType:     MessageType(data[5]),
		SnapshotID:  binary.BigEndian.Uint32(data[6:10]),
		SeqNum:      binary.BigEndian.Uint32(data[10:14]),
		TimestampMs: binary.BigEndian.Uint64(data[14:22]),
		PayloadLen:  binary.BigEndian.Uint16(data[22:24]),
	}
	payload := data[HeaderSize:]
	if int(h.PayloadLen) != len(payload) {
		return Header{}, nil, ErrMalformed
	}
	return h, payload, nil
}
