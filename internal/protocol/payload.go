package protocol

import "encoding/binary"

// EventType enumerates the EVENT payload's event_type field.
type EventType uint8

// EventClick is the only event type the wire format carries today.
const EventClick EventType = 0

// JoinAck is the JOIN_ACK payload: player_id, grid_size, tick_rate, r, g, b.
type JoinAck struct {
	PlayerID uint16
	GridSize uint8
	TickRate uint8
	R, G, B  uint8
}

// EncodeJoinAck serializes a JoinAck payload.
func EncodeJoinAck(a JoinAck) []byte {
	buf := make([]byte, 7)
	binary.BigEndian.PutUint16(buf[0:2], a.PlayerID)
	buf[2] = a.GridSize
	buf[3] = a.TickRate
	buf[4] = a.R
	buf[5] = a.G
	buf[6] = a.B
	return buf
}

// DecodeJoinAck parses a JOIN_ACK payload.
func DecodeJoinAck(payload []byte) (JoinAck, error) {
	if len(payload) != 7 {
		return JoinAck{}, ErrMalformed
	}
	return JoinAck{
		PlayerID: binary.BigEndian.Uint16(payload[0:2]),
		GridSize: payload[2],
		TickRate: payload[3],
		R:        payload[4],
		G:        payload[5],
		B:        payload[6],
	}, nil
}

// PlayerColor is the PLAYER_COLOR payload: player_id, r, g, b.
type PlayerColor struct {
	PlayerID uint16
	R, G, B  uint8
}

// EncodePlayerColor serializes a PlayerColor payload.
func EncodePlayerColor(c PlayerColor) []byte {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint16(buf[0:2], c.PlayerID)
	buf[2] = c.R
	buf[3] = c.G
	buf[4] = c.B
	return buf
}

// DecodePlayerColor parses a PLAYER_COLOR payload.
func DecodePlayerColor(payload []byte) (PlayerColor, error) {
	if len(payload) != 5 {
		return PlayerColor{}, ErrMalformed
	}
	return PlayerColor{
		PlayerID: binary.BigEndian.Uint16(payload[0:2]),
		R:        payload[2],
		G:        payload[3],
		B:        payload[4],
	}, nil
}

// PlayerColorAck is the PLAYER_COLOR_ACK payload: player_id.
type PlayerColorAck struct {
	PlayerID uint16
}

// EncodePlayerColorAck serializes a PlayerColorAck payload.
func EncodePlayerColorAck(a PlayerColorAck) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.PlayerID)
	return buf
}

// DecodePlayerColorAck parses a PLAYER_COLOR_ACK payload.
func DecodePlayerColorAck(payload []byte) (PlayerColorAck, error) {
	if len(payload) != 2 {
		return PlayerColorAck{}, ErrMalformed
	}
	return PlayerColorAck{PlayerID: binary.BigEndian.Uint16(payload)}, nil
}

// Event is the EVENT payload: player_id, client_msg_seq, event_type,
// cell_index, client_timestamp.
type Event struct {
	PlayerID        uint16
	ClientMsgSeq    uint16
	EventType       EventType
	CellIndex       uint16
	ClientTimestamp uint64
}

// EncodeEvent serializes an Event payload.
func EncodeEvent(e Event) []byte {
	buf := make([]byte, 15)
	binary.BigEndian.PutUint16(buf[0:2], e.PlayerID)
	binary.BigEndian.PutUint16(buf[2:4], e.ClientMsgSeq)
	buf[4] = byte(e.EventType)
	binary.BigEndian.PutUint16(buf[5:7], e.CellIndex)
	binary.BigEndian.PutUint64(buf[7:15], e.ClientTimestamp)
	return buf
}

// DecodeEvent parses an EVENT payload.
func DecodeEvent(payload []byte) (Event, error) {
	if len(payload) != 15 {
		return Event{}, ErrMalformed
	}
	return Event{
		PlayerID:        binary.BigEndian.Uint16(payload[0:2]),
		ClientMsgSeq:    binary.BigEndian.Uint16(payload[2:4]),
		EventType:       EventType(payload[4]),
		CellIndex:       binary.BigEndian.Uint16(payload[5:7]),
		ClientTimestamp: binary.BigEndian.Uint64(payload[7:15]),
	}, nil
}

// EventAck is the EVENT_ACK payload: seq.
type EventAck struct {
	Seq uint16
}

// EncodeEventAck serializes an EventAck payload.
func EncodeEventAck(a EventAck) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Seq)
	return buf
}

// DecodeEventAck parses an EVENT_ACK payload.
func DecodeEventAck(payload []byte) (EventAck, error) {
	if len(payload) != 2 {
		return EventAck{}, ErrMalformed
	}
	return EventAck{Seq: binary.BigEndian.Uint16(payload)}, nil
}

// EncodeSnapshot concatenates the current and previous grid bytes, each of
// length gridArea, into the SNAPSHOT payload.
func EncodeSnapshot(current, previous []byte) []byte {
	buf := make([]byte, len(current)+len(previous))
	copy(buf, current)
	copy(buf[len(current):], previous)
	return buf
}

// DecodeSnapshot splits a SNAPSHOT payload into its current and previous
// grid halves. gridArea is W*W; the payload must be exactly 2*gridArea bytes.
func DecodeSnapshot(payload []byte, gridArea int) (current, previous []byte, err error) {
	if len(payload) != 2*gridArea {
		return nil, nil, ErrMalformed
	}
	return payload[:gridArea], payload[gridArea:], nil
}

// PlayerScore is one entry of the GAME_OVER payload's player/score list.
type PlayerScore struct {
	PlayerID uint16
	Score    uint16
}

// GameOver is the GAME_OVER payload: winner_id, num_players, then a
// [player_id, score] pair for each player.
type GameOver struct {
	WinnerID uint16
	Scores   []PlayerScore
}

// EncodeGameOver serializes a GameOver payload.
func EncodeGameOver(g GameOver) []byte {
	buf := make([]byte, 3+4*len(g.Scores))
	binary.BigEndian.PutUint16(buf[0:2], g.WinnerID)
	buf[2] = uint8(len(g.Scores))
	offset := 3
	for _, s := range g.Scores {
		binary.BigEndian.PutUint16(buf[offset:offset+2], s.PlayerID)
		binary.BigEndian.PutUint16(buf[offset+2:offset+4], s.Score)
		offset += 4
	}
	return buf
}

// DecodeGameOver parses a GAME_OVER payload.
func DecodeGameOver(payload []byte) (GameOver, error) {
	if len(payload) < 3 {
		return GameOver{}, ErrMalformed
	}
	winnerID := binary.BigEndian.Uint16(payload[0:2])
	numPlayers := int(payload[2])
	expected := 3 + 4*numPlayers
	if len(payload) != expected {
		return GameOver{}, ErrMalformed
	}
	scores := make([]PlayerScore, 0, numPlayers)
	offset := 3
	for i := 0; i < numPlayers; i++ {
		scores = append(scores, PlayerScore{
			PlayerID: binary.BigEndian.Uint16(payload[offset : offset+2]),
			Score:    binary.BigEndian.Uint16(payload[offset+2 : offset+4]),
		})
		offset += 4
	}
	return GameOver{WinnerID: winnerID, Scores: scores}, nil
}

// GameOverAck is the GAME_OVER_ACK payload: player_id.
type GameOverAck struct {
	PlayerID uint16
}

// EncodeGameOverAck serializes a GameOverAck payload.
func EncodeGameOverAck(a GameOverAck) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.PlayerID)
	return buf
}

// DecodeGameOverAck parses a GAME_OVER_ACK payload.
func DecodeGameOverAck(payload []byte) (GameOverAck, error) {
	if len(payload) != 2 {
		return GameOverAck{}, ErrMalformed
	}
	return GameOverAck{PlayerID: binary.BigEndian.Uint16(payload)}, nil
}
