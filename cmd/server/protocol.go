package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire protocol: every message is a 9-byte header followed by a
// kind-specific payload, little-endian, packed (no padding). Fields are
// encoded/decoded one at a time with encoding/binary rather than cast from
// memory.

// MessageKind tags the payload that follows the header.
type MessageKind uint8

const (
	KindJoin MessageKind = iota + 1
	KindJoinAck
	KindLeave
	KindWorldState
	KindUpdate
	KindPing
	KindPong
	KindEntityState
	KindEntityDamage
	KindArrowSpawn
	KindArrowHit
	KindPlayerDamage
	KindGameRestart
	KindSpectate
	KindSpectateAck
	KindHeartbeat
)

const (
	HeaderSize      = 9
	NameFieldSize   = 32
	AnimFieldSize   = 32
	PlayerStateSize = 4 + 12 + 4 + 1 + 1 + 1 + 4 + AnimFieldSize + 1 // 60
	EntityRecordSize = 1 + 4 + 12 + 4 + 1 + 4 + 4 + 4                // 34
	MaxDatagramSize = 2048
)

var (
	// ErrShortPacket is returned when a datagram is smaller than its header
	// or smaller than its declared payload. Callers always treat this as
	// "drop silently" — it must never propagate further.
	ErrShortPacket = errors.New("protocol: short packet")
	// ErrUnknownType is returned for a header byte outside the known kinds.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Header is the 9-byte prefix common to every message.
type Header struct {
	Kind     MessageKind
	Sequence uint32
	SenderID uint32
}

func encodeHeader(buf *bytes.Buffer, h Header) {
	buf.WriteByte(byte(h.Kind))
	writeU32(buf, h.Sequence)
	writeU32(buf, h.SenderID)
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortPacket
	}
	return Header{
		Kind:     MessageKind(b[0]),
		Sequence: binary.LittleEndian.Uint32(b[1:5]),
		SenderID: binary.LittleEndian.Uint32(b[5:9]),
	}, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeF32(buf *bytes.Buffer, v float32) {
	writeU32(buf, math.Float32bits(v))
}

func readU32(b []byte) uint32  { return binary.LittleEndian.Uint32(b) }
func readF32(b []byte) float32 { return math.Float32frombits(readU32(b)) }

// PlayerHighState is the high-level animation/behavior enum broadcast for a
// player.
type PlayerHighState uint8

const (
	PlayerIdle PlayerHighState = iota
	PlayerWalking
	PlayerRunning
	PlayerAttacking
	PlayerBlocking
	PlayerJumping
	PlayerCasting
	PlayerDrawingBow
	PlayerHoldingBow
	PlayerDead
)

// PlayerState is the 60-byte broadcast record for a player.
type PlayerState struct {
	ID            uint32
	Pos           [3]float32
	Yaw           float32
	State         PlayerHighState
	CombatMode    uint8
	CharacterClass uint8
	Health        float32
	Anim          string
	Active        uint8
}

func encodePlayerState(buf *bytes.Buffer, p PlayerState) {
	writeU32(buf, p.ID)
	writeF32(buf, p.Pos[0])
	writeF32(buf, p.Pos[1])
	writeF32(buf, p.Pos[2])
	writeF32(buf, p.Yaw)
	buf.WriteByte(byte(p.State))
	buf.WriteByte(p.CombatMode)
	buf.WriteByte(p.CharacterClass)
	writeF32(buf, p.Health)
	buf.Write(padString(p.Anim, AnimFieldSize))
	buf.WriteByte(p.Active)
}

func decodePlayerState(b []byte) (PlayerState, error) {
	if len(b) < PlayerStateSize {
		return PlayerState{}, ErrShortPacket
	}
	p := PlayerState{
		ID:  readU32(b[0:4]),
		Pos: [3]float32{readF32(b[4:8]), readF32(b[8:12]), readF32(b[12:16])},
		Yaw: readF32(b[16:20]),
		State:          PlayerHighState(b[20]),
		CombatMode:     b[21],
		CharacterClass: b[22],
		Health:         readF32(b[23:27]),
		Anim:           unpadString(b[27 : 27+AnimFieldSize]),
		Active:         b[27+AnimFieldSize],
	}
	return p, nil
}

// EntityKind distinguishes chaser/patroller records in an entity-state
// snapshot.
type EntityKind uint8

const (
	EntityChaser EntityKind = iota + 1
	EntityPatroller
)

// EntityRecord is the 34-byte broadcast record for an NPC.
type EntityRecord struct {
	Kind   EntityKind
	ID     uint32
	Pos    [3]float32
	Yaw    float32
	State  uint8
	Health float32
	Extra1 uint32
	Extra2 float32
}

func encodeEntityRecord(buf *bytes.Buffer, e EntityRecord) {
	buf.WriteByte(byte(e.Kind))
	writeU32(buf, e.ID)
	writeF32(buf, e.Pos[0])
	writeF32(buf, e.Pos[1])
	writeF32(buf, e.Pos[2])
	writeF32(buf, e.Yaw)
	buf.WriteByte(e.State)
	writeF32(buf, e.Health)
	writeU32(buf, e.Extra1)
	writeF32(buf, e.Extra2)
}

func decodeEntityRecord(b []byte) (EntityRecord, error) {
	if len(b) < EntityRecordSize {
		return EntityRecord{}, ErrShortPacket
	}
	return EntityRecord{
		Kind:   EntityKind(b[0]),
		ID:     readU32(b[1:5]),
		Pos:    [3]float32{readF32(b[5:9]), readF32(b[9:13]), readF32(b[13:17])},
		Yaw:    readF32(b[17:21]),
		State:  b[21],
		Health: readF32(b[22:26]),
		Extra1: readU32(b[26:30]),
		Extra2: readF32(b[30:34]),
	}, nil
}

func padString(s string, width int) []byte {
	out := make([]byte, width)
	copy(out, s)
	return out
}

func unpadString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

// --- Encoders for every message kind ---

// EncodeJoin builds a client->server join message.
func EncodeJoin(seq uint32, name string) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindJoin, Sequence: seq})
	buf.Write(padString(name, NameFieldSize))
	return buf.Bytes()
}

// EncodeJoinAck builds a server->client join-ack.
func EncodeJoinAck(seq, assignedID uint32, state PlayerState) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindJoinAck, Sequence: seq})
	writeU32(buf, assignedID)
	encodePlayerState(buf, state)
	return buf.Bytes()
}

// EncodeLeave builds a client->server leave message.
func EncodeLeave(seq, senderID uint32) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindLeave, Sequence: seq, SenderID: senderID})
	return buf.Bytes()
}

// EncodeWorldState builds a server broadcast of up to 32 active players.
func EncodeWorldState(seq, stateSeq uint32, players []PlayerState) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindWorldState, Sequence: seq})
	writeU32(buf, stateSeq)
	buf.WriteByte(byte(len(players)))
	for _, p := range players {
		encodePlayerState(buf, p)
	}
	return buf.Bytes()
}

// EncodeUpdate builds a client->server avatar update.
func EncodeUpdate(seq, senderID uint32, state PlayerState) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindUpdate, Sequence: seq, SenderID: senderID})
	encodePlayerState(buf, state)
	return buf.Bytes()
}

// EncodePing builds a client->server keepalive probe.
func EncodePing(seq, senderID uint32) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindPing, Sequence: seq, SenderID: senderID})
	return buf.Bytes()
}

// EncodePong builds a server->client keepalive reply; the header alone
// carries the information (echoes sender and sequence).
func EncodePong(seq, senderID uint32) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindPong, Sequence: seq, SenderID: senderID})
	return buf.Bytes()
}

// EncodeEntityState builds a server broadcast of active NPC records,
// chasers first, then patrollers.
func EncodeEntityState(seq uint32, records []EntityRecord) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindEntityState, Sequence: seq})
	buf.WriteByte(byte(len(records)))
	for _, r := range records {
		encodeEntityRecord(buf, r)
	}
	return buf.Bytes()
}

// EntityDamage is the decoded payload of an entity-damage message.
type EntityDamage struct {
	TargetID   uint32
	Damage     float32
	AttackerID uint32
}

// EncodeEntityDamage builds an entity-damage message (used both client->server
// and, via the legacy host relay, server->host).
func EncodeEntityDamage(seq, senderID uint32, d EntityDamage) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindEntityDamage, Sequence: seq, SenderID: senderID})
	writeU32(buf, d.TargetID)
	writeF32(buf, d.Damage)
	writeU32(buf, d.AttackerID)
	return buf.Bytes()
}

func decodeEntityDamage(b []byte) (EntityDamage, error) {
	if len(b) < 12 {
		return EntityDamage{}, ErrShortPacket
	}
	return EntityDamage{
		TargetID:   readU32(b[0:4]),
		Damage:     readF32(b[4:8]),
		AttackerID: readU32(b[8:12]),
	}, nil
}

// ArrowSpawn is the decoded payload of an arrow-spawn message.
type ArrowSpawn struct {
	ArrowID   uint32
	Pos       [3]float32
	Dir       [3]float32
	ShooterID uint32
}

// EncodeArrowSpawn builds an arrow-spawn message.
func EncodeArrowSpawn(seq, senderID uint32, a ArrowSpawn) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindArrowSpawn, Sequence: seq, SenderID: senderID})
	writeU32(buf, a.ArrowID)
	for _, v := range a.Pos {
		writeF32(buf, v)
	}
	for _, v := range a.Dir {
		writeF32(buf, v)
	}
	writeU32(buf, a.ShooterID)
	return buf.Bytes()
}

func decodeArrowSpawn(b []byte) (ArrowSpawn, error) {
	if len(b) < 32 {
		return ArrowSpawn{}, ErrShortPacket
	}
	return ArrowSpawn{
		ArrowID:   readU32(b[0:4]),
		Pos:       [3]float32{readF32(b[4:8]), readF32(b[8:12]), readF32(b[12:16])},
		Dir:       [3]float32{readF32(b[16:20]), readF32(b[20:24]), readF32(b[24:28])},
		ShooterID: readU32(b[28:32]),
	}, nil
}

// ArrowHit is the decoded payload of an arrow-hit message.
type ArrowHit struct {
	ArrowID  uint32
	HitPos   [3]float32
	TargetID uint32
}

// EncodeArrowHit builds an arrow-hit message.
func EncodeArrowHit(seq, senderID uint32, a ArrowHit) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindArrowHit, Sequence: seq, SenderID: senderID})
	writeU32(buf, a.ArrowID)
	for _, v := range a.HitPos {
		writeF32(buf, v)
	}
	writeU32(buf, a.TargetID)
	return buf.Bytes()
}

func decodeArrowHit(b []byte) (ArrowHit, error) {
	if len(b) < 20 {
		return ArrowHit{}, ErrShortPacket
	}
	return ArrowHit{
		ArrowID:  readU32(b[0:4]),
		HitPos:   [3]float32{readF32(b[4:8]), readF32(b[8:12]), readF32(b[12:16])},
		TargetID: readU32(b[16:20]),
	}, nil
}

// PlayerDamage is the decoded payload of a player-damage message.
type PlayerDamage struct {
	TargetID   uint32
	Damage     float32
	AttackerID uint32
	Knockback  [3]float32
}

// EncodePlayerDamage builds a server->victim player-damage message.
func EncodePlayerDamage(seq uint32, d PlayerDamage) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindPlayerDamage, Sequence: seq})
	writeU32(buf, d.TargetID)
	writeF32(buf, d.Damage)
	writeU32(buf, d.AttackerID)
	for _, v := range d.Knockback {
		writeF32(buf, v)
	}
	return buf.Bytes()
}

// RestartReason tags why a game-restart was triggered.
type RestartReason uint32

const (
	RestartPlayerDied RestartReason = iota
	RestartNPCDied
	RestartManual
)

// EncodeGameRestart builds a game-restart broadcast.
func EncodeGameRestart(seq uint32, reason RestartReason) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindGameRestart, Sequence: seq})
	writeU32(buf, uint32(reason))
	return buf.Bytes()
}

// EncodeSpectate builds a client->server spectate request.
func EncodeSpectate(seq uint32) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindSpectate, Sequence: seq})
	return buf.Bytes()
}

// EncodeSpectateAck builds a server->client spectate acknowledgement.
func EncodeSpectateAck(seq uint32) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindSpectateAck, Sequence: seq})
	return buf.Bytes()
}

// EncodeHeartbeat builds a client->server heartbeat.
func EncodeHeartbeat(seq, senderID uint32) []byte {
	buf := new(bytes.Buffer)
	encodeHeader(buf, Header{Kind: KindHeartbeat, Sequence: seq, SenderID: senderID})
	return buf.Bytes()
}

// DecodedMessage is the result of parsing an inbound datagram: the header
// plus a kind-specific payload value (or nil for header-only kinds).
type DecodedMessage struct {
	Header  Header
	Payload any
}

// Decode parses a raw datagram into its header and payload, or returns
// ErrShortPacket/ErrUnknownType. Both are always treated as "drop silently"
// by the caller; Decode itself never panics on truncated input.
func Decode(b []byte) (DecodedMessage, error) {
	h, err := decodeHeader(b)
	if err != nil {
		return DecodedMessage{}, err
	}
	rest := b[HeaderSize:]

	switch h.Kind {
	case KindJoin:
		if len(rest) < NameFieldSize {
			return DecodedMessage{}, ErrShortPacket
		}
		return DecodedMessage{Header: h, Payload: unpadString(rest[:NameFieldSize])}, nil
	case KindLeave, KindPing, KindPong, KindSpectate, KindSpectateAck, KindHeartbeat:
		return DecodedMessage{Header: h}, nil
	case KindUpdate:
		ps, err := decodePlayerState(rest)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Header: h, Payload: ps}, nil
	case KindEntityDamage:
		d, err := decodeEntityDamage(rest)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Header: h, Payload: d}, nil
	case KindArrowSpawn:
		a, err := decodeArrowSpawn(rest)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Header: h, Payload: a}, nil
	case KindArrowHit:
		a, err := decodeArrowHit(rest)
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Header: h, Payload: a}, nil
	case KindGameRestart:
		if len(rest) < 4 {
			return DecodedMessage{}, ErrShortPacket
		}
		return DecodedMessage{Header: h, Payload: RestartReason(readU32(rest[:4]))}, nil
	case KindJoinAck, KindWorldState, KindEntityState, KindPlayerDamage:
		// Server-originated kinds a conforming server never needs to parse
		// inbound, but decoding is still well-defined for tests/tools.
		return decodeServerKind(h, rest)
	default:
		return DecodedMessage{}, ErrUnknownType
	}
}

func decodeServerKind(h Header, rest []byte) (DecodedMessage, error) {
	switch h.Kind {
	case KindJoinAck:
		if len(rest) < 4+PlayerStateSize {
			return DecodedMessage{}, ErrShortPacket
		}
		ps, err := decodePlayerState(rest[4:])
		if err != nil {
			return DecodedMessage{}, err
		}
		return DecodedMessage{Header: h, Payload: struct {
			AssignedID uint32
			State      PlayerState
		}{readU32(rest[:4]), ps}}, nil
	case KindWorldState:
		if len(rest) < 5 {
			return DecodedMessage{}, ErrShortPacket
		}
		stateSeq := readU32(rest[:4])
		count := int(rest[4])
		rest = rest[5:]
		if len(rest) < count*PlayerStateSize {
			return DecodedMessage{}, ErrShortPacket
		}
		players := make([]PlayerState, count)
		for i := 0; i < count; i++ {
			ps, err := decodePlayerState(rest[i*PlayerStateSize:])
			if err != nil {
				return DecodedMessage{}, err
			}
			players[i] = ps
		}
		return DecodedMessage{Header: h, Payload: struct {
			StateSeq uint32
			Players  []PlayerState
		}{stateSeq, players}}, nil
	case KindEntityState:
		if len(rest) < 1 {
			return DecodedMessage{}, ErrShortPacket
		}
		count := int(rest[0])
		rest = rest[1:]
		if len(rest) < count*EntityRecordSize {
			return DecodedMessage{}, ErrShortPacket
		}
		records := make([]EntityRecord, count)
		for i := 0; i < count; i++ {
			er, err := decodeEntityRecord(rest[i*EntityRecordSize:])
			if err != nil {
				return DecodedMessage{}, err
			}
			records[i] = er
		}
		return DecodedMessage{Header: h, Payload: records}, nil
	case KindPlayerDamage:
		if len(rest) < 24 {
			return DecodedMessage{}, ErrShortPacket
		}
		return DecodedMessage{Header: h, Payload: PlayerDamage{
			TargetID:   readU32(rest[0:4]),
			Damage:     readF32(rest[4:8]),
			AttackerID: readU32(rest[8:12]),
			Knockback:  [3]float32{readF32(rest[12:16]), readF32(rest[16:20]), readF32(rest[20:24])},
		}}, nil
	default:
		return DecodedMessage{}, fmt.Errorf("protocol: unhandled server kind %d", h.Kind)
	}
}
