package protocol

import (
	"errors"
	"fmt"
)

// Dialect A framing:
//   0x55 0x55 | type:u8 | len:u8 | payload[len] | checksum:u8 | 0xAA 0xAA
// checksum = XOR of type, len, and every payload byte.
//
// Dialect B framing (offline export only, command is always 0xA2):
//   0x55 0x55 | cmd:u8 | len:u16_be | payload[len] | checksum:u8 | 0xAA 0xAA
// checksum = low 8 bits of (cmd + len_hi + len_lo + sum(payload)).
const (
	headerByte  = 0x55
	trailerByte = 0xAA

	// DialectBCommand is the sole command byte used by the Dialect-B
	// export framing.
	DialectBCommand = 0xA2

	maxDialectAPayload = 255
)

// Sentinel errors for PacketCodec failures (spec.md §7 BadFrame family).
var (
	ErrPayloadTooLong = errors.New("protocol: payload exceeds 255 bytes for dialect A")
	ErrBadHeader      = errors.New("protocol: bad frame header")
	ErrBadTrailer     = errors.New("protocol: bad frame trailer")
	ErrBadChecksum    = errors.New("protocol: bad frame checksum")
	ErrTruncated      = errors.New("protocol: truncated frame")
)

// ErrNeedMore signals that buf does not yet hold a complete frame; the
// caller should append more bytes and retry decoding.
var ErrNeedMore = errors.New("protocol: need more data")

// EncodeA serializes a Dialect-A command frame. It fails with
// ErrPayloadTooLong if payload is longer than 255 bytes, since the
// dialect's length field is a single byte.
func EncodeA(typ byte, payload []byte) ([]byte, error) {
	if len(payload) > maxDialectAPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(payload))
	}
	buf := make([]byte, 0, 7+len(payload))
	buf = append(buf, headerByte, headerByte, typ, byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, xorChecksumA(typ, payload))
	buf = append(buf, trailerByte, trailerByte)
	return buf, nil
}

func xorChecksumA(typ byte, payload []byte) byte {
	cksum := typ ^ byte(len(payload))
	for _, b := range payload {
		cksum ^= b
	}
	return cksum
}

// DecodeOne parses the first complete Dialect-A frame at the head of
// buf. It returns the decoded packet and the number of bytes consumed
// from buf's head. The payload slice aliases buf — it is never copied
// more than once, as required by spec.md §4.1.
//
// On ErrNeedMore, the caller must not advance its buffer: more bytes are
// required before a decision can be made. On any other error, the
// caller should resynchronize by dropping exactly one byte and retrying
// — see ErrBadHeader/ErrBadChecksum/ErrBadTrailer above.
func DecodeOne(buf []byte) (Packet, int, error) {
	if len(buf) < 2 {
		return Packet{}, 0, ErrNeedMore
	}
	if buf[0] != headerByte || buf[1] != headerByte {
		return Packet{}, 0, ErrBadHeader
	}
	if len(buf) < 4 {
		return Packet{}, 0, ErrNeedMore
	}
	typ := buf[2]
	plen := int(buf[3])
	total := 4 + plen + 1 + 2 // header(2)+type+len + payload + checksum + trailer(2)
	if len(buf) < total {
		return Packet{}, 0, ErrNeedMore
	}
	payload := buf[4 : 4+plen]
	gotChecksum := buf[4+plen]
	wantChecksum := xorChecksumA(typ, payload)
	if gotChecksum != wantChecksum {
		return Packet{}, 0, ErrBadChecksum
	}
	if buf[4+plen+1] != trailerByte || buf[4+plen+2] != trailerByte {
		return Packet{}, 0, ErrBadTrailer
	}
	return Packet{Type: typ, Payload: payload}, total, nil
}

// EncodeB serializes a Dialect-B export frame (large-image, offline
// export format only — never sent over a live transport per spec.md
// §9's open question, resolved as: Dialect A only on the wire).
func EncodeB(payload []byte) []byte {
	hi := byte(len(payload) >> 8)
	lo := byte(len(payload))
	buf := make([]byte, 0, 7+len(payload))
	buf = append(buf, headerByte, headerByte, DialectBCommand, hi, lo)
	buf = append(buf, payload...)
	buf = append(buf, additiveChecksumB(hi, lo, payload))
	buf = append(buf, trailerByte, trailerByte)
	return buf
}

func additiveChecksumB(hi, lo byte, payload []byte) byte {
	sum := uint32(DialectBCommand) + uint32(hi) + uint32(lo)
	for _, b := range payload {
		sum += uint32(b)
	}
	return byte(sum)
}

// DecodeOneB parses the first complete Dialect-B frame at the head of
// buf, mirroring DecodeOne's semantics.
func DecodeOneB(buf []byte) (Packet, int, error) {
	if len(buf) < 2 {
		return Packet{}, 0, ErrNeedMore
	}
	if buf[0] != headerByte || buf[1] != headerByte {
		return Packet{}, 0, ErrBadHeader
	}
	if len(buf) < 5 {
		return Packet{}, 0, ErrNeedMore
	}
	cmd := buf[2]
	hi, lo := buf[3], buf[4]
	plen := int(hi)<<8 | int(lo)
	total := 5 + plen + 1 + 2
	if len(buf) < total {
		return Packet{}, 0, ErrNeedMore
	}
	payload := buf[5 : 5+plen]
	gotChecksum := buf[5+plen]
	wantChecksum := additiveChecksumB(hi, lo, payload)
	if gotChecksum != wantChecksum {
		return Packet{}, 0, ErrBadChecksum
	}
	if buf[5+plen+1] != trailerByte || buf[5+plen+2] != trailerByte {
		return Packet{}, 0, ErrBadTrailer
	}
	return Packet{Type: cmd, Payload: payload}, total, nil
}
