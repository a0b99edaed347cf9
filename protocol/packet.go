package protocol

import "fmt"

// Packet is a single unit of protocol exchange: an opcode and its
// payload. It is constructed by the caller (PrintJob, InfoService),
// serialized by EncodeA, parsed back by DecodeOne, and then discarded —
// it carries no transport state of its own.
type Packet struct {
	Type    byte
	Payload []byte
}

// ResponseType returns p.Type re-exposed as a ResponseCode, for callers
// matching against an expected response.
func (p Packet) ResponseType() ResponseCode {
	return ResponseCode(p.Type)
}

// IsError reports whether p is the protocol-level error packet (type
// 0xDB), which can arrive unsolicited while a transceive is pending.
func (p Packet) IsError() bool {
	return ResponseCode(p.Type) == RespError
}

func (p Packet) String() string {
	return fmt.Sprintf("packet{type=0x%02x, payload=% x}", p.Type, p.Payload)
}
