// Package info decodes the GET_INFO/heartbeat/RFID family of responses
// into typed Go values, the tag-per-field way the teacher's own device
// status parsing works.
package info

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/Junsang-Mun/niimbot-web/protocol"
	"github.com/Junsang-Mun/niimbot-web/router"
)

// Key identifies a GET_INFO field. Its numeric value doubles as the
// expected response type, since GET_INFO's response offset is the key
// itself rather than a fixed +1/+16 (spec.md §3).
type Key byte

const (
	KeyDensity       Key = 0x01
	KeyPrintSpeed    Key = 0x02
	KeyLabelType     Key = 0x03
	KeyLanguage      Key = 0x04
	KeyAutoShutdown  Key = 0x05
	KeyDeviceType    Key = 0x06
	KeySoftVersion   Key = 0x07
	KeyHardVersion   Key = 0x08
	KeyBattery       Key = 0x0A
	KeyDeviceSerial  Key = 0x0B
)

// Service decodes info-family responses over a shared router.
type Service struct {
	r *router.ResponseRouter
}

// New constructs a Service reading and writing through r.
func New(r *router.ResponseRouter) *Service {
	return &Service{r: r}
}

// GetInfo requests key and decodes its payload per key's tagged value
// type: KeySoftVersion/KeyHardVersion are big-endian integers divided
// by 100; KeyDeviceSerial is rendered as lowercase hex; every other key
// is a plain big-endian unsigned integer.
func (s *Service) GetInfo(ctx context.Context, key Key) (any, error) {
	pkt, err := s.r.Transceive(ctx, byte(protocol.ReqGetInfo), []byte{byte(key)}, protocol.ResponseCode(key))
	if err != nil {
		return nil, err
	}
	return decodeInfoValue(key, pkt.Payload)
}

// Density requests KeyDensity and returns it as a plain integer.
func (s *Service) Density(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyDensity)
}

// PrintSpeed requests KeyPrintSpeed and returns it as a plain integer.
func (s *Service) PrintSpeed(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyPrintSpeed)
}

// LabelType requests KeyLabelType and returns it as a plain integer.
func (s *Service) LabelType(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyLabelType)
}

// Language requests KeyLanguage and returns it as a plain integer.
func (s *Service) Language(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyLanguage)
}

// AutoShutdown requests KeyAutoShutdown and returns it as a plain
// integer (the device's configured idle-shutdown setting, not a bool).
func (s *Service) AutoShutdown(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyAutoShutdown)
}

// DeviceType requests KeyDeviceType and returns it as a plain integer.
func (s *Service) DeviceType(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyDeviceType)
}

// Battery requests KeyBattery and returns it as a plain integer.
func (s *Service) Battery(ctx context.Context) (int, error) {
	return s.uintField(ctx, KeyBattery)
}

// SoftVersion requests KeySoftVersion and returns the big-endian value
// divided by 100, per decodeInfoValue's version-field convention.
func (s *Service) SoftVersion(ctx context.Context) (float64, error) {
	return s.floatField(ctx, KeySoftVersion)
}

// HardVersion requests KeyHardVersion and returns the big-endian value
// divided by 100, per decodeInfoValue's version-field convention.
func (s *Service) HardVersion(ctx context.Context) (float64, error) {
	return s.floatField(ctx, KeyHardVersion)
}

// DeviceSerial requests KeyDeviceSerial and returns it as a lowercase
// hex string.
func (s *Service) DeviceSerial(ctx context.Context) (string, error) {
	v, err := s.GetInfo(ctx, KeyDeviceSerial)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("info: KeyDeviceSerial decoded as %T, want string", v)
	}
	return str, nil
}

func (s *Service) uintField(ctx context.Context, key Key) (int, error) {
	v, err := s.GetInfo(ctx, key)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint64)
	if !ok {
		return 0, fmt.Errorf("info: key 0x%02x decoded as %T, want uint64", byte(key), v)
	}
	return int(u), nil
}

func (s *Service) floatField(ctx context.Context, key Key) (float64, error) {
	v, err := s.GetInfo(ctx, key)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("info: key 0x%02x decoded as %T, want float64", byte(key), v)
	}
	return f, nil
}

func decodeInfoValue(key Key, payload []byte) (any, error) {
	switch key {
	case KeyDeviceSerial:
		return hex.EncodeToString(payload), nil
	case KeySoftVersion, KeyHardVersion:
		v, err := beUint(payload)
		if err != nil {
			return nil, err
		}
		return float64(v) / 100.0, nil
	default:
		return beUint(payload)
	}
}

func beUint(b []byte) (uint64, error) {
	switch len(b) {
	case 0:
		return 0, fmt.Errorf("info: empty payload")
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), nil
	case 8:
		return binary.BigEndian.Uint64(b), nil
	default:
		// Non-power-of-two widths (e.g. 3 bytes) still occur on the
		// wire; decode them as a big-endian integer byte by byte.
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v, nil
	}
}

// HeartbeatStatus holds the fields decoded from a HEARTBEAT response.
// The response payload's field layout depends on its total length — 9,
// 10, 13, 19, or 20 bytes are all observed firmware variants — so each
// field's offset is looked up by payload length in heartbeatOffsets;
// Raw keeps the whole payload.
type HeartbeatStatus struct {
	PaperState  byte
	RFIDPresent byte
	PowerState  byte
	Raw         []byte
}

var heartbeatOffsets = map[int]struct{ Paper, RFID, Power int }{
	9:  {Paper: 0, RFID: 1, Power: 2},
	10: {Paper: 0, RFID: 1, Power: 2},
	13: {Paper: 2, RFID: 4, Power: 6},
	19: {Paper: 4, RFID: 6, Power: 8},
	20: {Paper: 4, RFID: 6, Power: 8},
}

// Heartbeat sends a HEARTBEAT request and decodes the response fields
// according to the payload-length-keyed offset table above.
func (s *Service) Heartbeat(ctx context.Context) (HeartbeatStatus, error) {
	pkt, err := s.r.Transceive(ctx, byte(protocol.ReqHeartbeat), []byte{0x01}, protocol.ExpectedResponse(protocol.ReqHeartbeat))
	if err != nil {
		return HeartbeatStatus{}, err
	}
	offsets, ok := heartbeatOffsets[len(pkt.Payload)]
	if !ok {
		return HeartbeatStatus{Raw: pkt.Payload}, fmt.Errorf("info: unrecognized heartbeat payload length %d", len(pkt.Payload))
	}
	return HeartbeatStatus{
		PaperState:  pkt.Payload[offsets.Paper],
		RFIDPresent: pkt.Payload[offsets.RFID],
		PowerState:  pkt.Payload[offsets.Power],
		Raw:         pkt.Payload,
	}, nil
}

// RFIDInfo is the variable-length RFID tag record returned by
// GET_RFID. IsPresent is false, and every other field is empty, when
// the payload is empty or its first byte is zero, meaning no label
// stock with an RFID tag is loaded.
type RFIDInfo struct {
	IsPresent bool
	UUID      string
	Barcode   string
	SerialNo  string
	TotalLen  uint32
	UsedLen   uint32
	Type      byte
}

// GetRFID requests and parses the RFID tag record, if present.
func (s *Service) GetRFID(ctx context.Context) (RFIDInfo, error) {
	pkt, err := s.r.Transceive(ctx, byte(protocol.ReqGetRFID), nil, protocol.ExpectedResponse(protocol.ReqGetRFID))
	if err != nil {
		return RFIDInfo{}, err
	}
	return parseRFID(pkt.Payload)
}

func parseRFID(b []byte) (RFIDInfo, error) {
	if len(b) == 0 || b[0] == 0 {
		return RFIDInfo{IsPresent: false}, nil
	}
	r := rfidReader{b: b, off: 1}
	uuid, err := r.lenPrefixedString()
	if err != nil {
		return RFIDInfo{}, err
	}
	barcode, err := r.lenPrefixedString()
	if err != nil {
		return RFIDInfo{}, err
	}
	serial, err := r.lenPrefixedString()
	if err != nil {
		return RFIDInfo{}, err
	}
	totalLen, err := r.uint32()
	if err != nil {
		return RFIDInfo{}, err
	}
	usedLen, err := r.uint32()
	if err != nil {
		return RFIDInfo{}, err
	}
	typ, err := r.byte()
	if err != nil {
		return RFIDInfo{}, err
	}
	return RFIDInfo{
		IsPresent: true,
		UUID:      uuid,
		Barcode:   barcode,
		SerialNo:  serial,
		TotalLen:  totalLen,
		UsedLen:   usedLen,
		Type:      typ,
	}, nil
}

// rfidReader sequentially consumes a one-byte-length-prefixed-field
// stream, the format GET_RFID's payload uses for its variable-length
// string fields.
type rfidReader struct {
	b   []byte
	off int
}

func (r *rfidReader) byte() (byte, error) {
	if r.off >= len(r.b) {
		return 0, fmt.Errorf("info: rfid payload truncated at byte offset %d", r.off)
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *rfidReader) uint32() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, fmt.Errorf("info: rfid payload truncated at uint32 offset %d", r.off)
	}
	v := binary.BigEndian.Uint32(r.b[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *rfidReader) lenPrefixedString() (string, error) {
	n, err := r.byte()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.b) {
		return "", fmt.Errorf("info: rfid payload truncated at string of length %d, offset %d", n, r.off)
	}
	s := string(r.b[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}
