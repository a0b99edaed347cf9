package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeA_EmptyPayload(t *testing.T) {
	got, err := EncodeA(0x01, nil)
	if err != nil {
		t.Fatalf("EncodeA: %v", err)
	}
	want := []byte{0x55, 0x55, 0x01, 0x00, 0x01, 0xAA, 0xAA}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeA = % x, want % x", got, want)
	}
}

func TestEncodeA_SetDimension(t *testing.T) {
	// type=0x13 (SET_DIMENSION), payload = height=0x0018, width=0x0180
	got, err := EncodeA(0x13, []byte{0x00, 0x18, 0x01, 0x80})
	if err != nil {
		t.Fatalf("EncodeA: %v", err)
	}
	want := []byte{0x55, 0x55, 0x13, 0x04, 0x00, 0x18, 0x01, 0x80, 0x8E, 0xAA, 0xAA}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeA = % x, want % x", got, want)
	}
}

func TestEncodeA_PayloadTooLong(t *testing.T) {
	_, err := EncodeA(0x85, make([]byte, 256))
	if !errors.Is(err, ErrPayloadTooLong) {
		t.Fatalf("err = %v, want ErrPayloadTooLong", err)
	}
}

func TestDecodeOne_RoundTrip(t *testing.T) {
	frame, err := EncodeA(0x02, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err != nil {
		t.Fatalf("EncodeA: %v", err)
	}
	pkt, n, err := DecodeOne(frame)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("consumed %d bytes, want %d", n, len(frame))
	}
	if pkt.Type != 0x02 || !bytes.Equal(pkt.Payload, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("got %v", pkt)
	}
}

func TestDecodeOne_NeedMore(t *testing.T) {
	frame, _ := EncodeA(0x02, []byte{0x01, 0x02, 0x03})
	for i := 1; i < len(frame); i++ {
		if _, _, err := DecodeOne(frame[:i]); !errors.Is(err, ErrNeedMore) {
			t.Fatalf("prefix len %d: err = %v, want ErrNeedMore", i, err)
		}
	}
}

func TestDecodeOne_BadChecksumOnBitFlip(t *testing.T) {
	frame, _ := EncodeA(0x02, []byte{0x01, 0x02, 0x03})
	frame[5] ^= 0x01 // flip a payload bit without touching header/length
	_, _, err := DecodeOne(frame)
	if !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("err = %v, want ErrBadChecksum", err)
	}
}

func TestDecodeOne_BadTrailer(t *testing.T) {
	frame, _ := EncodeA(0x02, []byte{0x01})
	frame[len(frame)-1] = 0x00
	_, _, err := DecodeOne(frame)
	if !errors.Is(err, ErrBadTrailer) {
		t.Fatalf("err = %v, want ErrBadTrailer", err)
	}
}

func TestDecodeOne_BadHeader(t *testing.T) {
	_, _, err := DecodeOne([]byte{0x00, 0x00, 0x01, 0x00})
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("err = %v, want ErrBadHeader", err)
	}
}

func TestDecodeOne_ResyncByOneByte(t *testing.T) {
	frame, _ := EncodeA(0x02, []byte{0x01, 0x02})
	garbage := append([]byte{0x11, 0x22, 0x33}, frame...)
	buf := garbage
	consumed := 0
	for {
		_, n, err := DecodeOne(buf)
		if err == nil {
			break
		}
		if errors.Is(err, ErrNeedMore) {
			t.Fatalf("ran out of buffer before resync: consumed %d of %d", consumed, len(garbage))
		}
		buf = buf[1:]
		consumed++
		if consumed > len(garbage) {
			t.Fatalf("resync never found a valid frame")
		}
		_ = n
	}
	if consumed != 3 {
		t.Fatalf("consumed %d garbage bytes before resync, want 3", consumed)
	}
}

func TestEncodeDecodeB_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 300) // exceeds dialect-A's 255 cap
	frame := EncodeB(payload)
	pkt, n, err := DecodeOneB(frame)
	if err != nil {
		t.Fatalf("DecodeOneB: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("consumed %d, want %d", n, len(frame))
	}
	if pkt.Type != DialectBCommand || !bytes.Equal(pkt.Payload, payload) {
		t.Fatalf("got type=0x%02x len=%d", pkt.Type, len(pkt.Payload))
	}
}

func TestDecodeOneB_BadChecksum(t *testing.T) {
	frame := EncodeB([]byte{0x01, 0x02, 0x03})
	frame[6] ^= 0xFF
	_, _, err := DecodeOneB(frame)
	if !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("err = %v, want ErrBadChecksum", err)
	}
}
