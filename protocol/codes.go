// Package protocol implements the NIIMBOT framed binary wire protocol:
// packet encoding/decoding for both the online command dialect and the
// offline export dialect, and the request/response code tables.
package protocol

// RequestCode is the 8-bit opcode of a request packet.
type RequestCode byte

// ResponseCode is the 8-bit opcode of a response packet.
type ResponseCode byte

// Request opcodes in scope for the live protocol.
const (
	ReqGetRFID          RequestCode = 0x1A
	ReqStartPrint       RequestCode = 0x01
	ReqSetDimension     RequestCode = 0x13
	ReqSetQuantity      RequestCode = 0x15
	ReqStartPagePrint   RequestCode = 0x03
	ReqAllowPrintClear  RequestCode = 0x20
	ReqSetLabelDensity  RequestCode = 0x21
	ReqSetLabelType     RequestCode = 0x23
	ReqImageRow         RequestCode = 0x85
	ReqGetPrintStatus   RequestCode = 0xA3
	ReqGetInfo          RequestCode = 0x40
	ReqHeartbeat        RequestCode = 0xDC
	ReqEndPagePrint     RequestCode = 0xE3
	ReqEndPrint         RequestCode = 0xF3
)

// RespError is the error packet type; it can appear unsolicited at any
// point during a transceive and always aborts it with PrinterError.
const RespError ResponseCode = 0xDB

// respOffsetPlusOne is the family of requests whose expected response
// type is request+1.
var respOffsetPlusOne = map[RequestCode]bool{
	ReqStartPrint:     true,
	ReqEndPrint:       true,
	ReqStartPagePrint: true,
	ReqEndPagePrint:   true,
	ReqSetDimension:   true,
	ReqSetQuantity:    true,
}

// respOffsetPlusSixteen is the family whose expected response type is
// request+16.
var respOffsetPlusSixteen = map[RequestCode]bool{
	ReqSetLabelType:    true,
	ReqSetLabelDensity: true,
	ReqAllowPrintClear: true,
	ReqGetPrintStatus:  true,
}

// ExpectedResponse returns the response type a transceive of req should
// wait for. GET_INFO is handled separately by the caller: its expected
// response type is the info key itself, not a function of the request
// code, so it is not covered by this table.
func ExpectedResponse(req RequestCode) ResponseCode {
	switch {
	case respOffsetPlusSixteen[req]:
		return ResponseCode(byte(req) + 16)
	case respOffsetPlusOne[req]:
		return ResponseCode(byte(req) + 1)
	default:
		return ResponseCode(byte(req) + 1)
	}
}
