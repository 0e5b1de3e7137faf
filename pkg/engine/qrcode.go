package engine

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/synodriver/rqgo/pkg/protocol"
	"github.com/synodriver/rqgo/pkg/wire"
)

const (
	cmdTransEmp   = "wtlogin.trans_emp"
	oicqTransEmp  = 0x812
	code2dFetch   = 0x31
	code2dQuery   = 0x12
	code2dVersion = 50
	code2dEnd     = 0x03
	tgtgtKeyLen   = 16
)

// trans-emp poll status codes
const (
	qrStatusConfirmed         = 0x00
	qrStatusTimeout           = 0x11
	qrStatusWaitingForScan    = 0x30
	qrStatusWaitingForConfirm = 0x35
	qrStatusCanceled          = 0x36
)

var (
	fetchTransHead = mustHex("0001110000001000000072000000")
	queryTransHead = mustHex("0000620000001000000072000000")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// code2d wraps a trans-emp sub command
func code2d(seq uint32, cmd uint16, body []byte) []byte {
	return wire.NewWriter().
		U8(2).
		U16(uint16(43 + len(body) + 1)).
		U16(cmd).
		Bytes(make([]byte, 21)).
		U8(3).
		U16(0).
		U16(code2dVersion).
		U32(seq).
		U64(0).
		Bytes(body).
		U8(code2dEnd).
		Build()
}

func (e *Engine) transEmp(head []byte, seq uint32, cmd uint16, body []byte) []byte {
	return wire.NewWriter().
		Bytes(head).
		U32(uint32(e.now().Unix())).
		Bytes(code2d(seq, cmd, body)).
		Build()
}

// BuildQRCodeFetchRequestPacket asks the server for a new login QR code
func (e *Engine) BuildQRCodeFetchRequestPacket() (*protocol.Packet, error) {
	v := e.transport.Version
	p := e.transport.Device
	guid := p.GUID()

	body := wire.NewWriter().
		U16(0).
		U32(16).
		U64(0).
		U8(8).
		BytesU16(nil).
		U16(6).
		Bytes(t16(v, guid)).
		Bytes(t1b()).
		Bytes(t1d(v.MiscBitmap)).
		Bytes(t1f(p)).
		Bytes(t33(guid)).
		Bytes(t35(8)).
		Build()

	return e.wtlogin(e.NextSeq(), cmdTransEmp, oicqTransEmp, 0, e.transEmp(fetchTransHead, 0, code2dFetch, body))
}

// BuildQRCodeResultQueryRequestPacket polls the state of the code identified
// by sig, as returned in QRCodeImageFetch.
func (e *Engine) BuildQRCodeResultQueryRequestPacket(sig []byte) (*protocol.Packet, error) {
	body := wire.NewWriter().
		U16(5).
		U8(1).
		U32(8).
		U32(16).
		BytesU16(sig).
		U64(0).
		U8(8).
		BytesU16(nil).
		U16(0).
		Build()

	return e.wtlogin(e.NextSeq(), cmdTransEmp, oicqTransEmp, 0, e.transEmp(queryTransHead, 1, code2dQuery, body))
}

// DecodeTransEmpResponse interprets the body of a trans_emp reply. A
// Confirmed state binds its uin and keys to the session before returning.
func (e *Engine) DecodeTransEmpResponse(payload []byte) (QRCodeState, error) {
	m, err := e.codec.Unmarshal(payload)
	if err != nil {
		return nil, responseError(cmdTransEmp, err)
	}

	state, tgtgtKey, err := parseTransEmp(m.Body)
	if err != nil {
		return nil, responseError(cmdTransEmp, err)
	}

	if c, ok := state.(QRCodeConfirmed); ok {
		e.mu.Lock()
		e.applyQRCodeConfirmed(c, tgtgtKey)
		e.mu.Unlock()
		e.log.Info().Int64("uin", c.Uin).Msg("qrcode confirmed")
	} else {
		e.log.Debug().Str("state", fmt.Sprintf("%T", state)).Msg("trans_emp response")
	}
	return state, nil
}

func parseTransEmp(body []byte) (QRCodeState, []byte, error) {
	s := cryptobyte.String(body)
	var cmd uint16
	if !s.Skip(5) || // trans head
		!s.Skip(1+2) ||
		!s.ReadUint16(&cmd) ||
		!s.Skip(21+1+2+2+4+8) {
		return nil, nil, wire.ErrTruncated
	}
	if len(s) == 0 || s[len(s)-1] != code2dEnd {
		return nil, nil, ErrMissingTerminator
	}
	s = s[:len(s)-1]

	switch cmd {
	case code2dFetch:
		return parseQRCodeFetch(s)
	case code2dQuery:
		return parseQRCodeQuery(s)
	default:
		return nil, nil, fmt.Errorf("%w: trans_emp 0x%x", ErrUnexpectedCommand, cmd)
	}
}

func parseQRCodeFetch(s cryptobyte.String) (QRCodeState, []byte, error) {
	var code uint8
	var sig []byte
	if !s.Skip(2+4) || !s.ReadUint8(&code) {
		return nil, nil, wire.ErrTruncated
	}
	if code != 0 {
		return nil, nil, fmt.Errorf("%w: fetch code 0x%x", ErrUnknownQRCodeStatus, code)
	}
	if !wire.ReadU16Bytes(&s, &sig) || !s.Skip(2) {
		return nil, nil, wire.ErrTruncated
	}

	tlvs, err := wire.ReadTLVMap(s, 2)
	if err != nil {
		return nil, nil, err
	}
	image, ok := tlvs[0x17]
	if !ok {
		return nil, nil, fmt.Errorf("%w: 0x17 image", ErrMissingTLV)
	}
	return QRCodeImageFetch{Sig: sig, Image: image}, nil, nil
}

func parseQRCodeQuery(s cryptobyte.String) (QRCodeState, []byte, error) {
	var extra uint16
	if !s.ReadUint16(&extra) || !s.Skip(int(extra)) {
		return nil, nil, wire.ErrTruncated
	}

	var code uint8
	if !s.Skip(4) || !s.ReadUint8(&code) {
		return nil, nil, wire.ErrTruncated
	}
	switch code {
	case qrStatusConfirmed:
	case qrStatusWaitingForScan:
		return QRCodeWaitingForScan{}, nil, nil
	case qrStatusWaitingForConfirm:
		return QRCodeWaitingForConfirm{}, nil, nil
	case qrStatusCanceled:
		return QRCodeCanceled{}, nil, nil
	case qrStatusTimeout:
		return QRCodeTimeout{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: 0x%x", ErrUnknownQRCodeStatus, code)
	}

	var uin uint64
	if !s.ReadUint64(&uin) || !s.Skip(4+2) {
		return nil, nil, wire.ErrTruncated
	}
	tlvs, err := wire.ReadTLVMap(s, 2)
	if err != nil {
		return nil, nil, err
	}
	for _, tag := range []uint16{0x18, 0x19, 0x1E} {
		if !tlvs.Has(tag) {
			return nil, nil, fmt.Errorf("%w: 0x%x", ErrMissingTLV, tag)
		}
	}
	if n := len(tlvs[0x1E]); n != tgtgtKeyLen {
		return nil, nil, fmt.Errorf("%w: tgtgt key is %d bytes", ErrInvalidTLV, n)
	}

	return QRCodeConfirmed{
		Uin:         int64(uin),
		TmpPwd:      tlvs[0x18],
		TmpNoPicSig: tlvs[0x19],
		TgtQR:       tlvs[0x65],
	}, tlvs[0x1E], nil
}
