package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/crypto/cryptobyte"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/wire"
)

// Transport converts between packets and wire frames for one session
type Transport struct {
	Device  device.Profile
	Version AppVersion
	Sig     *Sig
}

// NewTransport creates a transport with empty session secrets
func NewTransport(profile device.Profile, version AppVersion) *Transport {
	return &Transport{
		Device:  profile,
		Version: version,
		Sig: &Sig{
			Ksid:        profile.Ksid(),
			PsKeyMap:    make(map[string][]byte),
			Pt4TokenMap: make(map[string][]byte),
		},
	}
}

func (t *Transport) sig() *Sig {
	if t.Sig == nil {
		return &Sig{}
	}
	return t.Sig
}

func (t *Transport) key(enc EncryptType) ([]byte, error) {
	switch enc {
	case EncryptNone:
		return nil, nil
	case EncryptD2Key:
		if !t.sig().HasSessionKey() {
			return nil, ErrMissingSessionKey
		}
		return t.Sig.D2Key, nil
	case EncryptEmptyKey:
		return crypto.EmptyKey[:], nil
	default:
		return nil, ErrInvalidEncryptType
	}
}

// EncodePacket frames and encrypts p
func (t *Transport) EncodePacket(p *Packet) ([]byte, error) {
	if !p.Type.valid() {
		return nil, encodeError(fmt.Errorf("%w: 0x%x", ErrInvalidPacketType, uint32(p.Type)))
	}
	key, err := t.key(p.EncryptType)
	if err != nil {
		return nil, encodeError(err)
	}

	login := p.Type == PacketTypeLogin
	sso := wire.NewWriter()
	head := ssoHeader{
		SeqID:       p.SeqID,
		Message:     p.Message,
		CommandName: p.CommandName,
		SessionID:   t.sig().OutPacketSessionID,
		Compression: compressNone,
	}
	head.Encode(sso, login, t)
	sso.BytesU32Incl(p.Body)

	payload := sso.Build()
	if key != nil {
		payload, err = crypto.TEAEncrypt(key, payload)
		if err != nil {
			return nil, encodeError(err)
		}
	}

	w := wire.NewWriter()
	w.U32(uint32(p.Type)).U8(uint8(p.EncryptType))
	if login {
		var d2 []byte
		if p.EncryptType == EncryptD2Key {
			d2 = t.sig().D2
		}
		w.BytesU32Incl(d2)
	} else {
		w.I32(p.SeqID)
	}
	w.U8(0).
		StringU32Incl(strconv.FormatInt(p.Uin, 10)).
		Bytes(payload)

	return wire.NewWriter().BytesU32Incl(w.Build()).Build(), nil
}

// DecodePacket parses one frame from the start of data. Bytes after the
// frame are ignored. On failure the error is a *CodecError and no packet is
// returned.
func (t *Transport) DecodePacket(data []byte) (*Packet, error) {
	p, err := t.decode(data)
	if err != nil {
		return nil, decodeError(err)
	}
	return p, nil
}

func (t *Transport) decode(data []byte) (*Packet, error) {
	s := cryptobyte.String(data)
	var frame []byte
	var length uint32
	if !s.ReadUint32(&length) {
		return nil, ErrTruncated
	}
	if length < 4 {
		return nil, fmt.Errorf("%w: frame length %d", ErrLengthMismatch, length)
	}
	if !s.ReadBytes(&frame, int(length-4)) {
		return nil, fmt.Errorf("%w: frame needs %d bytes, have %d", ErrTruncated, length, len(data))
	}

	f := cryptobyte.String(frame)
	var rawType uint32
	var rawEnc, zero uint8
	if !f.ReadUint32(&rawType) || !f.ReadUint8(&rawEnc) {
		return nil, ErrTruncated
	}
	p := &Packet{Type: PacketType(rawType), EncryptType: EncryptType(rawEnc)}
	if !p.Type.valid() {
		return nil, fmt.Errorf("%w: 0x%x", ErrInvalidPacketType, rawType)
	}
	if !p.EncryptType.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEncryptType, rawEnc)
	}

	var outerSeq int32
	if p.Type == PacketTypeLogin {
		var d2 []byte
		if !wire.ReadU32Incl(&f, &d2) {
			return nil, ErrTruncated
		}
	} else if !wire.ReadInt32(&f, &outerSeq) {
		return nil, ErrTruncated
	}

	var uin []byte
	if !f.ReadUint8(&zero) || !wire.ReadU32Incl(&f, &uin) {
		return nil, ErrTruncated
	}
	var err error
	if p.Uin, err = strconv.ParseInt(string(uin), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUin, uin)
	}

	key, err := t.key(p.EncryptType)
	if err != nil {
		return nil, err
	}
	payload := []byte(f)
	if key != nil {
		if payload, err = crypto.TEADecrypt(key, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
	}

	sso := cryptobyte.String(payload)
	var head ssoHeader
	var body []byte
	if !head.Decode(&sso) || !wire.ReadU32Incl(&sso, &body) {
		return nil, ErrTruncated
	}
	if p.Type == PacketTypeSimple && head.SeqID != outerSeq {
		return nil, fmt.Errorf("%w: frame %d, head %d", ErrSeqMismatch, outerSeq, head.SeqID)
	}

	switch head.Compression {
	case compressNone, compressNoneAlt:
		p.Body = bytes.Clone(body)
	case compressZlib:
		if p.Body, err = inflate(body); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: flag %d", ErrCompression, head.Compression)
	}
	if len(p.Body) == 0 {
		p.Body = nil
	}

	p.SeqID = head.SeqID
	p.CommandName = head.CommandName
	p.Message = head.Message
	if p.Message == "" && head.RetCode != 0 {
		p.Message = fmt.Sprintf("ret code %d", head.RetCode)
	}
	return p, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	return out, nil
}
