// Package oicq wraps wtlogin bodies in the ECDH-keyed OICQ envelope
package oicq

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/wire"
)

const (
	envelopeStart   = 0x02
	envelopeEnd     = 0x03
	envelopeVersion = 8001
	headerSize      = 16
)

// EncryptMethod tags how the envelope body is keyed
type EncryptMethod uint8

const (
	EncryptECDH EncryptMethod = 0x87
	EncryptST   EncryptMethod = 0x45
)

// Response encryption tags
const (
	responseShareKey  uint8 = 0x00
	responseRandomKey uint8 = 0x03
)

var (
	ErrUnknownFlag          = errors.New("unknown envelope flag")
	ErrUnknownEncryptMethod = errors.New("unknown encrypt method")
	ErrMalformed            = errors.New("malformed envelope")
)

// Message is a decoded wtlogin envelope
type Message struct {
	Uin           uint32
	Command       uint16
	EncryptMethod EncryptMethod
	Body          []byte
}

// Codec seals outgoing wtlogin bodies and opens server replies
type Codec struct {
	ecdh      *crypto.ECDH
	randomKey []byte
}

// NewCodec negotiates a fresh ECDH key pair against the built-in server key
func NewCodec() (*Codec, error) {
	e, err := crypto.NewECDH()
	if err != nil {
		return nil, err
	}
	return NewCodecWithECDH(e, rand.Reader)
}

// NewCodecWithECDH uses an already negotiated key pair
func NewCodecWithECDH(e *crypto.ECDH, random io.Reader) (*Codec, error) {
	key := make([]byte, crypto.TEAKeySize)
	if _, err := io.ReadFull(random, key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return &Codec{ecdh: e, randomKey: key}, nil
}

// PublicKey returns the client ECDH public key sent in every envelope
func (c *Codec) PublicKey() []byte {
	return c.ecdh.PublicKey
}

// Marshal seals m. Only ECDH keyed envelopes are produced.
func (c *Codec) Marshal(m *Message) ([]byte, error) {
	method := m.EncryptMethod
	if method == 0 {
		method = EncryptECDH
	}
	if method != EncryptECDH {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownEncryptMethod, uint8(method))
	}

	encrypted, err := crypto.TEAEncrypt(c.ecdh.ShareKey, m.Body)
	if err != nil {
		return nil, err
	}

	body := wire.NewWriter().
		U8(0x02).
		U8(0x01).
		Bytes(c.randomKey).
		U16(0x0131).
		U16(c.ecdh.SvrPublicKeyVer).
		BytesU16(c.ecdh.PublicKey).
		Bytes(encrypted).
		Build()

	return seal(m.Uin, m.Command, uint8(method), body), nil
}

// seal writes the envelope around an already encrypted body
func seal(uin uint32, command uint16, method uint8, body []byte) []byte {
	total := headerSize + len(body) + 1
	return wire.NewWriter().
		U8(envelopeStart).
		U16(uint16(total)).
		U16(envelopeVersion).
		U16(command).
		U16(1).
		U32(uin).
		U8(0x03).
		U8(method).
		U8(0).
		Bytes(body).
		U8(envelopeEnd).
		Build()
}

// Unmarshal opens a server reply
func (c *Codec) Unmarshal(data []byte) (*Message, error) {
	if len(data) < headerSize+1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	if data[0] != envelopeStart || data[len(data)-1] != envelopeEnd {
		return nil, ErrUnknownFlag
	}

	s := cryptobyte.String(data[1:headerSize])
	m := &Message{}
	var length, version, one uint16
	var tag, method, zero uint8
	if !s.ReadUint16(&length) ||
		!s.ReadUint16(&version) ||
		!s.ReadUint16(&m.Command) ||
		!s.ReadUint16(&one) ||
		!s.ReadUint32(&m.Uin) ||
		!s.ReadUint8(&tag) ||
		!s.ReadUint8(&method) ||
		!s.ReadUint8(&zero) {
		return nil, ErrMalformed
	}
	m.EncryptMethod = EncryptMethod(method)

	payload := data[headerSize : len(data)-1]
	var err error
	switch method {
	case responseShareKey:
		m.Body, err = crypto.TEADecrypt(c.ecdh.ShareKey, payload)
		if err != nil {
			// Some replies fall back to the random key
			m.Body, err = crypto.TEADecrypt(c.randomKey, payload)
		}
	case responseRandomKey:
		m.Body, err = crypto.TEADecrypt(c.randomKey, payload)
	default:
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownEncryptMethod, method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt envelope: %w", err)
	}
	return m, nil
}
