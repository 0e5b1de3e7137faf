// Package oicqtest plays the login server side of the OICQ envelope so that
// client code can be exercised without a network.
package oicqtest

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/wire"
)

// KeyVersion is the server key version announced by Server
const KeyVersion uint16 = 1

var ErrNoHandshake = errors.New("no request seen yet")

// Request is a client envelope opened by the server
type Request struct {
	Uin     uint32
	Command uint16
	Body    []byte
}

// Server holds a throwaway server key pair and the share key negotiated by
// the last request it opened.
type Server struct {
	key      *ecdh.PrivateKey
	shareKey []byte
}

// NewServer generates a fresh server key pair
func NewServer() (*Server, error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Server{key: key}, nil
}

// PublicKey is the uncompressed server public key clients negotiate against
func (s *Server) PublicKey() []byte {
	return s.key.PublicKey().Bytes()
}

// Open decrypts a client envelope and remembers its share key
func (s *Server) Open(data []byte) (*Request, error) {
	if len(data) < 17 || data[0] != 0x02 || data[len(data)-1] != 0x03 {
		return nil, errors.New("not an oicq envelope")
	}

	r := &Request{}
	hdr := cryptobyte.String(data[1:16])
	var length, version, one uint16
	if !hdr.ReadUint16(&length) || !hdr.ReadUint16(&version) || !hdr.ReadUint16(&r.Command) ||
		!hdr.ReadUint16(&one) || !hdr.ReadUint32(&r.Uin) {
		return nil, errors.New("short envelope header")
	}

	body := cryptobyte.String(data[16 : len(data)-1])
	var randomKey, pub []byte
	var tag uint16
	var keyVersion uint16
	if !body.Skip(2) || !body.ReadBytes(&randomKey, 16) || !body.ReadUint16(&tag) ||
		!body.ReadUint16(&keyVersion) || !wire.ReadU16Bytes(&body, &pub) {
		return nil, errors.New("short ecdh body")
	}

	shareKey, err := crypto.ShareKeyFor(s.key, pub)
	if err != nil {
		return nil, err
	}
	if r.Body, err = crypto.TEADecrypt(shareKey, body); err != nil {
		return nil, fmt.Errorf("failed to decrypt request: %w", err)
	}
	s.shareKey = shareKey
	return r, nil
}

// Reply seals body the way the login server answers, keyed with the share
// key of the last opened request.
func (s *Server) Reply(uin uint32, command uint16, body []byte) ([]byte, error) {
	if s.shareKey == nil {
		return nil, ErrNoHandshake
	}
	encrypted, err := crypto.TEAEncrypt(s.shareKey, body)
	if err != nil {
		return nil, err
	}
	return wire.NewWriter().
		U8(0x02).
		U16(uint16(16 + len(encrypted) + 1)).
		U16(8001).
		U16(command).
		U16(1).
		U32(uin).
		U8(0x03).
		U8(0x00).
		U8(0).
		Bytes(encrypted).
		U8(0x03).
		Build(), nil
}
