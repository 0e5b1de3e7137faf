package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// ServerPublicKeyHex is the uncompressed P-256 key published by the login server.
const ServerPublicKeyHex = "04EBCA94D733E399B2DB96EACDD3F69A8BB0F74224E2B44E3357812211D2E62EFBC91BB553098E25E33A799ADC7F76FEB208DA7C6522CDB0719A305180CC54A82E"

// ServerPublicKeyVersion identifies ServerPublicKeyHex on the wire
const ServerPublicKeyVersion uint16 = 1

var ErrInvalidPublicKey = errors.New("invalid public key")

// ECDH holds one client key pair and the key it shares with the server
type ECDH struct {
	PublicKey       []byte // uncompressed client public key sent to the server
	ShareKey        []byte // md5 of the first 16 bytes of the shared x coordinate
	SvrPublicKeyVer uint16
}

// NewECDH negotiates against the built-in server key
func NewECDH() (*ECDH, error) {
	pub, err := hex.DecodeString(ServerPublicKeyHex)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return NewECDHWithServerKey(pub, ServerPublicKeyVersion, rand.Reader)
}

// NewECDHWithServerKey negotiates against an explicit server key
func NewECDHWithServerKey(serverPublicKey []byte, version uint16, random io.Reader) (*ECDH, error) {
	curve := ecdh.P256()

	serverKey, err := curve.NewPublicKey(serverPublicKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	privateKey, err := curve.GenerateKey(random)
	if err != nil {
		return nil, err
	}

	shared, err := privateKey.ECDH(serverKey)
	if err != nil {
		return nil, err
	}

	return &ECDH{
		PublicKey:       privateKey.PublicKey().Bytes(),
		ShareKey:        MD5(shared[:16]),
		SvrPublicKeyVer: version,
	}, nil
}

// ShareKeyFor derives the same share key from the server side of the exchange.
// The login server never runs this client, it is used to fabricate server
// responses in tests and tools.
func ShareKeyFor(serverPrivateKey *ecdh.PrivateKey, clientPublicKey []byte) ([]byte, error) {
	clientKey, err := ecdh.P256().NewPublicKey(clientPublicKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	shared, err := serverPrivateKey.ECDH(clientKey)
	if err != nil {
		return nil, err
	}
	return MD5(shared[:16]), nil
}
