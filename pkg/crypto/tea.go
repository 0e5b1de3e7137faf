package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/tea"
)

// teaRounds is QQ's 16 Feistel cycles; x/crypto/tea counts half cycles.
const teaRounds = 32

// TEAKeySize is the key size accepted by NewTEA
const TEAKeySize = 16

var (
	ErrInvalidKey        = errors.New("invalid key")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// EmptyKey is the all-zero key used before any session key exists.
var EmptyKey = [TEAKeySize]byte{}

// TEA is the chained TEA mode used by the OICQ family of protocols.
//
// Plaintext is prefixed with 3-10 bytes (the low 3 bits of the first byte
// record how many) and suffixed with 7 zero bytes, so the output is always a
// multiple of 8 and at least 16 bytes long. Each block is XORed with the
// previous ciphertext before encryption and with the previous pre-encryption
// block afterwards.
type TEA struct {
	block cipher.Block
	rand  io.Reader
}

// NewTEA creates a cipher for a 16-byte key
func NewTEA(key []byte) (*TEA, error) {
	if len(key) != TEAKeySize {
		return nil, ErrInvalidKey
	}
	block, err := tea.NewCipherWithRounds(key, teaRounds)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return &TEA{block: block, rand: rand.Reader}, nil
}

// Encrypt encrypts src into a new buffer
func (t *TEA) Encrypt(src []byte) []byte {
	fill := 10 - (len(src)+1)%8
	dst := make([]byte, fill+len(src)+7)
	// Padding bytes only need to be unpredictable, a failed read leaves zeros.
	_, _ = io.ReadFull(t.rand, dst[1:fill])
	dst[0] = byte(fill-3) | 0xF8
	copy(dst[fill:], src)

	var prevCipher, prevMixed uint64
	var in, out [8]byte
	for i := 0; i < len(dst); i += 8 {
		mixed := binary.BigEndian.Uint64(dst[i:]) ^ prevCipher
		binary.BigEndian.PutUint64(in[:], mixed)
		t.block.Encrypt(out[:], in[:])
		c := binary.BigEndian.Uint64(out[:]) ^ prevMixed
		binary.BigEndian.PutUint64(dst[i:], c)
		prevCipher, prevMixed = c, mixed
	}
	return dst
}

// Decrypt reverses Encrypt. It fails on bad lengths or corrupted padding.
func (t *TEA) Decrypt(src []byte) ([]byte, error) {
	if len(src) < 16 || len(src)%8 != 0 {
		return nil, ErrInvalidCiphertext
	}

	dst := make([]byte, len(src))
	var prevCipher, prevMixed uint64
	var in, out [8]byte
	for i := 0; i < len(src); i += 8 {
		c := binary.BigEndian.Uint64(src[i:])
		binary.BigEndian.PutUint64(in[:], c^prevMixed)
		t.block.Decrypt(out[:], in[:])
		mixed := binary.BigEndian.Uint64(out[:])
		binary.BigEndian.PutUint64(dst[i:], mixed^prevCipher)
		prevCipher, prevMixed = c, mixed
	}

	start := int(dst[0]&7) + 3
	end := len(dst) - 7
	if start > end {
		return nil, ErrInvalidCiphertext
	}
	for _, b := range dst[end:] {
		if b != 0 {
			return nil, ErrInvalidCiphertext
		}
	}
	return dst[start:end], nil
}

// TEAEncrypt is a one-shot helper around NewTEA and Encrypt
func TEAEncrypt(key, src []byte) ([]byte, error) {
	t, err := NewTEA(key)
	if err != nil {
		return nil, err
	}
	return t.Encrypt(src), nil
}

// TEADecrypt is a one-shot helper around NewTEA and Decrypt
func TEADecrypt(key, src []byte) ([]byte, error) {
	t, err := NewTEA(key)
	if err != nil {
		return nil, err
	}
	return t.Decrypt(src)
}
