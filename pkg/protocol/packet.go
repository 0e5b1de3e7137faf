package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated          = errors.New("truncated packet")
	ErrInvalidPacketType  = errors.New("invalid packet type")
	ErrInvalidEncryptType = errors.New("invalid encrypt type")
	ErrMissingSessionKey  = errors.New("session key not established")
	ErrLengthMismatch     = errors.New("length field mismatch")
	ErrDecrypt            = errors.New("decryption failed")
	ErrSeqMismatch        = errors.New("sequence id mismatch")
	ErrInvalidUin         = errors.New("invalid uin")
	ErrCompression        = errors.New("unsupported compression")
)

// CodecError reports a failed encode or decode. Err is one of the sentinel
// errors above, possibly wrapped with detail.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func encodeError(err error) error {
	return &CodecError{Op: "encode", Err: err}
}

func decodeError(err error) error {
	return &CodecError{Op: "decode", Err: err}
}

// Packet is one logical protocol message
type Packet struct {
	Type        PacketType
	EncryptType EncryptType
	SeqID       int32
	Body        []byte // nil when empty after decoding
	CommandName string
	Uin         int64
	Message     string // server diagnostic, empty on success
}

// Sig holds the per-session secrets established during login
type Sig struct {
	TGT    []byte
	TGTKey []byte

	SrmToken     []byte // 0x16a
	T133         []byte
	EncryptedA1  []byte
	UserStKey    []byte
	UserStWebSig []byte
	SKey         []byte
	D2           []byte
	D2Key        []byte
	DeviceToken  []byte

	PsKeyMap    map[string][]byte
	Pt4TokenMap map[string][]byte

	OutPacketSessionID []byte
	Dpwd               []byte

	// challenge tokens carried between login sub-flows
	T104     []byte
	T174     []byte
	G        []byte
	T402     []byte
	T547     []byte
	RandSeed []byte // t403

	TgtgtKey []byte
	Ksid     []byte
}

// HasSessionKey reports whether D2 encryption is available
func (s *Sig) HasSessionKey() bool {
	return s != nil && len(s.D2Key) == 16
}
