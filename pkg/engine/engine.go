// Package engine drives the wtlogin state machine. It builds request
// packets, interprets decoded server replies and owns the session they
// establish. It performs no I/O: callers send the frames it produces.
package engine

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/oicq"
	"github.com/synodriver/rqgo/pkg/protocol"
)

const (
	initialSeq int32 = 0x3635
	maxSeq     int32 = 1000000
)

// outPacketSessionID is announced in every SSO head
var outPacketSessionID = []byte{0x02, 0xB0, 0x5B, 0x8B}

// Engine is one client session. Its methods may be called from several
// goroutines; state changes are serialised internally.
type Engine struct {
	mu        sync.RWMutex
	transport *protocol.Transport
	session   session
	codec     *oicq.Codec
	seq       atomic.Int32

	log   zerolog.Logger
	rand  io.Reader
	now   func() time.Time
	svKey []byte
	svVer uint16
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRand sets the source of key material and padding
func WithRand(r io.Reader) Option {
	return func(e *Engine) {
		e.rand = r
	}
}

// WithServerPublicKey negotiates against another login server key
func WithServerPublicKey(publicKey []byte, version uint16) Option {
	return func(e *Engine) {
		e.svKey = publicKey
		e.svVer = version
	}
}

// WithClock replaces time.Now in packet timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine for one device and client variant
func New(profile device.Profile, proto protocol.Protocol, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:   zerolog.Nop(),
		rand:  rand.Reader,
		now:   time.Now,
		svVer: crypto.ServerPublicKeyVersion,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.svKey == nil {
		key, err := hex.DecodeString(crypto.ServerPublicKeyHex)
		if err != nil {
			return nil, err
		}
		e.svKey = key
	}
	ecdh, err := crypto.NewECDHWithServerKey(e.svKey, e.svVer, e.rand)
	if err != nil {
		return nil, fmt.Errorf("failed to negotiate ecdh: %w", err)
	}
	if e.codec, err = oicq.NewCodecWithECDH(ecdh, e.rand); err != nil {
		return nil, err
	}

	profile = device.New(profile)
	e.transport = protocol.NewTransport(profile, proto.Version())
	sig := e.transport.Sig
	sig.OutPacketSessionID = append([]byte(nil), outPacketSessionID...)

	seed := make([]byte, 32)
	if _, err := io.ReadFull(e.rand, seed); err != nil {
		return nil, fmt.Errorf("failed to generate session keys: %w", err)
	}
	sig.TgtgtKey = crypto.MD5(seed[:16], profile.GUID())
	sig.Dpwd = seed[16:]

	e.seq.Store(initialSeq)
	e.log.Debug().
		Str("protocol", proto.Version().Protocol.String()).
		Str("imei", profile.IMEI).
		Msg("engine created")
	return e, nil
}

// Uin returns the account currently bound to the session
func (e *Engine) Uin() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.uin
}

// SetUin binds an account before login, e.g. for password login
func (e *Engine) SetUin(uin int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.uin = uin
}

// Authenticated reports whether a login has succeeded
func (e *Engine) Authenticated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.authenticated
}

// Device returns the device profile the engine presents
func (e *Engine) Device() device.Profile {
	return device.New(e.transport.Device)
}

// Version returns the client build metadata in use
func (e *Engine) Version() protocol.AppVersion {
	v := e.transport.Version
	v.ApkSign = append([]byte(nil), v.ApkSign...)
	return v
}

// NextSeq allocates an outbound sequence id
func (e *Engine) NextSeq() int32 {
	for {
		cur := e.seq.Load()
		next := cur + 1
		if next > maxSeq {
			next = initialSeq
		}
		if e.seq.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// EncodePacket frames p with the current session secrets
func (e *Engine) EncodePacket(p *protocol.Packet) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.transport.EncodePacket(p)
}

// DecodePacket parses a frame with the current session secrets
func (e *Engine) DecodePacket(data []byte) (*protocol.Packet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, err := e.transport.DecodePacket(data)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("command", p.CommandName).Int32("seq", p.SeqID).Int("size", len(p.Body)).Msg("decoded packet")
	return p, nil
}

// wtlogin wraps a wtlogin body in the OICQ envelope and a login packet
func (e *Engine) wtlogin(seq int32, command string, oicqCommand uint16, uin int64, body []byte) (*protocol.Packet, error) {
	data, err := e.codec.Marshal(&oicq.Message{
		Uin:           uint32(uin),
		Command:       oicqCommand,
		EncryptMethod: oicq.EncryptECDH,
		Body:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seal %s: %w", command, err)
	}

	e.log.Debug().Str("command", command).Int32("seq", seq).Msg("built packet")
	return &protocol.Packet{
		Type:        protocol.PacketTypeLogin,
		EncryptType: protocol.EncryptEmptyKey,
		SeqID:       seq,
		CommandName: command,
		Uin:         uin,
		Body:        data,
	}, nil
}

func (e *Engine) randomUint32() uint32 {
	var b [4]byte
	_, _ = io.ReadFull(e.rand, b[:])
	return binary.BigEndian.Uint32(b[:])
}
