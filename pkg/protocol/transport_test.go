package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/wire"
)

func newTestTransport() *Transport {
	profile := device.RandomFrom(rand.New(rand.NewPCG(1, 2)))
	return NewTransport(profile, AndroidPhone.Version())
}

func withSession(t *Transport) *Transport {
	t.Sig.D2 = []byte("d2 ticket bytes")
	t.Sig.D2Key = []byte("0123456789abcdef")
	t.Sig.TGT = []byte("tgt")
	return t
}

func samplePackets(enc EncryptType) []*Packet {
	return []*Packet{
		{Type: PacketTypeLogin, EncryptType: enc, SeqID: 0x3635, CommandName: "wtlogin.login", Uin: 10001, Body: []byte{1, 2, 3}},
		{Type: PacketTypeSimple, EncryptType: enc, SeqID: -7, CommandName: "Heartbeat.Alive", Uin: 0, Body: []byte("ping")},
		{Type: PacketTypeSimple, EncryptType: enc, SeqID: 1, CommandName: "", Uin: 1<<40 + 3, Body: bytes.Repeat([]byte{0xAB}, 1000)},
		{Type: PacketTypeLogin, EncryptType: enc, SeqID: 9, CommandName: "wtlogin.trans_emp", Uin: 42, Body: []byte{0}, Message: "server says hi"},
		{Type: PacketTypeSimple, EncryptType: enc, SeqID: 10, CommandName: "StatSvc.SimpleGet", Uin: 42, Body: nil},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, enc := range []EncryptType{EncryptNone, EncryptEmptyKey, EncryptD2Key} {
		tr := withSession(newTestTransport())
		for _, p := range samplePackets(enc) {
			t.Run(enc.String()+"/"+p.CommandName, func(t *testing.T) {
				frame, err := tr.EncodePacket(p)
				require.NoError(t, err)

				decoded, err := tr.DecodePacket(frame)
				require.NoError(t, err)
				assert.Equal(t, p, decoded)
			})
		}
	}
}

func TestEmptyBodyDecodesAsNil(t *testing.T) {
	tr := newTestTransport()

	frame, err := tr.EncodePacket(&Packet{Type: PacketTypeLogin, EncryptType: EncryptNone, SeqID: 1, CommandName: "Heartbeat.Alive", Body: []byte{}})
	require.NoError(t, err)

	decoded, err := tr.DecodePacket(frame)
	require.NoError(t, err)
	assert.Nil(t, decoded.Body)
}

func TestEncodeRequiresSessionKey(t *testing.T) {
	tr := newTestTransport()

	_, err := tr.EncodePacket(&Packet{Type: PacketTypeSimple, EncryptType: EncryptD2Key, Body: []byte{1}})

	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, "encode", codecErr.Op)
	assert.ErrorIs(t, err, ErrMissingSessionKey)
}

func TestEncodeRejectsInvalidTags(t *testing.T) {
	tr := newTestTransport()

	_, err := tr.EncodePacket(&Packet{Type: 0x0C})
	assert.ErrorIs(t, err, ErrInvalidPacketType)

	_, err = tr.EncodePacket(&Packet{Type: PacketTypeLogin, EncryptType: 3})
	assert.ErrorIs(t, err, ErrInvalidEncryptType)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	tr := newTestTransport()
	p := &Packet{Type: PacketTypeSimple, EncryptType: EncryptEmptyKey, SeqID: 5, CommandName: "StatSvc.register", Uin: 7, Body: []byte("body")}

	frame, err := tr.EncodePacket(p)
	require.NoError(t, err)

	decoded, err := tr.DecodePacket(append(frame, 0xDE, 0xAD, 0xBE, 0xEF))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodeTruncatedAlwaysFails(t *testing.T) {
	tr := withSession(newTestTransport())
	for _, p := range samplePackets(EncryptD2Key) {
		frame, err := tr.EncodePacket(p)
		require.NoError(t, err)

		for n := 0; n < len(frame); n++ {
			decoded, err := tr.DecodePacket(frame[:n])
			require.Error(t, err, "prefix of %d bytes", n)
			assert.Nil(t, decoded)

			var codecErr *CodecError
			assert.ErrorAs(t, err, &codecErr)
		}
	}
}

func TestDecodeRandomInputNeverPanics(t *testing.T) {
	tr := withSession(newTestTransport())
	r := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 2000; i++ {
		buf := make([]byte, r.IntN(128))
		for j := range buf {
			buf[j] = byte(r.UintN(256))
		}
		// Give some inputs a plausible length prefix so deeper paths run.
		if len(buf) >= 4 && i%2 == 0 {
			copy(buf, wire.NewWriter().U32(uint32(len(buf))).Build())
		}

		assert.NotPanics(t, func() {
			p, err := tr.DecodePacket(buf)
			if err != nil {
				assert.Nil(t, p)
				var codecErr *CodecError
				assert.True(t, errors.As(err, &codecErr))
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tr := newTestTransport()

	frameWith := func(fn func(w *wire.Writer)) []byte {
		w := wire.NewWriter()
		fn(w)
		return wire.NewWriter().BytesU32Incl(w.Build()).Build()
	}
	ssoFrame := func(seq int32, compression uint32, body []byte) []byte {
		w := wire.NewWriter()
		w.BlockU32Incl(func(w *wire.Writer) {
			w.I32(seq).I32(0).StringU32Incl("").StringU32Incl("cmd").BytesU32Incl(nil).U32(compression)
		})
		return w.BytesU32Incl(body).Build()
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"length below prefix", []byte{0, 0, 0, 2}, ErrLengthMismatch},
		{"length past end", []byte{0, 0, 0, 50, 0, 0}, ErrTruncated},
		{"bad packet type", frameWith(func(w *wire.Writer) { w.U32(0x0C).U8(0) }), ErrInvalidPacketType},
		{"bad encrypt type", frameWith(func(w *wire.Writer) { w.U32(0x0B).U8(9) }), ErrInvalidEncryptType},
		{"bad uin", frameWith(func(w *wire.Writer) {
			w.U32(0x0B).U8(0).I32(1).U8(0).StringU32Incl("abc").Bytes(ssoFrame(1, 0, nil))
		}), ErrInvalidUin},
		{"session key missing", frameWith(func(w *wire.Writer) {
			w.U32(0x0B).U8(1).I32(1).U8(0).StringU32Incl("1").Bytes(make([]byte, 16))
		}), ErrMissingSessionKey},
		{"undecryptable", frameWith(func(w *wire.Writer) {
			w.U32(0x0B).U8(2).I32(1).U8(0).StringU32Incl("1").Bytes(make([]byte, 15))
		}), ErrDecrypt},
		{"seq mismatch", frameWith(func(w *wire.Writer) {
			w.U32(0x0B).U8(0).I32(1).U8(0).StringU32Incl("1").Bytes(ssoFrame(2, 0, nil))
		}), ErrSeqMismatch},
		{"unknown compression", frameWith(func(w *wire.Writer) {
			w.U32(0x0B).U8(0).I32(1).U8(0).StringU32Incl("1").Bytes(ssoFrame(1, 5, nil))
		}), ErrCompression},
		{"broken zlib", frameWith(func(w *wire.Writer) {
			w.U32(0x0B).U8(0).I32(1).U8(0).StringU32Incl("1").Bytes(ssoFrame(1, 1, []byte("nope")))
		}), ErrCompression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tr.DecodePacket(tt.data)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeServerResponse(t *testing.T) {
	tr := newTestTransport()

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, _ = zw.Write([]byte("inflated body"))
	require.NoError(t, zw.Close())

	sso := wire.NewWriter()
	sso.BlockU32Incl(func(w *wire.Writer) {
		w.I32(77).I32(-10008).StringU32Incl("").StringU32Incl("OnlinePush.ReqPush").
			BytesU32Incl([]byte{1, 2, 3, 4}).U32(1).
			Bytes([]byte("unknown head extension"))
	})
	sso.BytesU32Incl(compressed.Bytes())
	encrypted, err := crypto.TEAEncrypt(crypto.EmptyKey[:], sso.Build())
	require.NoError(t, err)

	inner := wire.NewWriter().U32(0x0B).U8(2).I32(77).U8(0).StringU32Incl("12345").Bytes(encrypted).Build()
	frame := wire.NewWriter().BytesU32Incl(inner).Build()

	p, err := tr.DecodePacket(frame)
	require.NoError(t, err)
	assert.Equal(t, "inflated body", string(p.Body))
	assert.Equal(t, "OnlinePush.ReqPush", p.CommandName)
	assert.Equal(t, int32(77), p.SeqID)
	assert.Equal(t, int64(12345), p.Uin)
	assert.Equal(t, "ret code -10008", p.Message)
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	tr := newTestTransport()
	frame, err := tr.EncodePacket(&Packet{Type: PacketTypeSimple, SeqID: 1, Body: []byte("abc")})
	require.NoError(t, err)

	p, err := tr.DecodePacket(frame)
	require.NoError(t, err)
	for i := range frame {
		frame[i] = 0
	}
	assert.Equal(t, "abc", string(p.Body))
}

func TestLoginHeadCarriesDeviceIdentity(t *testing.T) {
	tr := newTestTransport()
	frame, err := tr.EncodePacket(&Packet{Type: PacketTypeLogin, SeqID: 1, CommandName: "wtlogin.login"})
	require.NoError(t, err)

	assert.True(t, bytes.Contains(frame, []byte(tr.Device.IMEI)))
	assert.True(t, bytes.Contains(frame, tr.Sig.Ksid))
}

func TestSplitFrame(t *testing.T) {
	tr := newTestTransport()
	var stream bytes.Buffer
	var want [][]byte
	for i := int32(1); i <= 3; i++ {
		frame, err := tr.EncodePacket(&Packet{Type: PacketTypeSimple, SeqID: i, Body: bytes.Repeat([]byte{byte(i)}, int(i)*10)})
		require.NoError(t, err)
		want = append(want, frame)
		stream.Write(frame)
	}

	scanner := bufio.NewScanner(iotest.OneByteReader(bytes.NewReader(stream.Bytes())))
	scanner.Split(SplitFrame)
	var got [][]byte
	for scanner.Scan() {
		got = append(got, append([]byte(nil), scanner.Bytes()...))
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, want, got)
}

func TestSplitFrameErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		atEOF bool
		want  error
	}{
		{"partial prefix at eof", []byte{0, 0}, true, ErrTruncated},
		{"partial frame at eof", []byte{0, 0, 0, 8, 1}, true, ErrTruncated},
		{"length below prefix", []byte{0, 0, 0, 1}, false, ErrLengthMismatch},
		{"oversized", []byte{0x7F, 0, 0, 0}, false, ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := SplitFrame(tt.data, tt.atEOF)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	advance, token, err := SplitFrame([]byte{0, 0, 0, 8, 1}, false)
	assert.NoError(t, err)
	assert.Zero(t, advance)
	assert.Nil(t, token)
}

func TestReadWriteFrame(t *testing.T) {
	tr := newTestTransport()
	frame, err := tr.EncodePacket(&Packet{Type: PacketTypeSimple, SeqID: 3, Body: []byte("x")})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, frame))
	buf.Write([]byte{0, 0})

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	_, err = ReadFrame(bytes.NewReader([]byte{0, 0, 0, 1}))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
