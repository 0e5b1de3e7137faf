package engine

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/oicq/oicqtest"
	"github.com/synodriver/rqgo/pkg/protocol"
	"github.com/synodriver/rqgo/pkg/wire"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	engine *Engine
	server *oicqtest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	server, err := oicqtest.NewServer()
	require.NoError(t, err)

	profile := device.RandomFrom(rand.New(rand.NewPCG(11, 12)))
	e, err := New(profile, protocol.AndroidWatch,
		WithServerPublicKey(server.PublicKey(), oicqtest.KeyVersion),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	h := &harness{t: t, engine: e, server: server}
	// The server learns the share key from the first request it opens.
	pkt, err := e.BuildQRCodeFetchRequestPacket()
	require.NoError(t, err)
	h.open(pkt)
	return h
}

// open decrypts a request built by the engine
func (h *harness) open(pkt *protocol.Packet) *oicqtest.Request {
	h.t.Helper()
	req, err := h.server.Open(pkt.Body)
	require.NoError(h.t, err)
	return req
}

// loginTLVs opens a wtlogin.login request and returns its sub command and tlvs
func (h *harness) loginTLVs(pkt *protocol.Packet) (uint16, wire.TLVMap) {
	h.t.Helper()
	req := h.open(pkt)
	require.Equal(h.t, uint16(oicqLogin), req.Command)
	require.GreaterOrEqual(h.t, len(req.Body), 4)

	tlvs, err := wire.ReadTLVMap(req.Body[4:], 2)
	require.NoError(h.t, err)
	require.Equal(h.t, int(binary.BigEndian.Uint16(req.Body[2:4])), len(tlvs))
	return binary.BigEndian.Uint16(req.Body[0:2]), tlvs
}

func (h *harness) reply(command uint16, body []byte) []byte {
	h.t.Helper()
	data, err := h.server.Reply(uint32(h.engine.Uin()), command, body)
	require.NoError(h.t, err)
	return data
}

func transEmpReply(cmd uint16, inner []byte) []byte {
	return wire.NewWriter().
		Bytes([]byte{0, 0, 0, 0, 0}).
		U8(2).
		U16(uint16(43 + len(inner) + 1)).
		U16(cmd).
		Bytes(make([]byte, 21)).
		U8(3).
		U16(0).
		U16(code2dVersion).
		U32(0).
		U64(0).
		Bytes(inner).
		U8(3).
		Build()
}

func qrStatusReply(code uint8) []byte {
	return transEmpReply(code2dQuery, wire.NewWriter().U16(0).U32(537064446).U8(code).Build())
}

func qrConfirmedReply(uin int64, tlvs ...[]byte) []byte {
	w := wire.NewWriter().
		U16(9).U8(2).U64(0). // optional block: tag 2 and an 8 byte value
		U32(537064446).
		U8(qrStatusConfirmed).
		U64(uint64(uin)).
		U32(uint32(testNow.Unix())).
		U16(0)
	for _, tlv := range tlvs {
		w.Bytes(tlv)
	}
	return transEmpReply(code2dQuery, w.Build())
}

func loginReply(status uint8, tlvs ...[]byte) []byte {
	return wire.NewWriter().U16(subLogin).U8(status).Bytes(tlvList(tlvs...)).Build()
}

func accountTLV(nick string, age, gender uint8) []byte {
	return tlv(0x11A, func(w *wire.Writer) {
		w.U16(0).U8(age).U8(gender).U8(uint8(len(nick))).String(nick)
	})
}

var testD2Key = []byte("fedcba9876543210")

// successTLV seals a t119 with the engine's current tgtgt key
func (h *harness) successTLV(uin uint32, extra ...[]byte) []byte {
	h.t.Helper()
	inner := append([][]byte{
		tlvRaw(0x10A, []byte("tgt")),
		tlvRaw(0x10D, []byte("tgt key")),
		tlvRaw(0x143, []byte("d2 ticket")),
		tlvRaw(0x305, testD2Key),
		tlvRaw(0x120, []byte("skey")),
		tlv(0x113, func(w *wire.Writer) { w.U32(uin) }),
		accountTLV("alice", 20, 1),
	}, extra...)

	sealed, err := crypto.TEAEncrypt(h.engine.transport.Sig.TgtgtKey, tlvList(inner...))
	require.NoError(h.t, err)
	return tlvRaw(0x119, sealed)
}

// login drives a password login to success
func (h *harness) login(uin int64) {
	h.t.Helper()
	h.engine.SetUin(uin)
	pkt, err := h.engine.BuildLoginPacket(crypto.MD5([]byte("password")))
	require.NoError(h.t, err)
	h.open(pkt)

	resp, err := h.engine.DecodeLoginResponse(h.reply(oicqLogin, loginReply(statusSuccess, h.successTLV(uint32(uin)))))
	require.NoError(h.t, err)
	require.IsType(h.t, LoginSuccess{}, resp)
}
