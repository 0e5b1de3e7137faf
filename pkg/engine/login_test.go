package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/protocol"
	"github.com/synodriver/rqgo/pkg/wire"
)

func TestBuildLoginPacketRejectsBadPassword(t *testing.T) {
	h := newHarness(t)

	for _, pw := range [][]byte{nil, []byte("password"), make([]byte, 32)} {
		pkt, err := h.engine.BuildLoginPacket(pw)
		assert.Nil(t, pkt)
		assert.ErrorIs(t, err, ErrInvalidPassword)
	}
}

func TestBuildLoginPacket(t *testing.T) {
	h := newHarness(t)
	h.engine.SetUin(10001)

	pkt, err := h.engine.BuildLoginPacket(crypto.MD5([]byte("hunter2")))
	require.NoError(t, err)
	assert.Equal(t, cmdLogin, pkt.CommandName)
	assert.Equal(t, int64(10001), pkt.Uin)
	assert.Equal(t, protocol.PacketTypeLogin, pkt.Type)

	sub, tlvs := h.loginTLVs(pkt)
	assert.Equal(t, uint16(subLogin), sub)
	for _, tag := range []uint16{0x18, 0x1, 0x106, 0x116, 0x100, 0x107, 0x142, 0x144, 0x145, 0x147, 0x154, 0x141, 0x8, 0x511, 0x187, 0x188, 0x194, 0x191, 0x202, 0x177, 0x516, 0x521, 0x525} {
		assert.True(t, tlvs.Has(tag), "tlv 0x%x", tag)
	}
	assert.False(t, tlvs.Has(0x16A))
	assert.Equal(t, wire.NewWriter().I32(pkt.SeqID).Build(), tlvs[0x154])

	// t144 is sealed with the tgtgt key and carries the device report
	report, err := crypto.TEADecrypt(h.engine.transport.Sig.TgtgtKey, tlvs[0x144])
	require.NoError(t, err)
	inner, err := wire.ReadTLVMap(report[2:], 2)
	require.NoError(t, err)
	assert.True(t, inner.Has(0x52D))
	assert.Equal(t, h.engine.Device().Model, string(inner[0x16E]))
}

func TestBuildQRCodeLoginPacket(t *testing.T) {
	h := newHarness(t)
	confirmed := QRCodeConfirmed{Uin: 5, TmpPwd: []byte("a1"), TmpNoPicSig: []byte("srm"), TgtQR: []byte("tgt qr")}

	pkt, err := h.engine.BuildQRCodeLoginPacketFromConfirmed(confirmed)
	require.NoError(t, err)

	sub, tlvs := h.loginTLVs(pkt)
	assert.Equal(t, uint16(subLogin), sub)
	assert.Equal(t, []byte("a1"), tlvs[0x106])
	assert.Equal(t, []byte("srm"), tlvs[0x16A])
	assert.Equal(t, []byte("tgt qr"), tlvs[0x318])
	assert.False(t, tlvs.Has(0x525))
}

func TestDecodeLoginSuccess(t *testing.T) {
	h := newHarness(t)
	h.engine.SetUin(10001)

	_, err := h.engine.BuildHeartbeatPacket()
	require.ErrorIs(t, err, ErrNotAuthenticated)

	payload := h.reply(oicqLogin, loginReply(statusSuccess, h.successTLV(20002), tlvRaw(0x403, []byte("seed"))))
	resp, err := h.engine.DecodeLoginResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, LoginSuccess{AccountInfo: AccountInfo{Nick: "alice", Age: 20, Gender: 1}}, resp)

	assert.True(t, h.engine.Authenticated())
	assert.Equal(t, int64(20002), h.engine.Uin())
	sig := h.engine.transport.Sig
	assert.Equal(t, testD2Key, sig.D2Key)
	assert.Equal(t, []byte("d2 ticket"), sig.D2)
	assert.Equal(t, []byte("tgt"), sig.TGT)
	assert.Equal(t, []byte("seed"), sig.RandSeed)

	info, err := h.engine.AccountInfo()
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Nick)

	heartbeat, err := h.engine.BuildHeartbeatPacket()
	require.NoError(t, err)
	assert.Equal(t, cmdHeartbeat, heartbeat.CommandName)
	assert.Equal(t, int64(20002), heartbeat.Uin)
}

func TestDecodeLoginSuccessEnablesSessionEncryption(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.EncodePacket(&protocol.Packet{Type: protocol.PacketTypeSimple, EncryptType: protocol.EncryptD2Key})
	require.ErrorIs(t, err, protocol.ErrMissingSessionKey)

	h.login(10001)

	pkt, err := h.engine.UniPacket("OidbSvc.0x88d_0", []byte("request"))
	require.NoError(t, err)
	frame, err := h.engine.EncodePacket(pkt)
	require.NoError(t, err)
	decoded, err := h.engine.DecodePacket(frame)
	require.NoError(t, err)
	assert.Equal(t, pkt, decoded)
}

func TestDecodeLoginSimpleStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status uint8
		want   LoginResponse
	}{
		{"account frozen", statusAccountFrozen, LoginAccountFrozen{}},
		{"too many sms", statusTooManySMS, LoginTooManySMSRequest{}},
		{"device lock login", statusDeviceLockLogin, LoginDeviceLockLogin{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.engine.SetUin(777)

			resp, err := h.engine.DecodeLoginResponse(h.reply(oicqLogin, loginReply(tt.status, tlvRaw(0x104, []byte("t104")))))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp)

			assert.Equal(t, int64(777), h.engine.Uin())
			assert.False(t, h.engine.Authenticated())
			assert.Nil(t, h.engine.transport.Sig.D2Key)

			_, err = h.engine.BuildHeartbeatPacket()
			assert.ErrorIs(t, err, ErrNotAuthenticated)
		})
	}
}

func TestDeviceLockLoginKeepsChallenge(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.DecodeLoginResponse(h.reply(oicqLogin, loginReply(statusDeviceLockLogin,
		tlvRaw(0x104, []byte("t104 token")),
		tlvRaw(0x402, []byte("t402 token")),
	)))
	require.NoError(t, err)

	pkt, err := h.engine.BuildDeviceLockLoginPacket()
	require.NoError(t, err)
	sub, tlvs := h.loginTLVs(pkt)
	assert.Equal(t, uint16(subDeviceLock), sub)
	assert.Equal(t, []byte("t104 token"), tlvs[0x104])

	sig := h.engine.transport.Sig
	assert.Equal(t, crypto.MD5(h.engine.Device().GUID(), sig.Dpwd, []byte("t402 token")), tlvs[0x401])
}

func TestDecodeLoginDeviceLocked(t *testing.T) {
	for _, status := range []uint8{statusDeviceLocked, statusDeviceLockedAlt} {
		h := newHarness(t)

		payload := h.reply(oicqLogin, loginReply(status,
			tlv(0x178, func(w *wire.Writer) { w.BytesU32([]byte("+86 138****0000")) }),
			tlvRaw(0x204, []byte("https://verify.example/lock")),
			tlvRaw(0x17E, []byte("device locked")),
			tlvRaw(0x174, []byte("t174")),
			tlvRaw(0x104, []byte("t104")),
		))

		resp, err := h.engine.DecodeLoginResponse(payload)
		require.NoError(t, err)
		assert.Equal(t, LoginDeviceLocked{
			SMSPhone:  "+86 138****0000",
			VerifyURL: "https://verify.example/lock",
			Message:   "device locked",
		}, resp)

		pkt, err := h.engine.BuildSMSRequestPacket()
		require.NoError(t, err)
		sub, tlvs := h.loginTLVs(pkt)
		assert.Equal(t, uint16(subSMSRequest), sub)
		assert.Equal(t, []byte("t174"), tlvs[0x174])
		assert.Equal(t, []byte("t104"), tlvs[0x104])

		pkt, err = h.engine.BuildSMSCodeSubmitPacket(" 123456 ")
		require.NoError(t, err)
		sub, tlvs = h.loginTLVs(pkt)
		assert.Equal(t, uint16(subSMSSubmit), sub)
		assert.Equal(t, wire.NewWriter().StringU16("123456").Build(), tlvs[0x17C])
	}
}

func TestDecodeLoginDeviceLockedWithoutOptionalFields(t *testing.T) {
	h := newHarness(t)

	payload := h.reply(oicqLogin, loginReply(statusDeviceLocked,
		tlvRaw(0x174, []byte("t174")),
		tlvRaw(0x104, []byte("t104")),
	))

	resp, err := h.engine.DecodeLoginResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, LoginDeviceLocked{}, resp)
}

func TestDecodeLoginCaptcha(t *testing.T) {
	t.Run("slider", func(t *testing.T) {
		h := newHarness(t)
		resp, err := h.engine.DecodeLoginResponse(h.reply(oicqLogin, loginReply(statusNeedCaptcha,
			tlvRaw(0x192, []byte("https://captcha.example/slider")),
			tlvRaw(0x104, []byte("t104")),
		)))
		require.NoError(t, err)
		assert.Equal(t, LoginNeedCaptcha{VerifyURL: "https://captcha.example/slider"}, resp)

		pkt, err := h.engine.BuildTicketSubmitPacket("ticket")
		require.NoError(t, err)
		sub, tlvs := h.loginTLVs(pkt)
		assert.Equal(t, uint16(subTicketSubmit), sub)
		assert.Equal(t, []byte("ticket"), tlvs[0x193])
		assert.Equal(t, []byte("t104"), tlvs[0x104])
	})

	t.Run("image", func(t *testing.T) {
		h := newHarness(t)
		image := wire.NewWriter().U16(4).U16(0).String("sign").String("JPEG").Build()
		resp, err := h.engine.DecodeLoginResponse(h.reply(oicqLogin, loginReply(statusNeedCaptcha,
			tlvRaw(0x165, []byte{1}),
			tlvRaw(0x105, image),
		)))
		require.NoError(t, err)
		assert.Equal(t, LoginNeedCaptcha{Image: []byte("JPEG"), Sign: []byte("sign")}, resp)
	})
}

func TestDecodeLoginUnknownStatusKeepsMessage(t *testing.T) {
	tests := []struct {
		name string
		tlv  []byte
	}{
		{"t146", tlv(0x146, func(w *wire.Writer) { w.U32(0).StringU16("title").StringU16("password wrong") })},
		{"t149", tlv(0x149, func(w *wire.Writer) { w.U16(0).StringU16("title").StringU16("password wrong") })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			resp, err := h.engine.DecodeLoginResponse(h.reply(oicqLogin, loginReply(1, tt.tlv)))
			require.NoError(t, err)

			unknown, ok := resp.(LoginUnknownStatus)
			require.True(t, ok, "got %T", resp)
			assert.Equal(t, uint8(1), unknown.Status)
			assert.Equal(t, "password wrong", unknown.Message)
			assert.Len(t, unknown.TLVs, 1)
		})
	}
}

func TestDecodeLoginMalformedLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.engine.SetUin(10001)

	wrongKey, err := crypto.TEAEncrypt([]byte("not the tgtgtkey"), tlvList(tlvRaw(0x143, []byte("d2"))))
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"t119 with wrong key", h.reply(oicqLogin, loginReply(statusSuccess,
			tlvRaw(0x119, wrongKey), tlvRaw(0x402, []byte("t402")))), protocol.ErrDecrypt},
		{"success without t119", h.reply(oicqLogin, loginReply(statusSuccess)), ErrMissingTLV},
		{"success without d2 key", h.reply(oicqLogin, loginReply(statusSuccess, h.successTLVWithout(0x305))), ErrMissingTLV},
		{"truncated tlv", h.reply(oicqLogin, []byte{0, 9, 0, 0, 1, 0, 0x19, 0, 9}), wire.ErrTruncated},
		{"short header", h.reply(oicqLogin, []byte{0}), wire.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.engine.DecodeLoginResponse(tt.payload)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.want)

			var codecErr *protocol.CodecError
			assert.ErrorAs(t, err, &codecErr)
		})
	}

	assert.False(t, h.engine.Authenticated())
	assert.Equal(t, int64(10001), h.engine.Uin())
	assert.Nil(t, h.engine.transport.Sig.T402)
	assert.Nil(t, h.engine.transport.Sig.D2Key)
}

// successTLVWithout builds a t119 missing one tag
func (h *harness) successTLVWithout(tag uint16) []byte {
	h.t.Helper()
	inner := [][]byte{
		tlvRaw(0x10A, []byte("tgt")),
		tlvRaw(0x143, []byte("d2 ticket")),
		tlvRaw(0x305, testD2Key),
	}
	var kept [][]byte
	for _, v := range inner {
		if !bytes.Equal(v[:2], wire.NewWriter().U16(tag).Build()) {
			kept = append(kept, v)
		}
	}
	sealed, err := crypto.TEAEncrypt(h.engine.transport.Sig.TgtgtKey, tlvList(kept...))
	require.NoError(h.t, err)
	return tlvRaw(0x119, sealed)
}
