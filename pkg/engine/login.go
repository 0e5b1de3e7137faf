package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/protocol"
	"github.com/synodriver/rqgo/pkg/wire"
)

const (
	cmdLogin  = "wtlogin.login"
	oicqLogin = 0x810
)

// wtlogin.login sub commands
const (
	subLogin        = 9
	subTicketSubmit = 2
	subSMSSubmit    = 7
	subSMSRequest   = 8
	subDeviceLock   = 20
)

// login reply status codes
const (
	statusSuccess         = 0
	statusNeedCaptcha     = 2
	statusAccountFrozen   = 40
	statusDeviceLocked    = 160
	statusTooManySMS      = 162
	statusDeviceLockLogin = 204
	statusDeviceLockedAlt = 239
)

func loginBody(sub uint16, tlvs ...[]byte) []byte {
	return wire.NewWriter().U16(sub).Bytes(tlvList(tlvs...)).Build()
}

// BuildLoginPacket starts a password login. passwordMD5 is the md5 of the
// password; cleartext is never accepted.
func (e *Engine) BuildLoginPacket(passwordMD5 []byte) (*protocol.Packet, error) {
	if len(passwordMD5) != 16 {
		return nil, ErrInvalidPassword
	}
	snap := e.snapshot()
	seq := e.NextSeq()
	a1, err := t106(e.transport.Version, uint32(snap.uin), uint32(e.now().Unix()), e.randomUint32(),
		passwordMD5, snap.tgtgtKey, e.transport.Device.GUID())
	if err != nil {
		return nil, err
	}
	return e.buildLogin(seq, snap, a1, nil, nil)
}

// BuildQRCodeLoginPacket finishes a QR login with the opaque values taken
// from QRCodeConfirmed: t106 is tmp_pwd, t16a is tmp_no_pic_sig and t318 is
// tgt_qr.
func (e *Engine) BuildQRCodeLoginPacket(t106, t16a, t318 []byte) (*protocol.Packet, error) {
	snap := e.snapshot()
	return e.buildLogin(e.NextSeq(), snap, tlvRaw(0x106, t106), tlvRaw(0x16A, t16a), tlvRaw(0x318, t318))
}

// BuildQRCodeLoginPacketFromConfirmed is BuildQRCodeLoginPacket fed from a
// decoded QRCodeConfirmed.
func (e *Engine) BuildQRCodeLoginPacketFromConfirmed(c QRCodeConfirmed) (*protocol.Packet, error) {
	return e.BuildQRCodeLoginPacket(c.TmpPwd, c.TmpNoPicSig, c.TgtQR)
}

// buildLogin assembles sub command 9. qr tlvs are nil for password login.
func (e *Engine) buildLogin(seq int32, snap sigSnapshot, a1, t16a, t318 []byte) (*protocol.Packet, error) {
	v := e.transport.Version
	p := e.transport.Device
	uin := uint32(snap.uin)
	guid := p.GUID()

	report, err := t144(p, snap.tgtgtKey)
	if err != nil {
		return nil, err
	}

	tlvs := [][]byte{
		t18(uin),
		t1(uin, uint32(e.now().Unix()), e.randomUint32(), p.IPAddress),
		a1,
		t116(v.MiscBitmap, v.SubSigMap),
		t100(v),
		t107(),
		t142(v.ApkID),
		report,
		t145(guid),
		t147(v),
	}
	if t16a != nil {
		tlvs = append(tlvs, t16a)
	}
	tlvs = append(tlvs,
		t154(seq),
		t141(p),
		t8(),
		t511(),
		t187(p.MACAddress),
		t188(p.AndroidID),
		t194(p.IMSIMD5),
		t191(k191),
		t202(p.WifiBSSID, p.WifiSSID),
		t177(v),
		t516(),
		t521(0),
	)
	if t318 != nil {
		tlvs = append(tlvs, t318)
	} else {
		tlvs = append(tlvs, t525())
	}

	return e.wtlogin(seq, cmdLogin, oicqLogin, snap.uin, loginBody(subLogin, tlvs...))
}

// BuildDeviceLockLoginPacket answers a device lock challenge
func (e *Engine) BuildDeviceLockLoginPacket() (*protocol.Packet, error) {
	snap := e.snapshot()
	v := e.transport.Version
	body := loginBody(subDeviceLock,
		t8(),
		t104(snap.t104),
		t116(v.MiscBitmap, v.SubSigMap),
		t401(snap.g),
	)
	return e.wtlogin(e.NextSeq(), cmdLogin, oicqLogin, snap.uin, body)
}

// BuildSMSRequestPacket asks the server to text a verification code
func (e *Engine) BuildSMSRequestPacket() (*protocol.Packet, error) {
	snap := e.snapshot()
	v := e.transport.Version
	body := loginBody(subSMSRequest,
		t8(),
		t104(snap.t104),
		t116(v.MiscBitmap, v.SubSigMap),
		t174(snap.t174),
		t17a(9),
		t197(),
	)
	return e.wtlogin(e.NextSeq(), cmdLogin, oicqLogin, snap.uin, body)
}

// BuildSMSCodeSubmitPacket submits the code received by SMS
func (e *Engine) BuildSMSCodeSubmitPacket(code string) (*protocol.Packet, error) {
	snap := e.snapshot()
	v := e.transport.Version
	body := loginBody(subSMSSubmit,
		t8(),
		t104(snap.t104),
		t116(v.MiscBitmap, v.SubSigMap),
		t174(snap.t174),
		t17c(strings.TrimSpace(code)),
		t401(snap.g),
		t198(),
	)
	return e.wtlogin(e.NextSeq(), cmdLogin, oicqLogin, snap.uin, body)
}

// BuildTicketSubmitPacket submits a solved slider captcha ticket
func (e *Engine) BuildTicketSubmitPacket(ticket string) (*protocol.Packet, error) {
	snap := e.snapshot()
	v := e.transport.Version
	body := loginBody(subTicketSubmit,
		t193(ticket),
		t8(),
		t104(snap.t104),
		t116(v.MiscBitmap, v.SubSigMap),
	)
	return e.wtlogin(e.NextSeq(), cmdLogin, oicqLogin, snap.uin, body)
}

// DecodeLoginResponse interprets the body of a wtlogin.login reply. Session
// state changes only after the whole reply has been decoded; malformed
// replies leave it untouched.
func (e *Engine) DecodeLoginResponse(payload []byte) (LoginResponse, error) {
	m, err := e.codec.Unmarshal(payload)
	if err != nil {
		return nil, responseError(cmdLogin, err)
	}

	s := cryptobyte.String(m.Body)
	var status uint8
	if !s.Skip(2) || !s.ReadUint8(&status) || !s.Skip(2) {
		return nil, responseError(cmdLogin, wire.ErrTruncated)
	}
	tlvs, err := wire.ReadTLVMap(s, 2)
	if err != nil {
		return nil, responseError(cmdLogin, err)
	}

	ch := challenge{t402: tlvs[0x402]}
	var resp LoginResponse
	var secrets *loginSecrets

	switch status {
	case statusSuccess:
		e.mu.RLock()
		key := bytes.Clone(e.transport.Sig.TgtgtKey)
		e.mu.RUnlock()
		sec, err := decodeT119(tlvs[0x119], key)
		if err != nil {
			return nil, responseError(cmdLogin, err)
		}
		ch.randSeed = tlvs[0x403]
		secrets = &sec
		resp = LoginSuccess{AccountInfo: sec.account}
	case statusNeedCaptcha:
		ch.t104 = tlvs[0x104]
		resp, err = decodeCaptcha(tlvs)
		if err != nil {
			return nil, responseError(cmdLogin, err)
		}
	case statusAccountFrozen:
		resp = LoginAccountFrozen{}
	case statusDeviceLocked, statusDeviceLockedAlt:
		ch.t104 = tlvs[0x104]
		ch.t174 = tlvs[0x174]
		ch.randSeed = tlvs[0x403]
		resp = LoginDeviceLocked{
			SMSPhone:  readPhone(tlvs[0x178]),
			VerifyURL: string(tlvs[0x204]),
			Message:   string(tlvs[0x17E]),
		}
	case statusTooManySMS:
		resp = LoginTooManySMSRequest{}
	case statusDeviceLockLogin:
		ch.t104 = tlvs[0x104]
		ch.randSeed = tlvs[0x403]
		resp = LoginDeviceLockLogin{}
	default:
		resp = LoginUnknownStatus{Status: status, Message: errorMessage(tlvs), TLVs: tlvs}
	}

	e.mu.Lock()
	e.applyChallenge(ch)
	if secrets != nil {
		e.applyLoginSuccess(*secrets)
	}
	uin := e.session.uin
	e.mu.Unlock()

	e.log.Info().Int64("uin", uin).Uint8("status", status).Str("response", fmt.Sprintf("%T", resp)).Msg("login response")
	return resp, nil
}

func decodeCaptcha(tlvs wire.TLVMap) (LoginResponse, error) {
	if url, ok := tlvs[0x192]; ok {
		return LoginNeedCaptcha{VerifyURL: string(url)}, nil
	}
	if !tlvs.Has(0x165) {
		return LoginUnknownStatus{Status: statusNeedCaptcha, Message: errorMessage(tlvs), TLVs: tlvs}, nil
	}

	s := cryptobyte.String(tlvs[0x105])
	var signLen uint16
	var sign []byte
	if !s.ReadUint16(&signLen) || !s.Skip(2) || !s.ReadBytes(&sign, int(signLen)) {
		return nil, fmt.Errorf("captcha image: %w", wire.ErrTruncated)
	}
	return LoginNeedCaptcha{Image: []byte(s), Sign: sign}, nil
}

// readPhone reads the masked phone number from t178
func readPhone(data []byte) string {
	s := cryptobyte.String(data)
	var phone []byte
	if !wire.ReadU32Bytes(&s, &phone) {
		return ""
	}
	return string(phone)
}

// errorMessage extracts the server text from t146 or t149
func errorMessage(tlvs wire.TLVMap) string {
	if data, ok := tlvs[0x149]; ok {
		s := cryptobyte.String(data)
		var title, msg []byte
		if s.Skip(2) && wire.ReadU16Bytes(&s, &title) && wire.ReadU16Bytes(&s, &msg) {
			return string(msg)
		}
	}
	if data, ok := tlvs[0x146]; ok {
		s := cryptobyte.String(data)
		var title, msg []byte
		if s.Skip(4) && wire.ReadU16Bytes(&s, &title) && wire.ReadU16Bytes(&s, &msg) {
			return string(msg)
		}
	}
	return ""
}

// decodeT119 opens the success block sealed with the tgtgt key
func decodeT119(data, tgtgtKey []byte) (loginSecrets, error) {
	if data == nil {
		return loginSecrets{}, fmt.Errorf("%w: 0x119", ErrMissingTLV)
	}
	plain, err := crypto.TEADecrypt(tgtgtKey, data)
	if err != nil {
		return loginSecrets{}, fmt.Errorf("t119: %w: %v", protocol.ErrDecrypt, err)
	}
	if len(plain) < 2 {
		return loginSecrets{}, fmt.Errorf("t119: %w", wire.ErrTruncated)
	}
	m, err := wire.ReadTLVMap(plain[2:], 2)
	if err != nil {
		return loginSecrets{}, fmt.Errorf("t119: %w", err)
	}
	for _, tag := range []uint16{0x143, 0x305} {
		if !m.Has(tag) {
			return loginSecrets{}, fmt.Errorf("%w: t119 0x%x", ErrMissingTLV, tag)
		}
	}
	if len(m[0x305]) != 16 {
		return loginSecrets{}, fmt.Errorf("t119 d2 key: %w", protocol.ErrLengthMismatch)
	}

	s := loginSecrets{
		tgt:          m[0x10A],
		tgtKey:       m[0x10D],
		d2:           m[0x143],
		d2Key:        m[0x305],
		sKey:         m[0x120],
		userStKey:    m[0x10E],
		userStWebSig: m[0x103],
		deviceToken:  m[0x322],
		srmToken:     m[0x16A],
		t133:         m[0x133],
		encryptedA1:  m[0x106],
	}
	s.psKeys, s.pt4Tokens = readDomainMap(m[0x512])
	if data, ok := m[0x113]; ok && len(data) >= 4 {
		s.uin = int64(binary.BigEndian.Uint32(data))
	}
	if data, ok := m[0x11A]; ok {
		s.account = readAccountInfo(data)
	}
	return s, nil
}

// readAccountInfo parses t11a: face id, age, gender, nick
func readAccountInfo(data []byte) AccountInfo {
	s := cryptobyte.String(data)
	var info AccountInfo
	var nickLen uint8
	var nick []byte
	if !s.Skip(2) || !s.ReadUint8(&info.Age) || !s.ReadUint8(&info.Gender) ||
		!s.ReadUint8(&nickLen) || !s.ReadBytes(&nick, int(nickLen)) {
		return info
	}
	info.Nick = string(nick)
	return info
}

// readDomainMap parses t512: per domain ps key and pt4 token
func readDomainMap(data []byte) (psKeys, pt4Tokens map[string][]byte) {
	psKeys = make(map[string][]byte)
	pt4Tokens = make(map[string][]byte)
	s := cryptobyte.String(data)
	var count uint16
	if !s.ReadUint16(&count) {
		return
	}
	for i := 0; i < int(count); i++ {
		var domain, psKey, pt4 []byte
		if !wire.ReadU16Bytes(&s, &domain) || !wire.ReadU16Bytes(&s, &psKey) || !wire.ReadU16Bytes(&s, &pt4) {
			break
		}
		if len(psKey) > 0 {
			psKeys[string(domain)] = psKey
		}
		if len(pt4) > 0 {
			pt4Tokens[string(domain)] = pt4
		}
	}
	return
}
