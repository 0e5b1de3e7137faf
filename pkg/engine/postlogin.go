package engine

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/synodriver/rqgo/pkg/jce"
	"github.com/synodriver/rqgo/pkg/protocol"
)

const (
	cmdHeartbeat = "Heartbeat.Alive"
	cmdRegister  = "StatSvc.register"
	cmdSignature = "Signature.auth"
)

// BuildHeartbeatPacket keeps an authenticated connection alive
func (e *Engine) BuildHeartbeatPacket() (*protocol.Packet, error) {
	e.mu.RLock()
	uin, err := e.requireAuth()
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &protocol.Packet{
		Type:        protocol.PacketTypeLogin,
		EncryptType: protocol.EncryptNone,
		SeqID:       e.NextSeq(),
		CommandName: cmdHeartbeat,
		Uin:         uin,
		Body:        []byte{},
	}, nil
}

// BuildClientRegisterPacket announces the client as online to the push
// service. It is sent once after login.
func (e *Engine) BuildClientRegisterPacket() (*protocol.Packet, error) {
	e.mu.RLock()
	uin, err := e.requireAuth()
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	p := e.transport.Device
	v := e.transport.Version
	req := &jce.SvcReqRegister{
		Uin:          uin,
		Bid:          1 | 2 | 4,
		ConnType:     0,
		Status:       11,
		KickPC:       false,
		KickWeak:     false,
		IOSVersion:   int64(p.Version.SDK),
		NetType:      1,
		RegType:      0,
		GUID:         p.GUID(),
		LocaleID:     localeID,
		DevName:      p.Model,
		DevType:      p.Model,
		OSVer:        p.Version.Release,
		OpenPush:     1,
		LargeSeq:     1551,
		VendorName:   p.VendorName,
		VendorOSName: p.VendorOSName,
		B769:         []byte{0x0A, 0x04, 0x08, 0x2E, 0x10, 0x00, 0x0A, 0x05, 0x08, 0x9B, 0x02, 0x10, 0x00},
		SetMute:      0,
	}
	data := &jce.RequestDataVersion3{Map: map[string][]byte{
		"SvcReqRegister": jce.PackUniRequestData(req.ToBytes()),
	}}
	pkt := &jce.RequestPacket{
		IVersion:     3,
		SServantName: "PushService",
		SFuncName:    "SvcReqRegister",
		SBuffer:      data.ToBytes(),
		Context:      map[string]string{},
		Status:       map[string]string{},
	}

	e.log.Debug().Int64("uin", uin).Str("apk", v.ApkID).Msg("building client register")
	return &protocol.Packet{
		Type:        protocol.PacketTypeLogin,
		EncryptType: protocol.EncryptD2Key,
		SeqID:       e.NextSeq(),
		CommandName: cmdRegister,
		Uin:         uin,
		Body:        pkt.ToBytes(),
	}, nil
}

// BuildUpdateSignaturePacket sets the account's personal signature
func (e *Engine) BuildUpdateSignaturePacket(signature string) (*protocol.Packet, error) {
	v := e.transport.Version
	profile := protowire.AppendTag(nil, 1, protowire.VarintType)
	profile = protowire.AppendVarint(profile, uint64(e.now().Unix()))
	profile = protowire.AppendTag(profile, 2, protowire.BytesType)
	profile = protowire.AppendString(profile, signature)

	var body []byte
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, 2)
	body = protowire.AppendTag(body, 2, protowire.BytesType)
	body = protowire.AppendString(body, "android "+v.SortVersionName)
	body = protowire.AppendTag(body, 3, protowire.BytesType)
	body = protowire.AppendBytes(body, profile)

	return e.UniPacket(cmdSignature, body)
}

// UniPacket wraps an arbitrary service call in a session-keyed packet
func (e *Engine) UniPacket(command string, body []byte) (*protocol.Packet, error) {
	e.mu.RLock()
	uin, err := e.requireAuth()
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	e.log.Debug().Str("command", command).Int("size", len(body)).Msg("building uni packet")
	return &protocol.Packet{
		Type:        protocol.PacketTypeSimple,
		EncryptType: protocol.EncryptD2Key,
		SeqID:       e.NextSeq(),
		CommandName: command,
		Uin:         uin,
		Body:        append([]byte(nil), body...),
	}, nil
}
