package jce

// RequestPacket is the outer envelope of a JCE service call
type RequestPacket struct {
	IVersion     int16
	CPacketType  byte
	IMessageType int32
	IRequestID   int32
	SServantName string
	SFuncName    string
	SBuffer      []byte
	ITimeout     int32
	Context      map[string]string
	Status       map[string]string
}

func (p *RequestPacket) ToBytes() []byte {
	return NewWriter().
		WriteInt16(p.IVersion, 1).
		WriteUint8(p.CPacketType, 2).
		WriteInt32(p.IMessageType, 3).
		WriteInt32(p.IRequestID, 4).
		WriteString(p.SServantName, 5).
		WriteString(p.SFuncName, 6).
		WriteBytes(p.SBuffer, 7).
		WriteInt32(p.ITimeout, 8).
		WriteStringMap(p.Context, 9).
		WriteStringMap(p.Status, 10).
		Bytes()
}

// RequestDataVersion3 maps a request name to its packed struct
type RequestDataVersion3 struct {
	Map map[string][]byte
}

func (d *RequestDataVersion3) ToBytes() []byte {
	return NewWriter().WriteBytesMap(d.Map, 0).Bytes()
}

// PackUniRequestData wraps an encoded struct as a tag 0 struct field
func PackUniRequestData(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, typeStructBegin)
	out = append(out, data...)
	return append(out, typeStructEnd)
}

// SvcReqRegister announces the client to the push service
type SvcReqRegister struct {
	Uin          int64
	Bid          int64
	ConnType     byte
	Other        string
	Status       int32
	OnlinePush   bool
	IsOnline     bool
	IsShowOnline bool
	KickPC       bool
	KickWeak     bool
	Timestamp    int64
	IOSVersion   int64
	NetType      byte
	BuildVer     string
	RegType      byte
	DevParam     []byte
	GUID         []byte
	LocaleID     int32
	SilentPush   byte
	DevName      string
	DevType      string
	OSVer        string
	OpenPush     byte
	LargeSeq     int64
	OldSSOIP     int64
	NewSSOIP     int64
	ChannelNo    string
	CPID         int64
	VendorName   string
	VendorOSName string
	B769         []byte
	SetMute      byte
}

func (r *SvcReqRegister) ToBytes() []byte {
	return NewWriter().
		WriteInt64(r.Uin, 0).
		WriteInt64(r.Bid, 1).
		WriteUint8(r.ConnType, 2).
		WriteString(r.Other, 3).
		WriteInt32(r.Status, 4).
		WriteBool(r.OnlinePush, 5).
		WriteBool(r.IsOnline, 6).
		WriteBool(r.IsShowOnline, 7).
		WriteBool(r.KickPC, 8).
		WriteBool(r.KickWeak, 9).
		WriteInt64(r.Timestamp, 10).
		WriteInt64(r.IOSVersion, 11).
		WriteUint8(r.NetType, 12).
		WriteString(r.BuildVer, 13).
		WriteUint8(r.RegType, 14).
		WriteBytes(r.DevParam, 15).
		WriteBytes(r.GUID, 16).
		WriteInt32(r.LocaleID, 17).
		WriteUint8(r.SilentPush, 18).
		WriteString(r.DevName, 19).
		WriteString(r.DevType, 20).
		WriteString(r.OSVer, 21).
		WriteUint8(r.OpenPush, 22).
		WriteInt64(r.LargeSeq, 23).
		WriteInt64(r.OldSSOIP, 26).
		WriteInt64(r.NewSSOIP, 27).
		WriteString(r.ChannelNo, 28).
		WriteInt64(r.CPID, 29).
		WriteString(r.VendorName, 30).
		WriteString(r.VendorOSName, 31).
		WriteBytes(r.B769, 33).
		WriteUint8(r.SetMute, 36).
		Bytes()
}
