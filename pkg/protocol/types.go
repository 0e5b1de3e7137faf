package protocol

import "fmt"

// Protocol is the client variant the engine impersonates
type Protocol int

const (
	AndroidPhone Protocol = iota + 1
	AndroidWatch
	MacOS
	QiDian
	IPad
)

// DefaultProtocol is used for unknown variants
const DefaultProtocol = IPad

// ParseProtocol maps a numeric variant to a Protocol. Unknown values select
// DefaultProtocol.
func ParseProtocol(v int) Protocol {
	p := Protocol(v)
	if p < AndroidPhone || p > IPad {
		return DefaultProtocol
	}
	return p
}

// Protocols lists every supported variant
func Protocols() []Protocol {
	return []Protocol{AndroidPhone, AndroidWatch, MacOS, QiDian, IPad}
}

func (p Protocol) String() string {
	switch p {
	case AndroidPhone:
		return "AndroidPhone"
	case AndroidWatch:
		return "AndroidWatch"
	case MacOS:
		return "MacOS"
	case QiDian:
		return "QiDian"
	case IPad:
		return "IPad"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// AppVersion is the fixed metadata of one client build
type AppVersion struct {
	ApkID           string
	AppID           uint32
	SubAppID        uint32
	SortVersionName string
	BuildTime       uint32
	ApkSign         []byte
	SDKVersion      string
	SSOVersion      uint32
	MiscBitmap      uint32
	SubSigMap       uint32
	MainSigMap      uint32
	Protocol        Protocol
}

// Version returns the build metadata for p. Each call returns a fresh value,
// callers may not alter the table.
func (p Protocol) Version() AppVersion {
	p = ParseProtocol(int(p))
	v := versions[p]
	v.ApkSign = append([]byte(nil), v.ApkSign...)
	v.Protocol = p
	return v
}

var (
	phoneSign = []byte{0xA6, 0xB7, 0x45, 0xBF, 0x24, 0xA2, 0xC2, 0x77, 0x52, 0x77, 0x16, 0xF6, 0xF3, 0x6E, 0xB6, 0x8D}
	padSign   = []byte{0xAA, 0x39, 0x78, 0xF4, 0x1F, 0xD9, 0x6F, 0xF9, 0x91, 0x4A, 0x66, 0x9E, 0x18, 0x64, 0x74, 0xC7}
)

var versions = map[Protocol]AppVersion{
	AndroidPhone: {
		ApkID:           "com.tencent.mobileqq",
		AppID:           537100432,
		SubAppID:        537100432,
		SortVersionName: "8.8.38",
		BuildTime:       1634310940,
		ApkSign:         phoneSign,
		SDKVersion:      "6.0.0.2487",
		SSOVersion:      16,
		MiscBitmap:      184024956,
		SubSigMap:       0x10400,
		MainSigMap:      34869472,
	},
	AndroidWatch: {
		ApkID:           "com.tencent.qqlite",
		AppID:           537064446,
		SubAppID:        537064446,
		SortVersionName: "2.0.5",
		BuildTime:       1559564731,
		ApkSign:         phoneSign,
		SDKVersion:      "6.0.0.236",
		SSOVersion:      5,
		MiscBitmap:      16252796,
		SubSigMap:       0x10400,
		MainSigMap:      34869472,
	},
	MacOS: {
		ApkID:           "com.tencent.minihd.qq",
		AppID:           537064315,
		SubAppID:        537064315,
		SortVersionName: "5.8.9",
		BuildTime:       1595836208,
		ApkSign:         padSign,
		SDKVersion:      "6.0.0.2433",
		SSOVersion:      12,
		MiscBitmap:      150470524,
		SubSigMap:       66560,
		MainSigMap:      1970400,
	},
	QiDian: {
		ApkID:           "com.tencent.qidian",
		AppID:           537096038,
		SubAppID:        537036590,
		SortVersionName: "5.0.0",
		BuildTime:       1630062176,
		ApkSign:         []byte{0xA0, 0x1E, 0xEC, 0xAB, 0x85, 0xE9, 0xE3, 0xBA, 0x2B, 0x0F, 0x6A, 0x15, 0x8C, 0x85, 0x5C, 0x29},
		SDKVersion:      "6.0.0.2484",
		SSOVersion:      18,
		MiscBitmap:      184024956,
		SubSigMap:       66560,
		MainSigMap:      34869472,
	},
	IPad: {
		ApkID:           "com.tencent.minihd.qq",
		AppID:           537097188,
		SubAppID:        537097188,
		SortVersionName: "8.8.35",
		BuildTime:       1595836208,
		ApkSign:         padSign,
		SDKVersion:      "6.0.0.2433",
		SSOVersion:      12,
		MiscBitmap:      150470524,
		SubSigMap:       66560,
		MainSigMap:      1970400,
	},
}

// PacketType selects the outer frame layout
type PacketType uint32

const (
	PacketTypeLogin  PacketType = 0x0A
	PacketTypeSimple PacketType = 0x0B
)

func (t PacketType) valid() bool {
	return t == PacketTypeLogin || t == PacketTypeSimple
}

func (t PacketType) String() string {
	switch t {
	case PacketTypeLogin:
		return "login"
	case PacketTypeSimple:
		return "simple"
	default:
		return fmt.Sprintf("PacketType(0x%x)", uint32(t))
	}
}

// EncryptType selects the key used for the SSO frame
type EncryptType uint8

const (
	EncryptNone     EncryptType = 0x00
	EncryptD2Key    EncryptType = 0x01
	EncryptEmptyKey EncryptType = 0x02
)

func (e EncryptType) valid() bool {
	return e <= EncryptEmptyKey
}

func (e EncryptType) String() string {
	switch e {
	case EncryptNone:
		return "none"
	case EncryptD2Key:
		return "d2key"
	case EncryptEmptyKey:
		return "empty_key"
	default:
		return fmt.Sprintf("EncryptType(%d)", uint8(e))
	}
}

// Compression flags carried in the SSO head
const (
	compressNone    uint32 = 0
	compressZlib    uint32 = 1
	compressNoneAlt uint32 = 8
)
