package engine

import (
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/synodriver/rqgo/pkg/crypto"
	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/protocol"
	"github.com/synodriver/rqgo/pkg/wire"
)

const (
	localeID  = 2052 // zh_CN
	srcAppID  = 16
	guidFlag  = 16777216
	k191      = 0x82
	t116Extra = 1600000226
)

var t511Domains = []string{
	"tenpay.com", "openmobile.qq.com", "docs.qq.com", "connect.qq.com",
	"qzone.qq.com", "vip.qq.com", "gamecenter.qq.com", "qun.qq.com",
	"game.qq.com", "qqweb.qq.com", "office.qq.com", "ti.qq.com",
	"mail.qq.com", "mma.qq.com",
}

func tlv(tag uint16, fn func(w *wire.Writer)) []byte {
	return wire.NewWriter().TLV(tag, fn).Build()
}

func tlvRaw(tag uint16, value []byte) []byte {
	return tlv(tag, func(w *wire.Writer) { w.Bytes(value) })
}

// tlvList prefixes tlvs with their count
func tlvList(tlvs ...[]byte) []byte {
	w := wire.NewWriter().U16(uint16(len(tlvs)))
	for _, t := range tlvs {
		w.Bytes(t)
	}
	return w.Build()
}

func t1(uin uint32, now uint32, random uint32, ip []byte) []byte {
	addr := make([]byte, 4)
	copy(addr, ip)
	return tlv(0x1, func(w *wire.Writer) {
		w.U16(1).U32(random).U32(uin).U32(now).Bytes(addr).U16(0)
	})
}

func t8() []byte {
	return tlv(0x8, func(w *wire.Writer) {
		w.U16(0).U32(localeID).U16(0)
	})
}

func t16(v protocol.AppVersion, guid []byte) []byte {
	return tlv(0x16, func(w *wire.Writer) {
		w.U32(v.SSOVersion).
			U32(srcAppID).
			U32(v.SubAppID).
			Bytes(guid).
			StringU16(v.ApkID).
			StringU16(v.SortVersionName).
			BytesU16(v.ApkSign)
	})
}

func t18(uin uint32) []byte {
	return tlv(0x18, func(w *wire.Writer) {
		w.U16(1).U32(1536).U32(srcAppID).U32(0).U32(uin).U16(0).U16(0)
	})
}

func t1b() []byte {
	return tlv(0x1B, func(w *wire.Writer) {
		// micro, version, size, margin, dpi, ec level, hint
		w.U32(0).U32(0).U32(3).U32(4).U32(72).U32(2).U32(2).U16(0)
	})
}

func t1d(miscBitmap uint32) []byte {
	return tlv(0x1D, func(w *wire.Writer) {
		w.U8(1).U32(miscBitmap).U32(0).U8(0).U32(0)
	})
}

func t1f(p device.Profile) []byte {
	return tlv(0x1F, func(w *wire.Writer) {
		w.Bool(false).
			StringU16(p.OSType).
			StringU16(p.Version.Release).
			U16(2).
			StringU16(p.SimInfo).
			BytesU16(nil).
			StringU16(p.APN)
	})
}

func t33(guid []byte) []byte {
	return tlvRaw(0x33, guid)
}

func t35(productType uint32) []byte {
	return tlv(0x35, func(w *wire.Writer) { w.U32(productType) })
}

func t100(v protocol.AppVersion) []byte {
	return tlv(0x100, func(w *wire.Writer) {
		w.U16(1).U32(v.SSOVersion).U32(srcAppID).U32(v.SubAppID).U32(0).U32(v.MainSigMap)
	})
}

func t104(data []byte) []byte {
	return tlvRaw(0x104, data)
}

// t106 carries the password-derived A1 block, sealed with a key derived
// from the password md5 and uin.
func t106(v protocol.AppVersion, uin uint32, now uint32, random uint32, passwordMD5, tgtgtKey, guid []byte) ([]byte, error) {
	body := wire.NewWriter().
		U16(4).
		U32(random).
		U32(v.SSOVersion).
		U32(srcAppID).
		U32(0).
		U64(uint64(uin)).
		U32(now).
		Bytes(make([]byte, 4)).
		Bool(true).
		Bytes(passwordMD5).
		Bytes(tgtgtKey).
		U32(0).
		Bool(true).
		Bytes(guid).
		U32(v.SubAppID).
		U32(1).
		StringU16(strconv.FormatUint(uint64(uin), 10)).
		U16(0).
		Build()

	key := crypto.MD5(passwordMD5, make([]byte, 4), wire.NewWriter().U32(uin).Build())
	sealed, err := crypto.TEAEncrypt(key, body)
	if err != nil {
		return nil, err
	}
	return tlvRaw(0x106, sealed), nil
}

func t107() []byte {
	return tlv(0x107, func(w *wire.Writer) {
		w.U16(0).U8(0).U16(0).U8(1)
	})
}

func t109(androidID string) []byte {
	return tlvRaw(0x109, crypto.MD5([]byte(androidID)))
}

func t116(miscBitmap, subSigMap uint32) []byte {
	return tlv(0x116, func(w *wire.Writer) {
		w.U8(0).U32(miscBitmap).U32(subSigMap).U8(1).U32(t116Extra)
	})
}

func t124(p device.Profile) []byte {
	return tlv(0x124, func(w *wire.Writer) {
		w.StringU16(p.OSType).
			StringU16(p.Version.Release).
			U16(2).
			StringU16(p.SimInfo).
			BytesU16(nil).
			StringU16(p.APN)
	})
}

func t128(p device.Profile) []byte {
	return tlv(0x128, func(w *wire.Writer) {
		w.U16(0).
			Bool(false).
			Bool(true).
			Bool(false).
			U32(guidFlag).
			StringU16(p.Model).
			BytesU16(p.GUID()).
			StringU16(p.Brand)
	})
}

func t141(p device.Profile) []byte {
	return tlv(0x141, func(w *wire.Writer) {
		w.U16(1).StringU16(p.SimInfo).U16(2).StringU16(p.APN)
	})
}

func t142(apkID string) []byte {
	if len(apkID) > 32 {
		apkID = apkID[:32]
	}
	return tlv(0x142, func(w *wire.Writer) {
		w.U16(0).StringU16(apkID)
	})
}

// t144 seals device report tlvs with the tgtgt key
func t144(p device.Profile, tgtgtKey []byte) ([]byte, error) {
	inner := tlvList(
		t109(p.AndroidID),
		t52d(p),
		t124(p),
		t128(p),
		t16e(p.Model),
	)
	sealed, err := crypto.TEAEncrypt(tgtgtKey, inner)
	if err != nil {
		return nil, err
	}
	return tlvRaw(0x144, sealed), nil
}

func t145(guid []byte) []byte {
	return tlvRaw(0x145, guid)
}

func t147(v protocol.AppVersion) []byte {
	return tlv(0x147, func(w *wire.Writer) {
		w.U32(srcAppID).StringU16(v.SortVersionName).BytesU16(v.ApkSign)
	})
}

func t154(seq int32) []byte {
	return tlv(0x154, func(w *wire.Writer) { w.I32(seq) })
}

func t16e(model string) []byte {
	return tlv(0x16E, func(w *wire.Writer) { w.String(model) })
}

func t174(data []byte) []byte {
	return tlvRaw(0x174, data)
}

func t177(v protocol.AppVersion) []byte {
	return tlv(0x177, func(w *wire.Writer) {
		w.U8(1).U32(v.BuildTime).StringU16(v.SDKVersion)
	})
}

func t17a(value uint32) []byte {
	return tlv(0x17A, func(w *wire.Writer) { w.U32(value) })
}

func t17c(code string) []byte {
	return tlv(0x17C, func(w *wire.Writer) { w.StringU16(code) })
}

func t187(mac string) []byte {
	return tlvRaw(0x187, crypto.MD5([]byte(mac)))
}

func t188(androidID string) []byte {
	return tlvRaw(0x188, crypto.MD5([]byte(androidID)))
}

func t191(k uint8) []byte {
	return tlv(0x191, func(w *wire.Writer) { w.U8(k) })
}

func t193(ticket string) []byte {
	return tlv(0x193, func(w *wire.Writer) { w.String(ticket) })
}

func t194(imsiMD5 []byte) []byte {
	return tlvRaw(0x194, imsiMD5)
}

func t197() []byte {
	return tlv(0x197, func(w *wire.Writer) { w.U8(0) })
}

func t198() []byte {
	return tlv(0x198, func(w *wire.Writer) { w.U8(0) })
}

func t202(bssid, ssid string) []byte {
	if len(ssid) > 32 {
		ssid = ssid[:32]
	}
	return tlv(0x202, func(w *wire.Writer) {
		w.BytesU16(crypto.MD5([]byte(bssid))).StringU16(ssid)
	})
}

func t401(g []byte) []byte {
	return tlvRaw(0x401, g)
}

func t511() []byte {
	return tlv(0x511, func(w *wire.Writer) {
		w.U16(uint16(len(t511Domains)))
		for _, d := range t511Domains {
			w.U8(1).StringU16(d)
		}
	})
}

func t516() []byte {
	return tlv(0x516, func(w *wire.Writer) { w.U32(0) })
}

func t521(productType uint32) []byte {
	return tlv(0x521, func(w *wire.Writer) { w.U32(productType).U16(0) })
}

func t525() []byte {
	return tlv(0x525, func(w *wire.Writer) {
		w.U16(1).Bytes(tlv(0x536, func(w *wire.Writer) { w.U8(1).U8(0) }))
	})
}

// t52d is the protobuf DeviceReport
func t52d(p device.Profile) []byte {
	var b []byte
	fields := []string{
		p.Bootloader,
		p.ProcVersion,
		p.Version.Codename,
		p.Version.Incremental,
		p.FingerPrint,
		p.BootID,
		p.AndroidID,
		p.BaseBand,
		p.Version.Incremental,
	}
	for i, v := range fields {
		b = protowire.AppendTag(b, protowire.Number(i+1), protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return tlvRaw(0x52D, b)
}
