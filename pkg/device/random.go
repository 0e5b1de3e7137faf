package device

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/synodriver/rqgo/pkg/crypto"
)

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Random returns a plausible synthetic device
func Random() Profile {
	return RandomFrom(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// RandomFrom builds a synthetic device from r. The same seed yields the
// same device.
func RandomFrom(r *rand.Rand) Profile {
	buildID := fmt.Sprintf("RQGO.%s.001", digits(r, 6))
	imsi := make([]byte, 16)
	fillBytes(r, imsi)

	var bootID uuid.UUID
	fillBytes(r, bootID[:])
	bootID[6] = (bootID[6] & 0x0F) | 0x40 // version 4
	bootID[8] = (bootID[8] & 0x3F) | 0x80 // RFC 4122 variant

	return Profile{
		Display:      buildID,
		Product:      "rqgo",
		Device:       "rqgo",
		Board:        "rqgo",
		Model:        "rqgo",
		FingerPrint:  fmt.Sprintf("rqgo/rqgo/rqgo:10/%s/%s:user/release-keys", buildID, digits(r, 7)),
		BootID:       bootID.String(),
		ProcVersion:  fmt.Sprintf("Linux version 3.0.31-%s (android-build@xxx.xxx.xxx.xxx.com)", alphanumeric(r, 8)),
		IMEI:         imei(r),
		Brand:        "rqgo",
		Bootloader:   "unknown",
		BaseBand:     "",
		SimInfo:      "T-Mobile",
		OSType:       "android",
		MACAddress:   "00:50:56:C0:00:08",
		IPAddress:    Bytes{10, 0, 1, byte(2 + r.IntN(250))},
		WifiBSSID:    "00:50:56:C0:00:08",
		WifiSSID:     "<unknown ssid>",
		IMSIMD5:      crypto.MD5(imsi),
		AndroidID:    fmt.Sprintf("%016x", r.Uint64()),
		APN:          "wifi",
		VendorName:   "MIUI",
		VendorOSName: "rqgo",
		Version: OSVersion{
			Incremental: "5891938",
			Release:     "10",
			Codename:    "REL",
			SDK:         29,
		},
	}
}

func fillBytes(r *rand.Rand, b []byte) {
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
}

func digits(r *rand.Rand, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + r.IntN(10)))
	}
	return sb.String()
}

func alphanumeric(r *rand.Rand, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(alnum[r.IntN(len(alnum))])
	}
	return sb.String()
}

// imei returns a 15-digit number with a valid Luhn check digit
func imei(r *rand.Rand) string {
	body := "86" + digits(r, 12)
	return body + string(byte('0'+luhnCheckDigit(body)))
}

func luhnCheckDigit(number string) int {
	sum := 0
	double := true
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}
