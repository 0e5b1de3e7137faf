// Package device describes the simulated handset presented to the login
// server and derives the signing material bound to it.
package device

import (
	"encoding/json"
	"fmt"

	"github.com/synodriver/rqgo/pkg/crypto"
)

// ksidTemplate is filled with imei and display before keyed hashing
const ksidTemplate = "|%s|A8.2.7.27f6ea96|%s"

// OSVersion is the Android build the device claims to run
type OSVersion struct {
	Incremental string `json:"incremental"`
	Release     string `json:"release"`
	Codename    string `json:"codename"`
	SDK         uint32 `json:"sdk"`
}

// Profile is one simulated client device. The server recognises a returning
// client by these values, so a profile should be persisted and reused.
type Profile struct {
	Display      string    `json:"display"`
	Product      string    `json:"product"`
	Device       string    `json:"device"`
	Board        string    `json:"board"`
	Model        string    `json:"model"`
	FingerPrint  string    `json:"finger_print"`
	BootID       string    `json:"boot_id"`
	ProcVersion  string    `json:"proc_version"`
	IMEI         string    `json:"imei"`
	Brand        string    `json:"brand"`
	Bootloader   string    `json:"bootloader"`
	BaseBand     string    `json:"base_band"`
	SimInfo      string    `json:"sim_info"`
	OSType       string    `json:"os_type"`
	MACAddress   string    `json:"mac_address"`
	IPAddress    Bytes     `json:"ip_address"`
	WifiBSSID    string    `json:"wifi_bssid"`
	WifiSSID     string    `json:"wifi_ssid"`
	IMSIMD5      Bytes     `json:"imsi_md5"`
	AndroidID    string    `json:"android_id"`
	APN          string    `json:"apn"`
	VendorName   string    `json:"vendor_name"`
	VendorOSName string    `json:"vendor_os_name"`
	Version      OSVersion `json:"version"`
}

// New normalises p. Any field values are accepted; byte slices are copied
// and nil slices become empty so that JSON round trips stay equal.
func New(p Profile) Profile {
	p.IPAddress = p.IPAddress.clone()
	p.IMSIMD5 = p.IMSIMD5.clone()
	return p
}

// Ksid is the keyed signature identifying this device. It depends only on
// imei, android_id and display.
func (p Profile) Ksid() []byte {
	return crypto.HMACMD5([]byte(p.AndroidID), fmt.Appendf(nil, ksidTemplate, p.IMEI, p.Display))
}

// GUID is the 16-byte device id sent in login TLVs
func (p Profile) GUID() []byte {
	return crypto.MD5([]byte(p.AndroidID), []byte(p.MACAddress))
}

// Marshal encodes the profile as JSON
func (p Profile) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal decodes a profile produced by Marshal. Missing fields take their
// zero value.
func Unmarshal(data []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to unmarshal device: %w", err)
	}
	return New(p), nil
}

// Bytes is a byte slice that encodes to a JSON array of integers
type Bytes []byte

func (b Bytes) clone() Bytes {
	out := make(Bytes, len(b))
	copy(out, b)
	return out
}

// MarshalJSON implements json.Marshaler
func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]uint16, len(b))
	for i, v := range b {
		ints[i] = uint16(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON accepts an integer array or, for compatibility with plain
// []byte encoding, a base64 string.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var raw []byte
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = raw
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make(Bytes, len(ints))
	for i, v := range ints {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
