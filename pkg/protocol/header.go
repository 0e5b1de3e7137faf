package protocol

import (
	"encoding/hex"

	"golang.org/x/crypto/cryptobyte"

	"github.com/synodriver/rqgo/pkg/wire"
)

// loginHeadPad sits between the app ids and the TGT in login heads
var loginHeadPad = []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// ssoHeader is the head of an SSO frame
type ssoHeader struct {
	SeqID       int32
	RetCode     int32
	Message     string
	CommandName string
	SessionID   []byte
	Compression uint32
}

// Encode writes the head, adding the login extension when login is set
func (h *ssoHeader) Encode(w *wire.Writer, login bool, t *Transport) {
	w.BlockU32Incl(func(w *wire.Writer) {
		w.I32(h.SeqID).
			I32(h.RetCode).
			StringU32Incl(h.Message).
			StringU32Incl(h.CommandName).
			BytesU32Incl(h.SessionID).
			U32(h.Compression)
		if !login {
			return
		}
		w.U32(t.Version.SubAppID).
			U32(t.Version.AppID).
			Bytes(loginHeadPad).
			BytesU32Incl(t.sig().TGT).
			StringU32Incl(t.Device.IMEI).
			BytesU16Incl(t.sig().Ksid).
			StringU32Incl(t.buildString())
	})
}

// Decode reads the head. Bytes after the known fields are skipped.
func (h *ssoHeader) Decode(s *cryptobyte.String) bool {
	var raw []byte
	if !wire.ReadU32Incl(s, &raw) {
		return false
	}
	head := cryptobyte.String(raw)

	var message, command, session []byte
	if !wire.ReadInt32(&head, &h.SeqID) ||
		!wire.ReadInt32(&head, &h.RetCode) ||
		!wire.ReadU32Incl(&head, &message) ||
		!wire.ReadU32Incl(&head, &command) ||
		!wire.ReadU32Incl(&head, &session) ||
		!head.ReadUint32(&h.Compression) {
		return false
	}
	h.Message = string(message)
	h.CommandName = string(command)
	h.SessionID = session
	return true
}

func (t *Transport) buildString() string {
	return "|" + hex.EncodeToString(t.Device.IMSIMD5) + "|A" + t.Version.SortVersionName
}
