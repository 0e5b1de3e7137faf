package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/protocol"
)

// Packet is the JSON form of protocol.Packet. Byte fields are base64.
type Packet struct {
	Type        uint32 `json:"type"`
	EncryptType uint8  `json:"encrypt_type"`
	SeqID       int32  `json:"seq_id"`
	Command     string `json:"command"`
	Uin         int64  `json:"uin"`
	Body        []byte `json:"body"`
	Message     string `json:"message,omitempty"`
}

// Session carries the secrets a frame may need
type Session struct {
	D2        []byte `json:"d2,omitempty"`
	D2Key     []byte `json:"d2_key,omitempty"`
	SessionID []byte `json:"session_id,omitempty"`
}

// EncodeRequest asks for a packet to be framed
type EncodeRequest struct {
	Protocol int             `json:"protocol"`
	Device   *device.Profile `json:"device,omitempty"`
	Session  Session         `json:"session"`
	Packet   Packet          `json:"packet"`
}

// EncodeResponse holds the framed packet
type EncodeResponse struct {
	Frame  []byte `json:"frame"`
	Length int    `json:"length"`
}

// DecodeRequest asks for a frame to be parsed
type DecodeRequest struct {
	Protocol int             `json:"protocol"`
	Device   *device.Profile `json:"device,omitempty"`
	Session  Session         `json:"session"`
	Frame    []byte          `json:"frame" binding:"required"`
}

func newTransport(proto int, p *device.Profile, sess Session) *protocol.Transport {
	var profile device.Profile
	if p != nil {
		profile = *p
	}
	t := protocol.NewTransport(device.New(profile), protocol.ParseProtocol(proto).Version())
	t.Sig.D2 = sess.D2
	t.Sig.D2Key = sess.D2Key
	t.Sig.OutPacketSessionID = sess.SessionID
	return t
}

func (s *Server) handleEncode(c *gin.Context) {
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	t := newTransport(req.Protocol, req.Device, req.Session)
	frame, err := t.EncodePacket(&protocol.Packet{
		Type:        protocol.PacketType(req.Packet.Type),
		EncryptType: protocol.EncryptType(req.Packet.EncryptType),
		SeqID:       req.Packet.SeqID,
		CommandName: req.Packet.Command,
		Uin:         req.Packet.Uin,
		Body:        req.Packet.Body,
		Message:     req.Packet.Message,
	})
	if err != nil {
		abortCodecError(c, err)
		return
	}
	c.JSON(http.StatusOK, EncodeResponse{Frame: frame, Length: len(frame)})
}

func (s *Server) handleDecode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	t := newTransport(req.Protocol, req.Device, req.Session)
	p, err := t.DecodePacket(req.Frame)
	if err != nil {
		abortCodecError(c, err)
		return
	}
	c.JSON(http.StatusOK, Packet{
		Type:        uint32(p.Type),
		EncryptType: uint8(p.EncryptType),
		SeqID:       p.SeqID,
		Command:     p.CommandName,
		Uin:         p.Uin,
		Body:        p.Body,
		Message:     p.Message,
	})
}

var codecErrorCodes = []struct {
	err  error
	code string
}{
	{protocol.ErrTruncated, "truncated"},
	{protocol.ErrInvalidPacketType, "invalid_packet_type"},
	{protocol.ErrInvalidEncryptType, "invalid_encrypt_type"},
	{protocol.ErrMissingSessionKey, "missing_session_key"},
	{protocol.ErrLengthMismatch, "length_mismatch"},
	{protocol.ErrDecrypt, "decrypt_failed"},
	{protocol.ErrSeqMismatch, "seq_mismatch"},
	{protocol.ErrInvalidUin, "invalid_uin"},
	{protocol.ErrCompression, "unsupported_compression"},
}

func abortCodecError(c *gin.Context, err error) {
	resp := ErrorResponse{Error: "codec error", Message: err.Error(), Code: "unknown"}
	for _, e := range codecErrorCodes {
		if errors.Is(err, e.err) {
			resp.Code = e.code
			break
		}
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, resp)
}
