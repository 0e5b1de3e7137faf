package engine

import (
	"errors"

	"github.com/synodriver/rqgo/pkg/protocol"
)

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidPassword     = errors.New("password md5 must be 16 bytes")
	ErrUnexpectedCommand   = errors.New("unexpected command")
	ErrUnknownQRCodeStatus = errors.New("unknown qrcode status")
	ErrMissingTLV          = errors.New("missing tlv")
	ErrInvalidTLV          = errors.New("invalid tlv")
	ErrMissingTerminator   = errors.New("missing code2d terminator")
	ErrInvalidSession      = errors.New("invalid session token")
)

// responseError reports a malformed server reply as a codec failure
func responseError(op string, err error) error {
	return &protocol.CodecError{Op: op, Err: err}
}
