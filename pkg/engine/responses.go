package engine

import "github.com/synodriver/rqgo/pkg/wire"

// QRCodeState is one step of the QR login flow. The concrete type is one of
// the QRCode* types below.
type QRCodeState interface {
	qrCodeState()
}

// QRCodeImageFetch carries the code image and the sig used to poll it
type QRCodeImageFetch struct {
	Sig   []byte
	Image []byte
}

type QRCodeWaitingForScan struct{}

type QRCodeWaitingForConfirm struct{}

type QRCodeTimeout struct{}

type QRCodeCanceled struct{}

// QRCodeConfirmed is reported once the code is scanned and approved
type QRCodeConfirmed struct {
	Uin         int64
	TmpPwd      []byte
	TmpNoPicSig []byte
	TgtQR       []byte
}

func (QRCodeImageFetch) qrCodeState()        {}
func (QRCodeWaitingForScan) qrCodeState()    {}
func (QRCodeWaitingForConfirm) qrCodeState() {}
func (QRCodeTimeout) qrCodeState()           {}
func (QRCodeCanceled) qrCodeState()          {}
func (QRCodeConfirmed) qrCodeState()         {}

// LoginResponse is the outcome of one login attempt. The concrete type is
// one of the Login* types below.
type LoginResponse interface {
	loginResponse()
}

// AccountInfo is the profile returned with a successful login
type AccountInfo struct {
	Nick   string `json:"nick"`
	Age    uint8  `json:"age"`
	Gender uint8  `json:"gender"`
}

type LoginSuccess struct {
	AccountInfo AccountInfo
}

// LoginDeviceLockLogin asks for BuildDeviceLockLoginPacket to be sent
type LoginDeviceLockLogin struct{}

type LoginAccountFrozen struct{}

type LoginTooManySMSRequest struct{}

// LoginDeviceLocked requires confirming the device by SMS or URL. Each
// field is optional; an empty string means the server did not send it.
type LoginDeviceLocked struct {
	SMSPhone  string
	VerifyURL string
	Message   string
}

// LoginNeedCaptcha carries either a slider URL or an image captcha
type LoginNeedCaptcha struct {
	VerifyURL string
	Image     []byte
	Sign      []byte
}

// LoginUnknownStatus preserves a reply no other variant describes
type LoginUnknownStatus struct {
	Status  uint8
	Message string
	TLVs    wire.TLVMap
}

func (LoginSuccess) loginResponse()           {}
func (LoginDeviceLockLogin) loginResponse()   {}
func (LoginAccountFrozen) loginResponse()     {}
func (LoginTooManySMSRequest) loginResponse() {}
func (LoginDeviceLocked) loginResponse()      {}
func (LoginNeedCaptcha) loginResponse()       {}
func (LoginUnknownStatus) loginResponse()     {}
