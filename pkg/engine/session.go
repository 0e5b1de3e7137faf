package engine

import (
	"bytes"
	"fmt"

	"github.com/synodriver/rqgo/pkg/crypto"
)

// session is the mutable login state. It is only written by the apply*
// methods, each called with Engine.mu held once a reply is fully decoded.
type session struct {
	uin           int64
	authenticated bool
	account       AccountInfo
}

// challenge holds the tokens a reply hands to the next sub-flow
type challenge struct {
	t104     []byte
	t174     []byte
	t402     []byte
	randSeed []byte
}

func (e *Engine) applyChallenge(c challenge) {
	sig := e.transport.Sig
	if c.t104 != nil {
		sig.T104 = c.t104
	}
	if c.t174 != nil {
		sig.T174 = c.t174
	}
	if c.randSeed != nil {
		sig.RandSeed = c.randSeed
	}
	if c.t402 != nil {
		sig.T402 = c.t402
		sig.G = crypto.MD5(e.transport.Device.GUID(), sig.Dpwd, c.t402)
	}
}

func (e *Engine) applyQRCodeConfirmed(c QRCodeConfirmed, tgtgtKey []byte) {
	sig := e.transport.Sig
	e.session.uin = c.Uin
	sig.TgtgtKey = tgtgtKey
	sig.EncryptedA1 = c.TmpPwd
	sig.SrmToken = c.TmpNoPicSig
}

// loginSecrets is what a successful t119 yields
type loginSecrets struct {
	uin          int64
	tgt          []byte
	tgtKey       []byte
	d2           []byte
	d2Key        []byte
	sKey         []byte
	userStKey    []byte
	userStWebSig []byte
	deviceToken  []byte
	srmToken     []byte
	t133         []byte
	encryptedA1  []byte
	psKeys       map[string][]byte
	pt4Tokens    map[string][]byte
	account      AccountInfo
}

func (e *Engine) applyLoginSuccess(s loginSecrets) {
	sig := e.transport.Sig
	if s.uin != 0 {
		e.session.uin = s.uin
	}
	sig.TGT = s.tgt
	sig.TGTKey = s.tgtKey
	sig.D2 = s.d2
	sig.D2Key = s.d2Key
	sig.SKey = s.sKey
	sig.UserStKey = s.userStKey
	sig.UserStWebSig = s.userStWebSig
	sig.DeviceToken = s.deviceToken
	if s.srmToken != nil {
		sig.SrmToken = s.srmToken
	}
	if s.t133 != nil {
		sig.T133 = s.t133
	}
	if s.encryptedA1 != nil {
		sig.EncryptedA1 = s.encryptedA1
	}
	for k, v := range s.psKeys {
		sig.PsKeyMap[k] = v
	}
	for k, v := range s.pt4Tokens {
		sig.Pt4TokenMap[k] = v
	}
	e.session.account = s.account
	e.session.authenticated = true
}

// requireAuth returns the bound uin or ErrNotAuthenticated. Callers hold mu.
func (e *Engine) requireAuth() (int64, error) {
	if !e.session.authenticated {
		return 0, ErrNotAuthenticated
	}
	return e.session.uin, nil
}

// AccountInfo returns the profile received at login
func (e *Engine) AccountInfo() (AccountInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.requireAuth(); err != nil {
		return AccountInfo{}, err
	}
	return e.session.account, nil
}

// SessionToken is the resumable part of an authenticated session. Callers
// persist it; it is as sensitive as a password.
type SessionToken struct {
	Uin          int64       `json:"uin"`
	D2           []byte      `json:"d2"`
	D2Key        []byte      `json:"d2_key"`
	TGT          []byte      `json:"tgt"`
	TGTKey       []byte      `json:"tgt_key"`
	SrmToken     []byte      `json:"srm_token"`
	T133         []byte      `json:"t133"`
	EncryptedA1  []byte      `json:"encrypted_a1"`
	UserStKey    []byte      `json:"user_st_key"`
	UserStWebSig []byte      `json:"user_st_web_sig"`
	SKey         []byte      `json:"skey"`
	DeviceToken  []byte      `json:"device_token"`
	TgtgtKey     []byte      `json:"tgtgt_key"`
	Account      AccountInfo `json:"account"`
}

// Session exports the current session for later RestoreSession
func (e *Engine) Session() (SessionToken, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	uin, err := e.requireAuth()
	if err != nil {
		return SessionToken{}, err
	}
	sig := e.transport.Sig
	return SessionToken{
		Uin:          uin,
		D2:           bytes.Clone(sig.D2),
		D2Key:        bytes.Clone(sig.D2Key),
		TGT:          bytes.Clone(sig.TGT),
		TGTKey:       bytes.Clone(sig.TGTKey),
		SrmToken:     bytes.Clone(sig.SrmToken),
		T133:         bytes.Clone(sig.T133),
		EncryptedA1:  bytes.Clone(sig.EncryptedA1),
		UserStKey:    bytes.Clone(sig.UserStKey),
		UserStWebSig: bytes.Clone(sig.UserStWebSig),
		SKey:         bytes.Clone(sig.SKey),
		DeviceToken:  bytes.Clone(sig.DeviceToken),
		TgtgtKey:     bytes.Clone(sig.TgtgtKey),
		Account:      e.session.account,
	}, nil
}

// RestoreSession resumes a session exported by Session. The engine must
// have been created with the same device profile.
func (e *Engine) RestoreSession(t SessionToken) error {
	if t.Uin == 0 || len(t.D2) == 0 || len(t.D2Key) != 16 {
		return fmt.Errorf("%w: uin and d2 required", ErrInvalidSession)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sig := e.transport.Sig
	if len(t.TgtgtKey) > 0 {
		sig.TgtgtKey = bytes.Clone(t.TgtgtKey)
	}
	e.applyLoginSuccess(loginSecrets{
		uin:          t.Uin,
		tgt:          bytes.Clone(t.TGT),
		tgtKey:       bytes.Clone(t.TGTKey),
		d2:           bytes.Clone(t.D2),
		d2Key:        bytes.Clone(t.D2Key),
		sKey:         bytes.Clone(t.SKey),
		userStKey:    bytes.Clone(t.UserStKey),
		userStWebSig: bytes.Clone(t.UserStWebSig),
		deviceToken:  bytes.Clone(t.DeviceToken),
		srmToken:     bytes.Clone(t.SrmToken),
		t133:         bytes.Clone(t.T133),
		encryptedA1:  bytes.Clone(t.EncryptedA1),
		account:      t.Account,
	})
	e.log.Info().Int64("uin", t.Uin).Msg("session restored")
	return nil
}

// sigSnapshot copies the fields builders read, so packets can be assembled
// without holding the lock.
type sigSnapshot struct {
	uin      int64
	tgtgtKey []byte
	t104     []byte
	t174     []byte
	g        []byte
	a1       []byte
	srm      []byte
}

func (e *Engine) snapshot() sigSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sig := e.transport.Sig
	return sigSnapshot{
		uin:      e.session.uin,
		tgtgtKey: bytes.Clone(sig.TgtgtKey),
		t104:     bytes.Clone(sig.T104),
		t174:     bytes.Clone(sig.T174),
		g:        bytes.Clone(sig.G),
		a1:       bytes.Clone(sig.EncryptedA1),
		srm:      bytes.Clone(sig.SrmToken),
	}
}
