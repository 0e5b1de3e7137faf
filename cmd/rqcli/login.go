package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/synodriver/rqgo/pkg/engine"
	"github.com/synodriver/rqgo/pkg/logging"
	"github.com/synodriver/rqgo/pkg/network"
	"github.com/synodriver/rqgo/pkg/protocol"
	"github.com/synodriver/rqgo/pkg/storage"
)

const heartbeatInterval = 270 * time.Second

var errLoginRejected = errors.New("login rejected")

func (a *app) login(qrPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, created, err := a.store.LoadOrCreateDevice(a.cfg.DeviceName)
	if err != nil {
		return err
	}
	if created {
		a.log.Info().Str("device", a.cfg.DeviceName).Msg("generated new device profile")
	}

	proto := a.cfg.ClientProtocol()
	eng, err := engine.New(profile, proto, engine.WithLogger(logging.Component(a.log, "engine")))
	if err != nil {
		return err
	}

	client, err := network.DialRetry(ctx, a.cfg.Server, eng, logging.Component(a.log, "network"), 3)
	if err != nil {
		return err
	}
	defer client.Close()

	if !a.restore(eng) {
		var resp engine.LoginResponse
		if pw := a.cfg.Password(); pw != nil && a.cfg.Uin != 0 {
			eng.SetUin(a.cfg.Uin)
			resp, err = a.passwordLogin(ctx, client, eng, pw)
		} else {
			resp, err = a.qrLogin(ctx, client, eng, qrPath)
		}
		if err != nil {
			return err
		}
		if err := a.finishLogin(ctx, client, eng, resp); err != nil {
			return err
		}
	}

	register, err := eng.BuildClientRegisterPacket()
	if err != nil {
		return err
	}
	if _, err := a.send(ctx, client, register); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	token, err := eng.Session()
	if err != nil {
		return err
	}
	if err := a.store.SaveSession(&storage.SessionRecord{
		Uin:        token.Uin,
		Protocol:   proto,
		DeviceName: a.cfg.DeviceName,
		Token:      token,
	}); err != nil {
		return err
	}
	printAccount(token.Uin, proto, token.Account)

	a.log.Info().Int64("uin", token.Uin).Msg("online, press ctrl-c to exit")
	client.OnPush = func(p *protocol.Packet) {
		a.log.Info().Str("command", p.CommandName).Int("size", len(p.Body)).Msg("server push")
	}
	client.KeepAlive(ctx, heartbeatInterval, eng.BuildHeartbeatPacket)
	return nil
}

// restore resumes a stored session for the configured account
func (a *app) restore(eng *engine.Engine) bool {
	if a.cfg.Uin == 0 {
		return false
	}
	rec, err := a.store.LoadSession(a.cfg.Uin)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.log.Warn().Err(err).Int64("uin", a.cfg.Uin).Msg("cannot load stored session")
		}
		return false
	}
	if rec.DeviceName != a.cfg.DeviceName || rec.Protocol != a.cfg.ClientProtocol() {
		a.log.Warn().Str("device", rec.DeviceName).Msg("stored session belongs to another device or protocol")
		return false
	}
	if err := eng.RestoreSession(rec.Token); err != nil {
		a.log.Warn().Err(err).Msg("cannot restore session")
		return false
	}
	return true
}

func (a *app) send(ctx context.Context, client *network.Client, pkt *protocol.Packet) (*protocol.Packet, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	resp, err := client.Send(ctx, pkt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pkt.CommandName, err)
	}
	return resp, nil
}

func (a *app) qrLogin(ctx context.Context, client *network.Client, eng *engine.Engine, qrPath string) (engine.LoginResponse, error) {
	fetch, err := eng.BuildQRCodeFetchRequestPacket()
	if err != nil {
		return nil, err
	}
	resp, err := a.send(ctx, client, fetch)
	if err != nil {
		return nil, err
	}
	state, err := eng.DecodeTransEmpResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	img, ok := state.(engine.QRCodeImageFetch)
	if !ok {
		return nil, fmt.Errorf("unexpected qr code state %T", state)
	}
	if err := os.WriteFile(qrPath, img.Image, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save qr code: %w", err)
	}
	fmt.Printf("Scan %s with the mobile client\n", qrPath)

	ticker := time.NewTicker(a.cfg.PollPeriod)
	defer ticker.Stop()
	var last string
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		query, err := eng.BuildQRCodeResultQueryRequestPacket(img.Sig)
		if err != nil {
			return nil, err
		}
		resp, err := a.send(ctx, client, query)
		if err != nil {
			return nil, err
		}
		state, err := eng.DecodeTransEmpResponse(resp.Body)
		if err != nil {
			return nil, err
		}
		if name := fmt.Sprintf("%T", state); name != last {
			a.log.Info().Str("state", name).Msg("qr code state")
			last = name
		}

		switch s := state.(type) {
		case engine.QRCodeWaitingForScan, engine.QRCodeWaitingForConfirm:
		case engine.QRCodeConfirmed:
			pkt, err := eng.BuildQRCodeLoginPacketFromConfirmed(s)
			if err != nil {
				return nil, err
			}
			return a.loginRequest(ctx, client, eng, pkt)
		case engine.QRCodeTimeout:
			return nil, errors.New("qr code expired")
		case engine.QRCodeCanceled:
			return nil, errors.New("qr code login canceled")
		default:
			return nil, fmt.Errorf("unexpected qr code state %T", state)
		}
	}
}

func (a *app) passwordLogin(ctx context.Context, client *network.Client, eng *engine.Engine, pw []byte) (engine.LoginResponse, error) {
	pkt, err := eng.BuildLoginPacket(pw)
	if err != nil {
		return nil, err
	}
	return a.loginRequest(ctx, client, eng, pkt)
}

func (a *app) loginRequest(ctx context.Context, client *network.Client, eng *engine.Engine, pkt *protocol.Packet) (engine.LoginResponse, error) {
	resp, err := a.send(ctx, client, pkt)
	if err != nil {
		return nil, err
	}
	return eng.DecodeLoginResponse(resp.Body)
}

// finishLogin walks the verification steps until the server accepts or
// rejects the login.
func (a *app) finishLogin(ctx context.Context, client *network.Client, eng *engine.Engine, resp engine.LoginResponse) error {
	in := bufio.NewReader(os.Stdin)
	for {
		var pkt *protocol.Packet
		var err error

		switch r := resp.(type) {
		case engine.LoginSuccess:
			return nil
		case engine.LoginNeedCaptcha:
			if r.VerifyURL == "" {
				return fmt.Errorf("%w: image captcha is not supported", errLoginRejected)
			}
			fmt.Printf("Solve the captcha at %s\n", r.VerifyURL)
			ticket, rerr := prompt(in, "ticket: ")
			if rerr != nil {
				return rerr
			}
			pkt, err = eng.BuildTicketSubmitPacket(ticket)
		case engine.LoginDeviceLocked:
			if r.Message != "" {
				fmt.Println(r.Message)
			}
			if r.SMSPhone == "" {
				return fmt.Errorf("%w: verify the device at %s and retry", errLoginRejected, r.VerifyURL)
			}
			sms, serr := eng.BuildSMSRequestPacket()
			if serr != nil {
				return serr
			}
			if resp, err = a.loginRequest(ctx, client, eng, sms); err != nil {
				return err
			}
			if _, ok := resp.(engine.LoginDeviceLocked); !ok {
				continue
			}
			fmt.Printf("A code was sent to %s\n", r.SMSPhone)
			code, rerr := prompt(in, "code: ")
			if rerr != nil {
				return rerr
			}
			pkt, err = eng.BuildSMSCodeSubmitPacket(code)
		case engine.LoginDeviceLockLogin:
			pkt, err = eng.BuildDeviceLockLoginPacket()
		case engine.LoginAccountFrozen:
			return fmt.Errorf("%w: account frozen", errLoginRejected)
		case engine.LoginTooManySMSRequest:
			return fmt.Errorf("%w: too many sms requests, try later", errLoginRejected)
		case engine.LoginUnknownStatus:
			return fmt.Errorf("%w: status %d: %s", errLoginRejected, r.Status, r.Message)
		default:
			return fmt.Errorf("unexpected login response %T", resp)
		}
		if err != nil {
			return err
		}
		if resp, err = a.loginRequest(ctx, client, eng, pkt); err != nil {
			return err
		}
	}
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
