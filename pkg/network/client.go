// Package network carries encoded frames between an engine and an SSO
// server over TCP. It matches replies to requests by sequence id and hands
// unsolicited server pushes to a callback.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/synodriver/rqgo/pkg/protocol"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrDuplicateSeq = errors.New("request with this sequence id already pending")
)

// Codec turns packets into frames and back. *engine.Engine implements it.
type Codec interface {
	EncodePacket(*protocol.Packet) ([]byte, error)
	DecodePacket([]byte) (*protocol.Packet, error)
}

type result struct {
	pkt *protocol.Packet
	err error
}

// Client is one connection to an SSO server
type Client struct {
	conn  net.Conn
	codec Codec
	log   zerolog.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[int32]chan result
	err     error

	connected atomic.Bool
	done      chan struct{}

	// OnPush receives packets that answer no pending request. It runs on
	// the receive goroutine.
	OnPush func(*protocol.Packet)
}

// Dial connects to addr and starts the receive loop
func Dial(ctx context.Context, addr string, codec Codec, log zerolog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("connected to server")
	return NewClient(conn, codec, log), nil
}

// NewClient wraps an established connection and starts the receive loop
func NewClient(conn net.Conn, codec Codec, log zerolog.Logger) *Client {
	c := &Client{
		conn:    conn,
		codec:   codec,
		log:     log,
		pending: make(map[int32]chan result),
		done:    make(chan struct{}),
	}
	c.connected.Store(true)
	go c.receiveLoop()
	return c
}

// Send writes pkt and waits for the reply carrying the same sequence id
func (c *Client) Send(ctx context.Context, pkt *protocol.Packet) (*protocol.Packet, error) {
	ch := make(chan result, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	if _, exists := c.pending[pkt.SeqID]; exists {
		c.mu.Unlock()
		return nil, ErrDuplicateSeq
	}
	c.pending[pkt.SeqID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, pkt.SeqID)
		c.mu.Unlock()
	}()

	if err := c.Post(pkt); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.pkt, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post writes pkt without waiting for a reply
func (c *Client) Post(pkt *protocol.Packet) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	frame, err := c.codec.EncodePacket(pkt)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WriteFrame(c.conn, frame); err != nil {
		return fmt.Errorf("failed to write %s: %w", pkt.CommandName, err)
	}
	c.log.Debug().Str("command", pkt.CommandName).Int32("seq", pkt.SeqID).Int("size", len(frame)).Msg("sent packet")
	return nil
}

func (c *Client) receiveLoop() {
	defer close(c.done)
	for {
		frame, err := protocol.ReadFrame(c.conn)
		if err != nil {
			c.fail(err)
			return
		}

		pkt, err := c.codec.DecodePacket(frame)
		if err != nil {
			// One bad frame does not poison the stream; framing is intact.
			c.log.Warn().Err(err).Int("size", len(frame)).Msg("dropping undecodable frame")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[pkt.SeqID]
		if ok {
			delete(c.pending, pkt.SeqID)
		}
		c.mu.Unlock()

		if ok {
			ch <- result{pkt: pkt}
			continue
		}
		if c.OnPush != nil {
			c.OnPush(pkt)
		} else {
			c.log.Debug().Str("command", pkt.CommandName).Int32("seq", pkt.SeqID).Msg("unhandled push")
		}
	}
}

// fail wakes every pending request with err
func (c *Client) fail(err error) {
	if c.connected.Swap(false) {
		c.log.Warn().Err(err).Msg("connection lost")
		err = fmt.Errorf("%w: %v", ErrNotConnected, err)
	} else {
		err = ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	for seq, ch := range c.pending {
		ch <- result{err: err}
		delete(c.pending, seq)
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Done is closed once the receive loop has stopped
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close disconnects and waits for the receive loop to stop
func (c *Client) Close() error {
	c.connected.Store(false)
	err := c.conn.Close()
	<-c.done
	return err
}
