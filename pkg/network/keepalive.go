package network

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/synodriver/rqgo/pkg/protocol"
)

// DialRetry dials until it succeeds, ctx ends or attempts run out, backing
// off exponentially between tries. attempts <= 0 retries forever.
func DialRetry(ctx context.Context, addr string, codec Codec, log zerolog.Logger, attempts int) (*Client, error) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for i := 1; ; i++ {
		c, err := Dial(ctx, addr, codec, log)
		if err == nil {
			return c, nil
		}
		if attempts > 0 && i >= attempts {
			return nil, err
		}

		log.Warn().Err(err).Dur("backoff", backoff).Int("attempt", i).Msg("connect failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// KeepAlive sends the packet built by heartbeat every interval until ctx
// ends or the connection drops. Each heartbeat waits for its reply.
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration, heartbeat func() (*protocol.Packet, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
		}

		pkt, err := heartbeat()
		if err != nil {
			c.log.Warn().Err(err).Msg("cannot build heartbeat")
			return
		}
		sendCtx, cancel := context.WithTimeout(ctx, interval)
		_, err = c.Send(sendCtx, pkt)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("heartbeat failed")
		}
	}
}
