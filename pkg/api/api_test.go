package api

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synodriver/rqgo/pkg/device"
	"github.com/synodriver/rqgo/pkg/protocol"
)

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := NewServer(cfg, zerolog.Nop())
	t.Cleanup(func() {
		if s.limiter != nil {
			s.limiter.Close()
		}
	})
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestProtocols(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/api/v1/protocols", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var infos []ProtocolInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, len(protocol.Protocols()))

	defaults := 0
	for _, info := range infos {
		assert.NotEmpty(t, info.ApkID)
		if info.Default {
			defaults++
			assert.Equal(t, int(protocol.DefaultProtocol), info.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestRandomDevice(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("seeded", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/api/v1/device/random", RandomDeviceRequest{Seed: []uint64{1, 2}})
		require.Equal(t, http.StatusOK, w.Code)

		got, err := device.Unmarshal(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, device.RandomFrom(rand.New(rand.NewPCG(1, 2))), got)
	})

	t.Run("unseeded", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/api/v1/device/random", nil)
		require.Equal(t, http.StatusOK, w.Code)
		got, err := device.Unmarshal(w.Body.Bytes())
		require.NoError(t, err)
		assert.Len(t, got.IMEI, 15)
	})

	t.Run("bad seed", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/api/v1/device/random", RandomDeviceRequest{Seed: []uint64{1}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestKsid(t *testing.T) {
	s := newTestServer(t, nil)
	p := device.RandomFrom(rand.New(rand.NewPCG(5, 6)))

	w := do(t, s, http.MethodPost, "/api/v1/device/ksid", p)
	require.Equal(t, http.StatusOK, w.Code)

	var resp KsidResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Ksid, 32)
	assert.Len(t, resp.GUID, 32)

	w = do(t, s, http.MethodPost, "/api/v1/device/ksid", "not a device")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	p := device.RandomFrom(rand.New(rand.NewPCG(5, 6)))
	session := Session{D2: []byte("d2"), D2Key: []byte("0123456789abcdef")}

	tests := []struct {
		name   string
		packet Packet
	}{
		{"login empty key", Packet{Type: 0x0A, EncryptType: 2, SeqID: 0x3636, Command: "wtlogin.login", Uin: 10001, Body: []byte("body")}},
		{"login d2", Packet{Type: 0x0A, EncryptType: 1, SeqID: 7, Command: "StatSvc.register", Uin: 10001, Body: []byte{1, 2, 3}}},
		{"simple d2", Packet{Type: 0x0B, EncryptType: 1, SeqID: 8, Command: "OidbSvc.0x88d_0", Uin: 10001, Body: []byte("x")}},
		{"plain", Packet{Type: 0x0A, EncryptType: 0, SeqID: 9, Command: "Heartbeat.Alive", Uin: 10001, Body: []byte("ping")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/packet/encode", EncodeRequest{Protocol: 2, Device: &p, Session: session, Packet: tt.packet})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var enc EncodeResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enc))
			assert.Equal(t, len(enc.Frame), enc.Length)

			w = do(t, s, http.MethodPost, "/api/v1/packet/decode", DecodeRequest{Protocol: 2, Device: &p, Session: session, Frame: enc.Frame})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var got Packet
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.packet, got)
		})
	}
}

func TestCodecErrors(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/api/v1/packet/encode", EncodeRequest{
		Packet: Packet{Type: 0x0B, EncryptType: 1, Command: "x", Uin: 1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "missing_session_key", resp.Code)

	w = do(t, s, http.MethodPost, "/api/v1/packet/decode", DecodeRequest{Frame: []byte{0, 0, 0, 9, 0}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "truncated", resp.Code)

	w = do(t, s, http.MethodPost, "/api/v1/packet/decode", DecodeRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodOptions, "/api/v1/packet/encode", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
