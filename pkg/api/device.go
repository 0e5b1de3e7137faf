package api

import (
	"encoding/hex"
	"math/rand/v2"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synodriver/rqgo/pkg/device"
)

// RandomDeviceRequest optionally seeds the generator for a reproducible
// profile.
type RandomDeviceRequest struct {
	Seed []uint64 `json:"seed,omitempty"`
}

// KsidResponse holds the identifiers derived from a profile
type KsidResponse struct {
	Ksid string `json:"ksid"`
	GUID string `json:"guid"`
}

func (s *Server) handleRandomDevice(c *gin.Context) {
	var req RandomDeviceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request", err)
			return
		}
	}

	var p device.Profile
	switch len(req.Seed) {
	case 0:
		p = device.Random()
	case 2:
		p = device.RandomFrom(rand.New(rand.NewPCG(req.Seed[0], req.Seed[1])))
	default:
		abortError(c, http.StatusBadRequest, "seed must hold two integers", nil)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleKsid(c *gin.Context) {
	var p device.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		abortError(c, http.StatusBadRequest, "invalid device", err)
		return
	}
	p = device.New(p)
	c.JSON(http.StatusOK, KsidResponse{
		Ksid: hex.EncodeToString(p.Ksid()),
		GUID: hex.EncodeToString(p.GUID()),
	})
}
