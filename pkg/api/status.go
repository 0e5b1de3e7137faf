package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/synodriver/rqgo/pkg/protocol"
)

// ProtocolInfo describes one supported client variant
type ProtocolInfo struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	ApkID           string `json:"apk_id"`
	AppID           uint32 `json:"app_id"`
	SubAppID        uint32 `json:"sub_app_id"`
	SortVersionName string `json:"sort_version_name"`
	SDKVersion      string `json:"sdk_version"`
	Default         bool   `json:"default"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleProtocols(c *gin.Context) {
	var infos []ProtocolInfo
	for _, p := range protocol.Protocols() {
		v := p.Version()
		infos = append(infos, ProtocolInfo{
			ID:              int(p),
			Name:            p.String(),
			ApkID:           v.ApkID,
			AppID:           v.AppID,
			SubAppID:        v.SubAppID,
			SortVersionName: v.SortVersionName,
			SDKVersion:      v.SDKVersion,
			Default:         p == protocol.DefaultProtocol,
		})
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}
