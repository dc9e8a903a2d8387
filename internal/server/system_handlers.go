package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthCheck reports liveness only; it never calls the upstream
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "platform-gateway",
		"version":   s.version,
	})
}

// readinessCheck reports the latest upstream probe
func (s *Server) readinessCheck(c *gin.Context) {
	status := s.prober.Status()
	if !status.Ready {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
