package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/airqo-platform/gateway/internal/auth"
	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/proxy"
)

// statusClientClosedRequest is logged when the caller hangs up mid-request
const statusClientClosedRequest = 499

// proxyRequest handles every verb under /api/*path
func (s *Server) proxyRequest(c *gin.Context) {
	maxBody := s.config.Server.MaxBodyBytes
	if c.Request.ContentLength > maxBody {
		respondWithError(c, s.logger, http.StatusRequestEntityTooLarge, proxy.ErrRequestTooLarge, "Request body too large")
		return
	}

	req := &proxy.Request{
		Method:        c.Request.Method,
		Segments:      proxy.SplitPath(strings.TrimPrefix(c.Request.URL.EscapedPath(), "/api")),
		RawQuery:      c.Request.URL.RawQuery,
		Header:        c.Request.Header,
		Body:          http.MaxBytesReader(c.Writer, c.Request.Body, maxBody),
		ContentLength: c.Request.ContentLength,
	}

	resp, err := s.proxy.Forward(c.Request.Context(), req)
	if err != nil {
		s.respondWithProxyError(c, err)
		return
	}

	c.Set(ctxAuthMode, string(resp.Mode))
	c.Set(ctxAuthSource, string(resp.Source))
	if resp.Mode == authmode.ModeJWT {
		if session, err := auth.InspectSession(c.GetHeader("Authorization")); err == nil && session.UserID != "" {
			c.Set(ctxSessionUser, session.UserID)
		}
	}

	header := c.Writer.Header()
	for key, values := range resp.Header {
		header[key] = values
	}
	switch {
	case c.Request.Method != http.MethodHead:
		header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	case resp.ContentLength >= 0:
		header.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	c.Status(resp.StatusCode)
	if len(resp.Body) > 0 && c.Request.Method != http.MethodHead {
		if _, err := c.Writer.Write(resp.Body); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to write response to client")
		}
	}
}

// respondWithProxyError turns proxy-side failures into generic, secret-free
// client responses. Upstream error statuses never get here.
func (s *Server) respondWithProxyError(c *gin.Context, err error) {
	var unreachable *proxy.UnreachableError

	switch {
	case errors.Is(err, proxy.ErrReservedPath), errors.Is(err, proxy.ErrEmptyPath):
		respondWithError(c, s.logger, http.StatusNotFound, err, "Not found")
	case errors.Is(err, proxy.ErrInvalidPath):
		respondWithError(c, s.logger, http.StatusBadRequest, err, "Invalid path")
	case errors.Is(err, proxy.ErrMethodNotAllowed):
		respondWithError(c, s.logger, http.StatusMethodNotAllowed, err, "Method not allowed")
	case errors.Is(err, proxy.ErrRequestTooLarge):
		respondWithError(c, s.logger, http.StatusRequestEntityTooLarge, err, "Request body too large")
	case errors.Is(err, proxy.ErrMissingServiceToken):
		s.logger.Error().Msg("Token-mode request refused: API_TOKEN is not configured")
		respondWithError(c, s.logger, http.StatusInternalServerError, err, "Internal server error")
	case errors.Is(err, proxy.ErrCircuitOpen):
		c.Header("Retry-After", "30")
		respondWithError(c, s.logger, http.StatusServiceUnavailable, err, "Service temporarily unavailable")
	case errors.Is(err, proxy.ErrResponseTooLarge):
		respondWithError(c, s.logger, http.StatusBadGateway, err, "Bad gateway")
	case errors.Is(err, proxy.ErrClientClosed):
		s.logger.Debug().Str("request_id", c.GetString(ctxRequestID)).Msg("Client closed request")
		c.AbortWithStatus(statusClientClosedRequest)
	case errors.As(err, &unreachable) && unreachable.Timeout:
		respondWithError(c, s.logger, http.StatusGatewayTimeout, err, "Upstream timeout")
	default:
		respondWithError(c, s.logger, http.StatusInternalServerError, err, "Internal server error")
	}
}
