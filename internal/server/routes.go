package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oio/domestic-ai/internal/supervise"
)

const defaultEventLimit = 50

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.name,
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"services": s.ctl.Snapshot(),
		})
	})

	s.router.GET("/services/:service", func(c *gin.Context) {
		status, ok := s.ctl.SnapshotUnit(c.Param("service"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	s.router.POST("/services/:service/start", func(c *gin.Context) {
		s.runAction(c, s.ctl.Ensure)
	})

	s.router.POST("/services/:service/stop", func(c *gin.Context) {
		s.runAction(c, s.ctl.Stop)
	})

	s.router.POST("/services/:service/restart", func(c *gin.Context) {
		s.runAction(c, s.ctl.Restart)
	})

	s.router.POST("/down", func(c *gin.Context) {
		if err := s.ctl.Down(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "partial",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
	})

	s.router.GET("/events", func(c *gin.Context) {
		if s.events == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
			return
		}
		events, err := s.events.Tail(queryLimit(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	s.router.GET("/services/:service/history", func(c *gin.Context) {
		if s.events == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
			return
		}
		name := c.Param("service")
		if _, ok := s.ctl.SnapshotUnit(name); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		events, err := s.events.UnitHistory(name, queryLimit(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": name, "events": events})
	})
}

func (s *Server) runAction(c *gin.Context, action func(ctx context.Context, name string) error) {
	name := c.Param("service")
	err := action(c.Request.Context(), name)
	switch {
	case err == nil:
		status, _ := s.ctl.SnapshotUnit(name)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": status})
	case errors.Is(err, supervise.ErrUnknownUnit):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, supervise.ErrUnmanagedUnit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		status, _ := s.ctl.SnapshotUnit(name)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   err.Error(),
			"service": status,
		})
	}
}

func queryLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultEventLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultEventLimit
	}
	return limit
}
