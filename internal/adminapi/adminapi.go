// Package adminapi exposes a small Gin-based HTTP surface for
// operational introspection: health, runtime stats, the active NAT
// table, and the loaded hosts table. It binds to a separate address
// from the proxy listener, normally loopback-only.
package adminapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/duskrelay/duskrelay/internal/hosts"
	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/nat"
)

// Server is the admin/status HTTP server.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        *slog.Logger

	startTime time.Time
	nat       *nat.Table
	hosts     *hosts.Table
}

// New builds a Server bound to addr (e.g. "127.0.0.1:8088"). hostsTable
// may be nil if the hosts table failed to load; the /hosts endpoint
// then reports an empty list.
func New(addr string, natTable *nat.Table, hostsTable *hosts.Table) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		log:       logging.For("adminapi"),
		startTime: time.Now(),
		nat:       natTable,
		hosts:     hostsTable,
	}
	engine.Use(slogRequestLogger(s.log))
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/stats", s.handleStats)
	s.engine.GET("/nat", s.handleNAT)
	s.engine.GET("/hosts", s.handleHosts)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	uptime := time.Since(s.startTime)

	memStats := gin.H{}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		memStats = gin.H{
			"total_mb":     float64(vmStat.Total) / 1024 / 1024,
			"free_mb":      float64(vmStat.Available) / 1024 / 1024,
			"used_mb":      float64(vmStat.Used) / 1024 / 1024,
			"used_percent": vmStat.UsedPercent,
		}
	}

	cpuStats := gin.H{"num_cpu": runtime.NumCPU()}
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuStats["used_percent"] = percents[0]
		cpuStats["idle_percent"] = 100.0 - percents[0]
	}

	natLen := 0
	if s.nat != nil {
		natLen = s.nat.Len()
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":   int64(uptime.Seconds()),
		"start_time":       s.startTime,
		"cpu":              cpuStats,
		"memory":           memStats,
		"active_nat_ports": natLen,
	})
}

func (s *Server) handleNAT(c *gin.Context) {
	if s.nat == nil {
		c.JSON(http.StatusOK, gin.H{"mappings": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": s.nat.Snapshot()})
}

func (s *Server) handleHosts(c *gin.Context) {
	if s.hosts == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []hosts.Entry{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": s.hosts.Dump()})
}

// slogRequestLogger logs each request's method, path, status, and
// latency at info level once the handler returns.
func slogRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("admin api request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
