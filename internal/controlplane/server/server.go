// Package server 控制面 HTTP API：实例状态查询与运行时干预。
// 只做编排层，引擎的正确性从不依赖它。
package server

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/engine"
	"github.com/betbot/godice/internal/telemetry"
)

var log = logrus.WithField("component", "controlplane")

// Registry 进程内实例注册表。
type Registry struct {
	mu   sync.RWMutex
	bots map[string]*engine.Engine
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]*engine.Engine)}
}

// Register 登记一个实例。
func (r *Registry) Register(e *engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[e.ID()] = e
}

// Get 按 ID 取实例。
func (r *Registry) Get(id string) (*engine.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.bots[id]
	return e, ok
}

// Snapshots 全体实例状态，按 ID 排序。
func (r *Registry) Snapshots() []engine.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]engine.State, 0, len(r.bots))
	for _, e := range r.bots {
		out = append(out, e.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Server 控制面服务。journal、hub 可为 nil（对应端点返回 404/降级）。
type Server struct {
	registry *Registry
	journal  *telemetry.Journal
	hub      *telemetry.Hub

	srv *http.Server
}

// New 组装控制面。
func New(registry *Registry, journal *telemetry.Journal, hub *telemetry.Hub) *Server {
	return &Server{registry: registry, journal: journal, hub: hub}
}

// Router 构建路由。
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api/v1")
	api.GET("/bots", s.handleBotsList)

	bot := api.Group("/bots/:botID")
	bot.GET("", s.handleBotGet)
	bot.POST("/pause", s.handleBotPause)
	bot.POST("/resume", s.handleBotResume)
	bot.POST("/restart", s.handleBotRestart)
	bot.POST("/force-end-recovery", s.handleBotForceEndRecovery)
	bot.GET("/rounds", s.handleBotRounds)

	if s.hub != nil {
		api.GET("/stream", gin.WrapH(s.hub))
	}

	return r
}

// Start 启动监听。阻塞直到 Close。
func (s *Server) Start(listen string) error {
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Infof("🚀 control plane listening on %s", listen)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close 优雅停机。
func (s *Server) Close(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleBotsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bots": s.registry.Snapshots()})
}

func (s *Server) bot(c *gin.Context) (*engine.Engine, bool) {
	id := c.Param("botID")
	e, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bot: " + id})
		return nil, false
	}
	return e, true
}

func (s *Server) handleBotGet(c *gin.Context) {
	e, ok := s.bot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleBotPause(c *gin.Context) {
	e, ok := s.bot(c)
	if !ok {
		return
	}
	e.Pause()
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleBotResume(c *gin.Context) {
	e, ok := s.bot(c)
	if !ok {
		return
	}
	e.Resume()
	c.JSON(http.StatusOK, e.Snapshot())
}

type restartRequest struct {
	NewInitialBank float64 `json:"newInitialBank"`
}

func (s *Server) handleBotRestart(c *gin.Context) {
	e, ok := s.bot(c)
	if !ok {
		return
	}
	var req restartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	bank := domain.SafeParseFloat(req.NewInitialBank, decimal.Zero)
	if bank.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "newInitialBank must be > 0"})
		return
	}
	e.Restart(bank)
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleBotForceEndRecovery(c *gin.Context) {
	e, ok := s.bot(c)
	if !ok {
		return
	}
	e.ForceEndRecovery()
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleBotRounds(c *gin.Context) {
	e, ok := s.bot(c)
	if !ok {
		return
	}
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round journal not configured"})
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	rounds, err := s.journal.Tail(e.ID(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}
