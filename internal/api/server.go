package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pricescout/internal/api/auth"
	"pricescout/internal/api/middleware"
	"pricescout/internal/config"
	"pricescout/internal/scheduler"
	"pricescout/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server 追踪列表的 HTTP 管理面。
//
// MCP 工具面向 agent 宿主，这里面向人：登录后查看追踪列表、
// 价格历史，手动触发刷新。
type Server struct {
	cfg    *config.Config
	db     *gorm.DB
	rdb    *redis.Client
	store  *store.Store
	sched  *scheduler.Scheduler
	auth   *auth.Handler
	logger *slog.Logger
	router *gin.Engine

	httpServer *http.Server
}

// NewServer 创建 HTTP 服务。
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client, st *store.Store, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:    cfg,
		db:     db,
		rdb:    rdb,
		store:  st,
		sched:  sched,
		auth:   auth.NewHandler(db, cfg.Security.JWTSecret, logger),
		logger: logger,
		router: router,
	}
	s.registerRoutes()
	return s
}

// Start 启动 HTTP 监听，阻塞直到服务关闭。
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.App.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", slog.String("addr", s.cfg.App.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭 HTTP 服务。
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/register", s.auth.Register)
	s.router.POST("/login", s.auth.Login)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.GET("/products", s.handleListProducts)
	authed.GET("/products/:id/history", s.handleProductHistory)
	authed.DELETE("/products/:id", s.handleUntrackProduct)
	authed.POST("/refresh", s.handleRefreshAll)
	authed.PATCH("/me/notify", s.handleToggleNotify)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListProducts 返回当前用户的追踪列表。
// ?history=1 时附带完整价格历史。
func (s *Server) handleListProducts(c *gin.Context) {
	userID := middleware.UserID(c)
	withHistory := c.Query("history") == "1"

	products, err := s.store.ListTrackedProducts(c.Request.Context(), userID, withHistory)
	if err != nil {
		s.logger.Error("list products failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}

func (s *Server) handleProductHistory(c *gin.Context) {
	userID := middleware.UserID(c)
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := s.store.FindProductByID(c.Request.Context(), userID, uint(productID))
	if err != nil {
		if errors.Is(err, store.ErrNotTracked) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load product failed"})
		return
	}

	history, err := s.store.PriceHistory(c.Request.Context(), product.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product, "history": history})
}

func (s *Server) handleUntrackProduct(c *gin.Context) {
	userID := middleware.UserID(c)
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	if err := s.store.UntrackProductByID(c.Request.Context(), userID, uint(productID)); err != nil {
		if errors.Is(err, store.ErrNotTracked) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "untrack failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "untracked"})
}

// handleRefreshAll 手动触发一轮全量刷新。
func (s *Server) handleRefreshAll(c *gin.Context) {
	if s.sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}
	enqueued, err := s.sched.RefreshAll(c.Request.Context())
	if err != nil {
		s.logger.Error("manual refresh failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"enqueued": enqueued})
}

type notifyRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) handleToggleNotify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	if err := s.store.SetUserNotify(c.Request.Context(), userID, *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notify_on": *req.Enabled})
}
