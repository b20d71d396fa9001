package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/canary-bridge/internal/bridge"
	"go.uber.org/zap"
)

// Server는 플랫폼 연동용 HTTP API 서버입니다
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	router     *gin.Engine
	port       int

	provider         bridge.Provider
	websocketHandler func(http.ResponseWriter, *http.Request)
}

// ServerConfig는 API 서버 설정
type ServerConfig struct {
	Port             int
	Production       bool
	Logger           *zap.Logger
	Provider         bridge.Provider
	WebSocketHandler func(http.ResponseWriter, *http.Request)
}

// NewServer creates a new API server.
func NewServer(config ServerConfig) *Server {
	if !config.Production {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggerMiddleware(config.Logger))

	server := &Server{
		logger:           config.Logger,
		router:           router,
		port:             config.Port,
		provider:         config.Provider,
		websocketHandler: config.WebSocketHandler,
	}

	server.setupRoutes()

	return server
}

// setupRoutes는 라우트를 설정합니다
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/entities", s.handleEntities)
		v1.GET("/sensor/:id", s.handleSensor)
		v1.GET("/camera/:id/image", s.handleCameraImage)
		v1.GET("/camera/:id/stream", s.handleCameraStream)
		v1.POST("/sync", s.handleSync)
	}

	if s.websocketHandler != nil {
		s.router.GET("/ws", gin.WrapF(s.websocketHandler))
	}
}

// Start starts the API server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("Starting API server",
		zap.String("addr", addr),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop은 API 서버를 종료합니다
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if s.httpServer != nil {
		return s.httpServer.Close()
	}

	return nil
}

// handleHealth는 헬스 체크를 처리합니다
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"cameras": len(s.provider.Cameras()),
		"sensors": len(s.provider.Sensors()),
	})
}

// handleEntities returns the current state of every entity.
func (s *Server) handleEntities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"entities": s.provider.States(),
	})
}

// handleSensor returns the state of one sensor entity.
func (s *Server) handleSensor(c *gin.Context) {
	sensor, exists := s.provider.GetSensor(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unique_id":  sensor.UniqueID(),
		"name":       sensor.Name(),
		"state":      sensor.NativeValue(),
		"unit":       sensor.Unit(),
		"attributes": sensor.ExtraAttributes(),
	})
}

// handleCameraImage returns a still image from a camera, or 404 when no
// strategy yielded one.
func (s *Server) handleCameraImage(c *gin.Context) {
	cam, exists := s.provider.GetCamera(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	width, _ := strconv.Atoi(c.Query("width"))
	height, _ := strconv.Atoi(c.Query("height"))

	image := cam.Image(c.Request.Context(), width, height)
	if image == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no image available"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", image)
}

// handleCameraStream proxies the MJPEG live stream of a camera.
func (s *Server) handleCameraStream(c *gin.Context) {
	cam, exists := s.provider.GetCamera(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	cam.ServeMJPEG(c.Writer, c.Request)
}

// handleSync forces a snapshot refresh.
func (s *Server) handleSync(c *gin.Context) {
	if err := s.provider.ManualSync(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// corsMiddleware는 CORS 미들웨어입니다
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// loggerMiddleware는 로깅 미들웨어입니다
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
