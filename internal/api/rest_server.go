package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/anthive/worldsim/internal/auth"
	"github.com/anthive/worldsim/internal/eventbus"
	"github.com/anthive/worldsim/internal/logging"
	"github.com/anthive/worldsim/internal/middleware"
	"github.com/anthive/worldsim/internal/sim"
)

// RestServer — HTTP-интерфейс симуляции: аутентификация, чтение и
// изменение мира, администрирование снапшотов, WebSocket-фид.
type RestServer struct {
	router           *gin.Engine
	userRepo         auth.UserRepository
	runner           *sim.Runner
	bus              eventbus.EventBus
	port             string
	version          string
	metrics          *ServerMetrics
	webhookConfig    WebhookConfig
	outboundWebhooks *OutboundWebhookManager
	httpServer       *http.Server
	logger           *logging.Logger
}

// Config содержит зависимости REST сервера.
type Config struct {
	Port     string              // Адрес вида ":8088"
	UserRepo auth.UserRepository // Репозиторий пользователей
	Runner   *sim.Runner         // Симуляция
	Bus      eventbus.EventBus   // Шина событий (WebSocket-фид, webhooks)
	Version  string              // Версия сборки для /api/server
}

// NewRestServer собирает сервер с полным стеком middleware.
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger("/health", "/metrics")
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("rest_api"))

	promMw := middleware.NewPrometheusMiddleware("api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:   router,
		userRepo: config.UserRepo,
		runner:   config.Runner,
		bus:      config.Bus,
		port:     config.Port,
		version:  config.Version,
		metrics:  NewServerMetrics(),
		webhookConfig: WebhookConfig{
			SecretKey:        "", // Настраивается через SetWebhookSecret
			RequireSignature: false,
			EnableLogging:    true,
		},
		outboundWebhooks: NewOutboundWebhookManager("worldsim_01", "development", config.Bus),
		logger:           logging.GetAPILogger(),
	}

	server.setupRoutes()

	return server
}

// SetWebhookSecret включает обязательную HMAC-подпись входящих webhook'ов.
func (rs *RestServer) SetWebhookSecret(secret string) {
	rs.webhookConfig.SecretKey = secret
	rs.webhookConfig.RequireSignature = secret != ""
}

// OutboundWebhooks возвращает менеджер исходящих webhook'ов —
// для ручной отправки событий из встраивающего кода.
func (rs *RestServer) OutboundWebhooks() *OutboundWebhookManager {
	return rs.outboundWebhooks
}

// setupRoutes настраивает маршруты REST API.
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")

	// Аутентификация (без JWT)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", rs.handleLogin)
		authGroup.POST("/register", rs.handleRegister)
	}

	// Чтение мира и статистика — публичные
	api.GET("/stats", rs.handleStats)
	api.GET("/server", rs.handleServerInfo)

	worldGroup := api.Group("/world")
	{
		worldGroup.GET("/info", rs.handleWorldInfo)
		worldGroup.GET("/tile/:x/:y", rs.handleGetTile)
		worldGroup.GET("/query", rs.handleQuery)
		worldGroup.GET("/entities", rs.handleListEntities)
		worldGroup.GET("/entities/:id", rs.handleGetEntity)
		worldGroup.GET("/entities/:id/nearby", rs.handleNearby)
	}

	// Изменение мира — только с JWT
	mutate := api.Group("/world")
	mutate.Use(rs.jwtMiddleware())
	{
		mutate.POST("/entities", rs.handleSpawnEntity)
		mutate.DELETE("/entities/:id", rs.handleDespawnEntity)
		mutate.POST("/entities/:id/move", rs.handleMoveEntity)
		mutate.PUT("/tile/:x/:y", rs.handleSetTile)
		mutate.POST("/trail", rs.handlePaintTrail)
	}

	// Административные эндпоинты (JWT + права админа)
	admin := api.Group("/admin")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.POST("/register", rs.handleAdminRegister)
		admin.POST("/snapshot", rs.handleCreateSnapshot)
		admin.GET("/snapshots", rs.handleListSnapshots)
		admin.POST("/snapshots/:id/restore", rs.handleRestoreSnapshot)
		admin.DELETE("/snapshots/:id", rs.handleDeleteSnapshot)

		// Управление исходящими webhook'ами
		admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
		admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
		admin.GET("/webhooks/:id", rs.handleGetOutboundWebhook)
		admin.PUT("/webhooks/:id", rs.handleUpdateOutboundWebhook)
		admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
	}

	// Входящий webhook (без аутентификации, но с HMAC-валидацией)
	api.POST("/webhook", rs.HandleWebhook)

	// WebSocket-фид событий
	rs.router.GET("/ws/events", rs.handleWSEvents)

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
	UserID  uint64 `json:"user_id,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// RegisterRequest представляет запрос на регистрацию
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IsAdmin  bool   `json:"is_admin"` // Учитывается только в /api/admin/register
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	user, err := rs.userRepo.ValidateCredentials(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверное имя пользователя или пароль",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	token, err := auth.GenerateJWT(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Ошибка генерации токена",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Message: "Успешная авторизация",
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
	})
}

// handleRegister регистрирует обычного пользователя. Флаг is_admin
// игнорируется: админов создаёт только /api/admin/register.
func (rs *RestServer) handleRegister(c *gin.Context) {
	rs.registerUser(c, false)
}

// handleAdminRegister регистрирует пользователя с произвольными правами.
func (rs *RestServer) handleAdminRegister(c *gin.Context) {
	rs.registerUser(c, true)
}

func (rs *RestServer) registerUser(c *gin.Context, allowAdmin bool) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 30 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Имя пользователя должно быть от 3 до 30 символов",
		})
		return
	}

	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Пароль должен быть минимум 6 символов",
		})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка обработки пароля",
		})
		return
	}

	isAdmin := req.IsAdmin && allowAdmin
	user, err := rs.userRepo.CreateUser(req.Username, passwordHash, isAdmin)
	if errors.Is(err, auth.ErrUserExists) {
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: "Пользователь уже существует",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка создания пользователя",
		})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Пользователь успешно создан",
		Data: map[string]interface{}{
			"user_id":  user.ID,
			"username": user.Username,
			"is_admin": user.IsAdmin,
		},
	})
}

// handleStats возвращает статистику симуляции и процесса.
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	if rs.runner != nil {
		stats["sim"] = rs.runner.Stats()
	}

	// Статистика пользователей (если репозиторий её умеет)
	if mariaRepo, ok := rs.userRepo.(*auth.MariaUserRepo); ok {
		if userStats, err := mariaRepo.GetUserStats(); err == nil {
			stats["users"] = userStats
		}
	}

	stats["server"] = rs.metrics.Summary()
	stats["memory_details"] = rs.metrics.MemoryDetails()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleServerInfo возвращает краткую информацию о сервере.
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB := rs.metrics.MemoryMB()
	cpuPercent, _ := rs.metrics.ProcessCPU()

	info := map[string]interface{}{
		"version":     rs.version,
		"name":        "WorldSim Server",
		"status":      "running",
		"uptime":      rs.metrics.Uptime(),
		"memory_mb":   memoryMB,
		"cpu_percent": cpuPercent,
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Router возвращает gin-движок (для httptest).
func (rs *RestServer) Router() http.Handler {
	return rs.router
}

// Start поднимает HTTP-сервер в фоне.
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:    rs.port,
		Handler: rs.router,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rs.logger.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	rs.logger.Info("✅ REST API запущен на http://localhost%s", rs.port)
	rs.logger.Info("📋 Основные эндпоинты:")
	rs.logger.Info("   GET  /health                  - Проверка состояния")
	rs.logger.Info("   POST /api/auth/login          - Вход в систему")
	rs.logger.Info("   GET  /api/world/info          - Параметры мира")
	rs.logger.Info("   GET  /api/world/tile/:x/:y    - Чтение тайла")
	rs.logger.Info("   POST /api/world/entities      - Создание сущности (JWT)")
	rs.logger.Info("   POST /api/admin/snapshot      - Снапшот мира (админ)")
	rs.logger.Info("   GET  /ws/events               - WebSocket-фид событий")

	return nil
}

// Stop останавливает HTTP-сервер с ожиданием активных запросов.
func (rs *RestServer) Stop() error {
	rs.outboundWebhooks.Stop()

	if rs.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rs.httpServer.Shutdown(ctx); err != nil {
		rs.logger.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		return err
	}

	rs.logger.Info("✅ REST API сервер остановлен")
	return nil
}
