package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/anthive/worldsim/internal/eventbus"
	"github.com/anthive/worldsim/internal/logging"
)

// OutboundWebhook — внешний HTTP-потребитель событий мира.
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // Типы событий, "*" — все
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Таймаут в секундах
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent — событие в формате доставки внешним системам.
type OutboundWebhookEvent struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	Timestamp   int64           `json:"timestamp"`
	ServerID    string          `json:"server_id"`
	Data        json.RawMessage `json:"data"`
	Source      string          `json:"source"`
	Environment string          `json:"environment"`
}

// OutboundWebhookManager ретранслирует события шины внешним HTTP-потребителям.
// Подписывается на все типы событий; фильтрация — по спискам Events
// зарегистрированных webhook'ов.
type OutboundWebhookManager struct {
	webhooks    map[uint64]*OutboundWebhook
	eventQueue  chan OutboundWebhookEvent
	mu          sync.RWMutex
	nextID      uint64
	httpClient  *http.Client
	serverID    string
	environment string
	sub         eventbus.Subscription
	ctx         context.Context
	cancel      context.CancelFunc
	sem         *semaphore.Weighted // ограничивает параллельные доставки
	logger      *logging.Logger
}

// maxConcurrentDeliveries — верхняя граница одновременных HTTP-доставок.
// Медленный потребитель с повторами не должен плодить горутины без предела.
const maxConcurrentDeliveries = 8

// NewOutboundWebhookManager создаёт менеджер и подписывает его на шину.
// Нулевая шина допустима: остаётся только ручная отправка через SendEvent.
func NewOutboundWebhookManager(serverID, environment string, bus eventbus.EventBus) *OutboundWebhookManager {
	ctx, cancel := context.WithCancel(context.Background())

	manager := &OutboundWebhookManager{
		webhooks:    make(map[uint64]*OutboundWebhook),
		eventQueue:  make(chan OutboundWebhookEvent, 1000),
		nextID:      1,
		serverID:    serverID,
		environment: environment,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(maxConcurrentDeliveries),
		logger: logging.GetAPILogger(),
	}

	go manager.eventWorker()

	if bus != nil {
		sub, err := bus.Subscribe(ctx, eventbus.Filter{}, manager.onBusEvent)
		if err != nil {
			manager.logger.Warn("⚠️ Менеджер webhook'ов не смог подписаться на шину: %v", err)
		} else {
			manager.sub = sub
		}
	}

	return manager
}

// Stop отписывается от шины и останавливает воркера.
func (owm *OutboundWebhookManager) Stop() {
	owm.cancel()
	if owm.sub != nil {
		owm.sub.Unsubscribe()
	}
	close(owm.eventQueue)
}

// onBusEvent перекладывает событие шины в очередь доставки.
func (owm *OutboundWebhookManager) onBusEvent(_ context.Context, ev *eventbus.Envelope) {
	// События, пришедшие через входящий webhook, наружу не ретранслируем —
	// иначе пара интеграций может зациклить друг друга.
	if strings.HasPrefix(ev.EventType, "webhook.") {
		return
	}
	if !owm.hasActiveWebhooks() {
		return
	}

	event := OutboundWebhookEvent{
		EventID:     ev.ID,
		EventType:   ev.EventType,
		Timestamp:   ev.Timestamp.Unix(),
		ServerID:    owm.serverID,
		Data:        ev.Payload,
		Source:      ev.Source,
		Environment: owm.environment,
	}

	select {
	case owm.eventQueue <- event:
	default:
		owm.logger.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

func (owm *OutboundWebhookManager) hasActiveWebhooks() bool {
	owm.mu.RLock()
	defer owm.mu.RUnlock()
	for _, webhook := range owm.webhooks {
		if webhook.Active {
			return true
		}
	}
	return false
}

// AddWebhook регистрирует нового потребителя событий.
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true

	if webhook.Timeout == 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount == 0 {
		webhook.RetryCount = 3
	}

	owm.webhooks[webhook.ID] = &webhook
	return &webhook
}

// GetWebhooks возвращает список всех webhook'ов.
func (owm *OutboundWebhookManager) GetWebhooks() []*OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhooks := make([]*OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		webhooks = append(webhooks, webhook)
	}
	return webhooks
}

// GetWebhook возвращает webhook по ID.
func (owm *OutboundWebhookManager) GetWebhook(id uint64) *OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return nil
	}
	return webhook
}

// UpdateWebhook обновляет непустые поля webhook'а.
func (owm *OutboundWebhookManager) UpdateWebhook(id uint64, updates OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return nil
	}

	if updates.Name != "" {
		webhook.Name = updates.Name
	}
	if updates.URL != "" {
		webhook.URL = updates.URL
	}
	if updates.Secret != "" {
		webhook.Secret = updates.Secret
	}
	if len(updates.Events) > 0 {
		webhook.Events = updates.Events
	}
	if updates.Timeout > 0 {
		webhook.Timeout = updates.Timeout
	}
	if updates.RetryCount >= 0 {
		webhook.RetryCount = updates.RetryCount
	}
	webhook.Active = updates.Active

	return webhook
}

// DeleteWebhook удаляет webhook.
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	_, exists := owm.webhooks[id]
	if !exists {
		return false
	}

	delete(owm.webhooks, id)
	return true
}

// SendEvent кладёт событие в очередь доставки вручную, минуя шину.
// Используется тестовым эндпоинтом.
func (owm *OutboundWebhookManager) SendEvent(eventType string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		owm.logger.Error("❌ Ошибка маршалинга события %s: %v", eventType, err)
		return
	}

	event := OutboundWebhookEvent{
		EventType:   eventType,
		Timestamp:   time.Now().Unix(),
		ServerID:    owm.serverID,
		Data:        payload,
		Source:      "manual",
		Environment: owm.environment,
	}

	select {
	case owm.eventQueue <- event:
		owm.logger.Debug("📤 Событие %s добавлено в очередь webhook'ов", eventType)
	default:
		owm.logger.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", eventType)
	}
}

// eventWorker обрабатывает события из очереди.
func (owm *OutboundWebhookManager) eventWorker() {
	for event := range owm.eventQueue {
		owm.processEvent(event)
	}
}

// processEvent рассылает одно событие всем подписанным webhook'ам.
func (owm *OutboundWebhookManager) processEvent(event OutboundWebhookEvent) {
	owm.mu.RLock()
	webhooks := make([]*OutboundWebhook, 0)
	for _, webhook := range owm.webhooks {
		if webhook.Active && owm.isSubscribedToEvent(webhook, event.EventType) {
			webhooks = append(webhooks, webhook)
		}
	}
	owm.mu.RUnlock()

	for _, webhook := range webhooks {
		// Acquire возвращает ошибку только при отмене контекста — на Stop.
		if err := owm.sem.Acquire(owm.ctx, 1); err != nil {
			return
		}
		wh := webhook
		go func() {
			defer owm.sem.Release(1)
			owm.sendToWebhook(wh, event)
		}()
	}
}

// isSubscribedToEvent проверяет, подписан ли webhook на событие.
func (owm *OutboundWebhookManager) isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribedEvent := range webhook.Events {
		if subscribedEvent == eventType || subscribedEvent == "*" {
			return true
		}
	}
	return false
}

// sendToWebhook доставляет событие конкретному webhook'у с повторами.
func (owm *OutboundWebhookManager) sendToWebhook(webhook *OutboundWebhook, event OutboundWebhookEvent) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		owm.logger.Error("❌ Ошибка маршалинга события для webhook %s: %v", webhook.Name, err)
		return
	}

	var signature string
	if webhook.Secret != "" {
		signature = owm.generateSignature(jsonData, webhook.Secret)
	}

	success := false
	for attempt := 0; attempt <= webhook.RetryCount; attempt++ {
		// Запрос создаётся на каждую попытку: тело уже вычитано после Do
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
		req, err := http.NewRequestWithContext(ctx, "POST", webhook.URL, bytes.NewReader(jsonData))
		if err != nil {
			cancel()
			owm.logger.Error("❌ Ошибка создания запроса для webhook %s: %v", webhook.Name, err)
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "WorldSim-Server/1.0")
		req.Header.Set("X-Event-Type", event.EventType)
		req.Header.Set("X-Server-ID", event.ServerID)
		if signature != "" {
			req.Header.Set("X-Webhook-Signature", signature)
		}

		resp, err := owm.httpClient.Do(req)
		cancel()
		if err != nil {
			owm.logger.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, webhook.RetryCount+1, webhook.Name, err)
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			success = true
			owm.logger.Debug("✅ Событие %s доставлено в webhook %s", event.EventType, webhook.Name)
			resp.Body.Close()
			break
		}

		owm.logger.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", webhook.Name, resp.StatusCode, attempt+1)
		resp.Body.Close()
		if attempt < webhook.RetryCount {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	owm.mu.Lock()
	now := time.Now()
	webhook.LastUsed = &now
	if !success {
		webhook.FailureCount++
	}
	owm.mu.Unlock()
}

// generateSignature генерирует HMAC-SHA256 подпись тела.
func (owm *OutboundWebhookManager) generateSignature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// GetEventTypes возвращает типы событий, на которые можно подписаться.
func (owm *OutboundWebhookManager) GetEventTypes() []string {
	return []string{
		eventbus.EventWorldTick,
		eventbus.EventEntitySpawned,
		eventbus.EventEntityDespawned,
		eventbus.EventEntityMoved,
		eventbus.EventTileUpdated,
		eventbus.EventTrailPainted,
		eventbus.EventWorldSnapshot,
		"*",
	}
}

// === Обработчики администрирования webhook'ов ===

// handleGetOutboundWebhooks возвращает список исходящих webhook'ов
func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	webhooks := rs.outboundWebhooks.GetWebhooks()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список webhook'ов получен",
		Data: map[string]interface{}{
			"webhooks":    webhooks,
			"total":       len(webhooks),
			"event_types": rs.outboundWebhooks.GetEventTypes(),
		},
	})
}

// handleCreateOutboundWebhook создает новый исходящий webhook
func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var webhook OutboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат webhook'а: " + err.Error(),
		})
		return
	}

	if webhook.Name == "" || webhook.URL == "" || len(webhook.Events) == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Обязательные поля: name, url, events",
		})
		return
	}

	createdWebhook := rs.outboundWebhooks.AddWebhook(webhook)

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Webhook создан успешно",
		Data:    createdWebhook,
	})
}

// handleGetOutboundWebhook возвращает webhook по ID
func (rs *RestServer) handleGetOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	webhook := rs.outboundWebhooks.GetWebhook(id)
	if webhook == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook найден",
		Data:    webhook,
	})
}

// handleUpdateOutboundWebhook обновляет webhook
func (rs *RestServer) handleUpdateOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	var updates OutboundWebhook
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат обновлений: " + err.Error(),
		})
		return
	}

	updatedWebhook := rs.outboundWebhooks.UpdateWebhook(id, updates)
	if updatedWebhook == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook обновлен успешно",
		Data:    updatedWebhook,
	})
}

// handleDeleteOutboundWebhook удаляет webhook
func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	if !rs.outboundWebhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook удален успешно",
	})
}
