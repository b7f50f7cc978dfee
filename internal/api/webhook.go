package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anthive/worldsim/internal/eventbus"
)

// WebhookEvent — входящее событие от внешней системы.
type WebhookEvent struct {
	EventType string                 `json:"event_type"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source,omitempty"`
}

// WebhookConfig — конфигурация входящих webhook'ов.
type WebhookConfig struct {
	SecretKey        string // Секрет для HMAC-подписи
	RequireSignature bool   // Отклонять запросы без валидной подписи
	EnableLogging    bool
}

// HandleWebhook принимает событие от внешней системы и публикует его
// на шину с типом webhook.<event_type>. Подпись проверяется по сырому
// телу запроса до десериализации.
func (rs *RestServer) HandleWebhook(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Требуется Content-Type: application/json",
		})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Не удалось прочитать тело запроса",
		})
		return
	}

	if rs.webhookConfig.RequireSignature {
		signature := c.GetHeader("X-Webhook-Signature")
		if !rs.verifyWebhookSignature(body, signature) {
			c.JSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительная подпись",
			})
			return
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат события: " + err.Error(),
		})
		return
	}
	if event.EventType == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Поле event_type обязательно",
		})
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if event.Source == "" {
		event.Source = "webhook"
	}

	if rs.webhookConfig.EnableLogging {
		rs.logger.Info("📧 Webhook событие: %s от %s", event.EventType, c.ClientIP())
	}

	busType := "webhook." + event.EventType
	if err := eventbus.PublishEvent(c.Request.Context(), busType, event.Source, 5, event.Data); err != nil {
		rs.logger.Error("❌ Не удалось опубликовать webhook-событие %s: %v", busType, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка публикации события",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook обработан",
		Data: map[string]interface{}{
			"event_id":     fmt.Sprintf("%d_%s", event.Timestamp, event.EventType),
			"bus_type":     busType,
			"processed_at": time.Now().Unix(),
		},
	})
}

// verifyWebhookSignature сверяет HMAC-SHA256 подпись тела запроса.
// Формат заголовка: sha256=<hex>.
func (rs *RestServer) verifyWebhookSignature(body []byte, signature string) bool {
	if rs.webhookConfig.SecretKey == "" {
		return true // Секрет не настроен — проверка выключена
	}

	mac := hmac.New(sha256.New, []byte(rs.webhookConfig.SecretKey))
	mac.Write(body)
	expectedSignature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}
