package network

import (
	"encoding/json"
	"time"

	"github.com/anthive/worldsim/internal/eventbus"
)

// Типы кадров фида событий.
const (
	MsgHello   = "hello"   // клиент → сервер: JWT и фильтр типов
	MsgWelcome = "welcome" // сервер → клиент: подтверждение подписки
	MsgEvent   = "event"   // сервер → клиент: событие симуляции
	MsgPing    = "ping"    // клиент → сервер: проверка канала
	MsgPong    = "pong"    // сервер → клиент: ответ на ping
	MsgError   = "error"   // сервер → клиент: отказ (после него канал закрывается)
)

// Коды ошибок в ErrorPayload.Code.
const (
	ErrCodeUnauthorized = "unauthorized" // Невалидный или просроченный JWT
	ErrCodeBadMessage   = "bad_message"  // Неожиданный тип кадра
)

// Message — универсальный конверт кадра фида. Тип определяет, какое из
// полей полезной нагрузки заполнено; остальные остаются nil.
type Message struct {
	Type    string          `json:"type"`
	Seq     uint32          `json:"seq,omitempty"` // Порядковый номер событий в рамках соединения
	Hello   *HelloPayload   `json:"hello,omitempty"`
	Welcome *WelcomePayload `json:"welcome,omitempty"`
	Event   *EventPayload   `json:"event,omitempty"`
	Ping    *PingPayload    `json:"ping,omitempty"`
	Pong    *PongPayload    `json:"pong,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// HelloPayload — первый кадр соединения. Types пуст — подписка на все события.
type HelloPayload struct {
	Token string   `json:"token"`
	Types []string `json:"types,omitempty"`
}

// WelcomePayload подтверждает аутентификацию и параметры подписки.
type WelcomePayload struct {
	UserID     uint64   `json:"user_id"`
	Username   string   `json:"username"`
	Types      []string `json:"types,omitempty"` // Эхо фильтра из hello
	ServerTime int64    `json:"server_time"`     // UnixNano
}

// EventPayload — событие симуляции в развёрнутом виде. Data содержит
// JSON полезной нагрузки события как есть, без повторной сериализации.
type EventPayload struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Source    string          `json:"source"`
	Type      string          `json:"event_type"`
	Priority  int             `json:"priority"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PingPayload несёт клиентское время для замера RTT.
type PingPayload struct {
	ClientTime int64 `json:"client_time"` // UnixNano
}

// PongPayload возвращает клиентское время и добавляет серверное.
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
}

// ErrorPayload описывает причину отказа.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// eventFromEnvelope разворачивает конверт шины в кадр фида.
func eventFromEnvelope(ev *eventbus.Envelope) *EventPayload {
	return &EventPayload{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Source:    ev.Source,
		Type:      ev.EventType,
		Priority:  ev.Priority,
		Data:      ev.Payload,
	}
}
