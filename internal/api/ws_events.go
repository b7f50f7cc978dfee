package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/anthive/worldsim/internal/eventbus"
)

// Конфигурация WebSocket
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене следует ограничить доступ
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second // должен быть меньше wsPongWait
	wsSendBuffer = 64
)

// handleWSEvents превращает HTTP-запрос в WebSocket-подписку на шину
// событий. Параметр types ограничивает типы событий (через запятую),
// пустой — все. Медленный клиент отключается, а не тормозит шину.
func (rs *RestServer) handleWSEvents(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Шина событий не подключена",
		})
		return
	}

	var types []string
	if raw := c.Query("types"); raw != "" {
		types = strings.Split(raw, ",")
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade сам отправил клиенту ответ с ошибкой
		rs.logger.Warn("⚠️ Не удалось обновить соединение до WebSocket: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	send := make(chan []byte, wsSendBuffer)

	sub, err := rs.bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		select {
		case send <- data:
		default:
			cancel() // буфер переполнен — клиент не успевает
		}
	})
	if err != nil {
		rs.logger.Error("❌ Подписка WebSocket-клиента не удалась: %v", err)
		cancel()
		conn.Close()
		return
	}

	rs.logger.Info("🔌 WebSocket-клиент подключен: %s (types=%v)", conn.RemoteAddr(), types)

	go rs.wsWritePump(ctx, conn, send)
	rs.wsReadPump(conn)

	// Читающий насос завершился — клиент ушёл
	cancel()
	sub.Unsubscribe()
	conn.Close()
	rs.logger.Info("🔌 WebSocket-клиент отключен: %s", conn.RemoteAddr())
}

// wsReadPump вычитывает входящие кадры ради pong и close; полезной
// нагрузки от клиента фид не ожидает.
func (rs *RestServer) wsReadPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rs.logger.Debug("WebSocket-клиент %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
	}
}

// wsWritePump отправляет события и пинги клиенту.
func (rs *RestServer) wsWritePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
