package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/anthive/worldsim/internal/auth"
	"github.com/anthive/worldsim/internal/eventbus"
	"github.com/anthive/worldsim/internal/logging"
)

const (
	helloTimeout         = 5 * time.Second        // Время на первый кадр после соединения
	readPollInterval     = 100 * time.Millisecond // Период опроса входящих кадров
	sendBufferSize       = 256                    // Буфер исходящих кадров на клиента
	defaultClientTimeout = 30 * time.Second       // Отключение молчащих клиентов
	defaultSweepInterval = 5 * time.Second        // Период проверки таймаутов
)

// FeedServer раздаёт события симуляции по KCP. Клиент после соединения
// присылает hello с JWT, получает welcome и дальше — поток событий,
// отфильтрованный по типам из hello.
type FeedServer struct {
	addr     string
	listener net.Listener
	users    auth.UserRepository
	bus      eventbus.EventBus
	framer   *Framer
	metrics  *FeedMetrics

	clients   map[string]*feedClient
	clientsMu sync.RWMutex

	// KCP не сигнализирует закрытие: мёртвые клиенты снимаются по таймауту.
	clientTimeout time.Duration
	sweepInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logging.Logger
}

// feedClient хранит состояние одного подписчика фида.
type feedClient struct {
	id       string
	userID   uint64
	username string
	sess     *kcp.UDPSession
	send     chan *Message
	seq      uint32
	lastSeen int64 // UnixNano последнего входящего кадра, только atomic-доступ

	ctx    context.Context
	cancel context.CancelFunc
	sub    eventbus.Subscription
}

// NewFeedServer создаёт сервер фида событий.
func NewFeedServer(addr string, users auth.UserRepository, bus eventbus.EventBus) (*FeedServer, error) {
	framer, err := NewFramer()
	if err != nil {
		return nil, fmt.Errorf("создание кодека кадров: %w", err)
	}

	return &FeedServer{
		addr:          addr,
		users:         users,
		bus:           bus,
		framer:        framer,
		metrics:       NewFeedMetrics(),
		clients:       make(map[string]*feedClient),
		clientTimeout: defaultClientTimeout,
		sweepInterval: defaultSweepInterval,
		logger:        logging.GetNetworkLogger(),
	}, nil
}

// Start запускает KCP-листенер и цикл приёма соединений.
func (fs *FeedServer) Start() error {
	listener, err := kcp.ListenWithOptions(fs.addr, nil, 0, 0)
	if err != nil {
		return fmt.Errorf("listen %s: %w", fs.addr, err)
	}

	fs.listener = listener
	fs.ctx, fs.cancel = context.WithCancel(context.Background())

	fs.wg.Add(2)
	go fs.acceptLoop()
	go fs.timeoutLoop()

	fs.logger.Info("🚀 Фид событий запущен на kcp://%s", listener.Addr())
	return nil
}

// Addr возвращает фактический адрес листенера (для addr с портом 0).
func (fs *FeedServer) Addr() string {
	if fs.listener == nil {
		return fs.addr
	}
	return fs.listener.Addr().String()
}

// Stop останавливает сервер и отключает всех клиентов.
func (fs *FeedServer) Stop() error {
	if fs.cancel != nil {
		fs.cancel()
	}

	if fs.listener != nil {
		fs.listener.Close()
	}

	fs.wg.Wait()

	fs.clientsMu.Lock()
	for id, client := range fs.clients {
		client.sess.Close()
		delete(fs.clients, id)
	}
	fs.clientsMu.Unlock()

	if err := fs.framer.Close(); err != nil {
		fs.logger.Error("❌ Ошибка закрытия кодека: %v", err)
	}

	fs.logger.Info("🛑 Фид событий остановлен")
	return nil
}

// ClientCount возвращает число активных подписчиков.
func (fs *FeedServer) ClientCount() int {
	fs.clientsMu.RLock()
	defer fs.clientsMu.RUnlock()
	return len(fs.clients)
}

// Stats возвращает снимок метрик фида.
func (fs *FeedServer) Stats() *FeedMetrics {
	return fs.metrics.Snapshot()
}

// acceptLoop принимает входящие соединения.
func (fs *FeedServer) acceptLoop() {
	defer fs.wg.Done()

	for {
		conn, err := fs.listener.Accept()
		if err != nil {
			select {
			case <-fs.ctx.Done():
				return // Сервер останавливается
			default:
				fs.logger.Error("❌ Ошибка приёма соединения: %v", err)
				continue
			}
		}

		fs.wg.Add(1)
		go fs.handleConn(conn)
	}
}

// handleConn проводит рукопожатие и запускает циклы обмена.
func (fs *FeedServer) handleConn(conn net.Conn) {
	defer fs.wg.Done()

	sess, ok := conn.(*kcp.UDPSession)
	if !ok {
		fs.logger.Error("❌ Неожиданный тип соединения: %T", conn)
		conn.Close()
		return
	}

	tuneSession(sess)

	client, err := fs.handshake(sess)
	if err != nil {
		fs.logger.Warn("⚠️ Рукопожатие с %s отклонено: %v", sess.RemoteAddr(), err)
		sess.Close()
		return
	}

	fs.clientsMu.Lock()
	fs.clients[client.id] = client
	fs.clientsMu.Unlock()

	fs.metrics.ConnectionOpened()
	fs.logger.Info("🔗 Клиент фида подключен: %s (user=%s)", client.id, client.username)

	fs.wg.Add(1)
	go fs.sendLoop(client)

	fs.readLoop(client)
	fs.disconnectClient(client.id)
}

// handshake читает hello, проверяет JWT и отвечает welcome.
// Возвращённый клиент уже подписан на шину событий.
func (fs *FeedServer) handshake(sess *kcp.UDPSession) (*feedClient, error) {
	sess.SetReadDeadline(time.Now().Add(helloTimeout))
	msg, n, err := fs.framer.ReadFrame(sess)
	if err != nil {
		return nil, fmt.Errorf("чтение hello: %w", err)
	}
	fs.metrics.RecordReceived(n)

	if msg.Type != MsgHello || msg.Hello == nil {
		fs.writeError(sess, ErrCodeBadMessage, "ожидался hello")
		return nil, fmt.Errorf("первый кадр %q вместо hello", msg.Type)
	}

	claims, err := auth.ParseJWT(msg.Hello.Token)
	if err != nil {
		fs.metrics.RecordAuthFailure()
		fs.writeError(sess, ErrCodeUnauthorized, "невалидный токен")
		return nil, fmt.Errorf("проверка токена: %w", err)
	}

	user, err := fs.users.GetUserByID(claims.UserID)
	if err != nil {
		fs.metrics.RecordAuthFailure()
		fs.writeError(sess, ErrCodeUnauthorized, "пользователь не найден")
		return nil, fmt.Errorf("пользователь %d: %w", claims.UserID, err)
	}

	ctx, cancel := context.WithCancel(fs.ctx)
	client := &feedClient{
		id:       fmt.Sprintf("feed-%s-%d", sess.RemoteAddr(), time.Now().UnixNano()),
		userID:   user.ID,
		username: user.Username,
		sess:     sess,
		send:     make(chan *Message, sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	atomic.StoreInt64(&client.lastSeen, time.Now().UnixNano())

	// Подписка до welcome: клиент не должен терять события,
	// опубликованные сразу после подтверждения.
	if fs.bus != nil {
		sub, err := fs.bus.Subscribe(ctx, eventbus.Filter{Types: msg.Hello.Types}, client.onEvent(fs.metrics))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("подписка на шину: %w", err)
		}
		client.sub = sub
	}

	welcome := &Message{
		Type: MsgWelcome,
		Welcome: &WelcomePayload{
			UserID:     user.ID,
			Username:   user.Username,
			Types:      msg.Hello.Types,
			ServerTime: time.Now().UnixNano(),
		},
	}
	wn, err := fs.framer.WriteFrame(sess, welcome)
	if err != nil {
		cancel()
		if client.sub != nil {
			client.sub.Unsubscribe()
		}
		return nil, fmt.Errorf("отправка welcome: %w", err)
	}
	fs.metrics.RecordSent("", wn)

	return client, nil
}

// onEvent возвращает обработчик шины, складывающий события в буфер клиента.
// Переполненный буфер — медленный клиент; событие выбрасывается.
func (c *feedClient) onEvent(metrics *FeedMetrics) eventbus.Handler {
	return func(ctx context.Context, ev *eventbus.Envelope) {
		msg := &Message{
			Type:  MsgEvent,
			Seq:   atomic.AddUint32(&c.seq, 1),
			Event: eventFromEnvelope(ev),
		}
		select {
		case c.send <- msg:
		default:
			metrics.RecordDrop()
		}
	}
}

// sendLoop пишет кадры из буфера клиента в соединение.
func (fs *FeedServer) sendLoop(client *feedClient) {
	defer fs.wg.Done()

	for {
		select {
		case <-client.ctx.Done():
			return
		case msg := <-client.send:
			n, err := fs.framer.WriteFrame(client.sess, msg)
			if err != nil {
				fs.logger.Warn("⚠️ Ошибка отправки клиенту %s: %v", client.id, err)
				client.cancel()
				return
			}

			eventType := ""
			if msg.Event != nil {
				eventType = msg.Event.Type
			}
			fs.metrics.RecordSent(eventType, n)
		}
	}
}

// readLoop опрашивает входящие кадры (ping и прочую служебку).
func (fs *FeedServer) readLoop(client *feedClient) {
	for {
		select {
		case <-client.ctx.Done():
			return
		default:
		}

		client.sess.SetReadDeadline(time.Now().Add(readPollInterval))
		msg, n, err := fs.framer.ReadFrame(client.sess)
		if err != nil {
			if err == ErrReadTimeout {
				continue
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				// Не обычное закрытие — поток рассинхронизирован или кадр битый
				logging.LogProtocolError(client.id, err, nil)
			}
			fs.logger.Debug("Клиент %s: чтение завершено: %v", client.id, err)
			return
		}

		fs.metrics.RecordReceived(n)
		atomic.StoreInt64(&client.lastSeen, time.Now().UnixNano())

		switch msg.Type {
		case MsgPing:
			pong := &Message{Type: MsgPong, Pong: &PongPayload{ServerTime: time.Now().UnixNano()}}
			if msg.Ping != nil {
				pong.Pong.ClientTime = msg.Ping.ClientTime
			}
			select {
			case client.send <- pong:
			default:
				// Буфер забит — клиент и так не читает
			}
		default:
			logging.DumpFrame(client.id, "RECV", msg.Type, nil)
			select {
			case client.send <- &Message{Type: MsgError, Error: &ErrorPayload{
				Code:    ErrCodeBadMessage,
				Message: fmt.Sprintf("неожиданный кадр %q", msg.Type),
			}}:
			default:
			}
		}
	}
}

// timeoutLoop отключает молчащих клиентов.
func (fs *FeedServer) timeoutLoop() {
	defer fs.wg.Done()

	ticker := time.NewTicker(fs.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.ctx.Done():
			return
		case <-ticker.C:
			fs.checkTimeouts()
		}
	}
}

func (fs *FeedServer) checkTimeouts() {
	now := time.Now().UnixNano()

	fs.clientsMu.RLock()
	var stale []*feedClient
	for _, client := range fs.clients {
		if now-atomic.LoadInt64(&client.lastSeen) > int64(fs.clientTimeout) {
			stale = append(stale, client)
		}
	}
	fs.clientsMu.RUnlock()

	for _, client := range stale {
		fs.logger.Warn("⏱️ Клиент %s молчит дольше %s, отключаем", client.id, fs.clientTimeout)
		client.cancel()
		client.sess.Close()
	}
}

// disconnectClient снимает подписку и убирает клиента из реестра.
func (fs *FeedServer) disconnectClient(id string) {
	fs.clientsMu.Lock()
	client, ok := fs.clients[id]
	if ok {
		delete(fs.clients, id)
	}
	fs.clientsMu.Unlock()

	if !ok {
		return
	}

	client.cancel()
	if client.sub != nil {
		client.sub.Unsubscribe()
	}
	client.sess.Close()

	fs.metrics.ConnectionClosed()
	fs.logger.Info("👋 Клиент фида отключен: %s", id)
}

// writeError отправляет кадр ошибки, игнорируя проблемы записи:
// соединение всё равно закрывается.
func (fs *FeedServer) writeError(sess *kcp.UDPSession, code, message string) {
	frame := &Message{Type: MsgError, Error: &ErrorPayload{Code: code, Message: message}}
	if n, err := fs.framer.WriteFrame(sess, frame); err == nil {
		fs.metrics.RecordSent("", n)
	}
}

// tuneSession настраивает KCP-сессию под трафик фида: поток небольших
// кадров с приоритетом задержки над пропускной способностью.
func tuneSession(sess *kcp.UDPSession) {
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 20, 2, 1)
	sess.SetWindowSize(512, 512)
	sess.SetMtu(1400)
}
