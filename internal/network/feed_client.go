package network

import (
	"fmt"
	"time"

	"github.com/xtaci/kcp-go/v5"
)

// FeedClient — минимальный клиент фида: рукопожатие и последовательное
// чтение кадров. Используется CLI-утилитой и тестами.
type FeedClient struct {
	sess   *kcp.UDPSession
	framer *Framer
}

// DialFeed устанавливает KCP-соединение с фидом.
func DialFeed(addr string) (*FeedClient, error) {
	sess, err := kcp.DialWithOptions(addr, nil, 10, 3)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	tuneSession(sess)

	framer, err := NewFramer()
	if err != nil {
		sess.Close()
		return nil, err
	}

	return &FeedClient{sess: sess, framer: framer}, nil
}

// Hello отправляет токен и фильтр типов, ждёт welcome.
// Кадр error вместо welcome возвращается как ошибка с кодом сервера.
func (fc *FeedClient) Hello(token string, types ...string) (*WelcomePayload, error) {
	hello := &Message{Type: MsgHello, Hello: &HelloPayload{Token: token, Types: types}}
	if _, err := fc.framer.WriteFrame(fc.sess, hello); err != nil {
		return nil, err
	}

	msg, err := fc.Next(helloTimeout)
	if err != nil {
		return nil, fmt.Errorf("ожидание welcome: %w", err)
	}

	switch {
	case msg.Type == MsgWelcome && msg.Welcome != nil:
		return msg.Welcome, nil
	case msg.Type == MsgError && msg.Error != nil:
		return nil, fmt.Errorf("сервер отклонил подписку: %s (%s)", msg.Error.Message, msg.Error.Code)
	default:
		return nil, fmt.Errorf("неожиданный кадр %q вместо welcome", msg.Type)
	}
}

// Next читает следующий кадр, ожидая его не дольше timeout.
func (fc *FeedClient) Next(timeout time.Duration) (*Message, error) {
	fc.sess.SetReadDeadline(time.Now().Add(timeout))
	msg, _, err := fc.framer.ReadFrame(fc.sess)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Ping отправляет ping с текущим временем. Ответный pong придёт через Next.
func (fc *FeedClient) Ping() error {
	ping := &Message{Type: MsgPing, Ping: &PingPayload{ClientTime: time.Now().UnixNano()}}
	_, err := fc.framer.WriteFrame(fc.sess, ping)
	return err
}

// Close закрывает соединение и кодек.
func (fc *FeedClient) Close() error {
	err := fc.sess.Close()
	fc.framer.Close()
	return err
}
