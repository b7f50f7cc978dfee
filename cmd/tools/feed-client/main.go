package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthive/worldsim/internal/network"
)

// Тестовый клиент KCP-фида: логинится через REST, подписывается на
// события и печатает их до Ctrl+C. Полезен для проверки сервера без
// полноценного потребителя.

func main() {
	var (
		restURL  = flag.String("rest", "http://localhost:8088", "адрес REST API для логина")
		feedAddr = flag.String("feed", "localhost:7777", "адрес KCP-фида")
		username = flag.String("user", "test", "имя пользователя")
		password = flag.String("pass", "test", "пароль")
		types    = flag.String("types", "", "фильтр типов событий (через запятую)")
		count    = flag.Int("count", 0, "сколько событий прочитать (0 — до Ctrl+C)")
	)
	flag.Parse()

	fmt.Println("=== КЛИЕНТ ФИДА СОБЫТИЙ ===")

	// Получаем JWT через REST API
	token, err := login(*restURL, *username, *password)
	if err != nil {
		log.Fatalf("❌ Ошибка логина: %v", err)
	}
	fmt.Printf("✅ Логин %s успешен\n", *username)

	// Подключаемся к фиду
	client, err := network.DialFeed(*feedAddr)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к фиду: %v", err)
	}
	defer client.Close()

	welcome, err := client.Hello(token, parseTypes(*types)...)
	if err != nil {
		log.Fatalf("❌ Рукопожатие не удалось: %v", err)
	}
	fmt.Printf("✅ Подписка оформлена: user=%s (id=%d), types=%v\n",
		welcome.Username, welcome.UserID, welcome.Types)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("\n=== СОБЫТИЯ ===")

	received := 0
	lastPing := time.Now()
	for {
		select {
		case <-sigCh:
			fmt.Printf("\n📊 Получено событий: %d\n", received)
			return
		default:
		}

		msg, err := client.Next(2 * time.Second)
		if err != nil {
			if errors.Is(err, network.ErrReadTimeout) {
				// Канал молчит — поддерживаем его ping'ом.
				if time.Since(lastPing) > 10*time.Second {
					if err := client.Ping(); err != nil {
						log.Fatalf("❌ Ошибка ping: %v", err)
					}
					lastPing = time.Now()
				}
				continue
			}
			log.Fatalf("❌ Ошибка чтения кадра: %v", err)
		}

		switch msg.Type {
		case network.MsgEvent:
			printEvent(msg)
			received++
			if *count > 0 && received >= *count {
				fmt.Printf("\n📊 Получено событий: %d\n", received)
				return
			}
		case network.MsgPong:
			rtt := time.Duration(time.Now().UnixNano() - msg.Pong.ClientTime)
			fmt.Printf("🏓 pong, RTT %v\n", rtt)
		case network.MsgError:
			log.Fatalf("❌ Сервер прервал фид: %s (%s)", msg.Error.Message, msg.Error.Code)
		default:
			fmt.Printf("⚠️  Неожиданный кадр %q\n", msg.Type)
		}
	}
}

// login выполняет POST /api/auth/login и возвращает JWT.
func login(restURL, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})

	resp, err := http.Post(restURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var loginResp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("разбор ответа: %w", err)
	}
	if !loginResp.Success {
		return "", fmt.Errorf("сервер отказал: %s", loginResp.Message)
	}
	return loginResp.Token, nil
}

// printEvent выводит кадр event в одну строку плюс полезную нагрузку.
func printEvent(msg *network.Message) {
	ev := msg.Event
	fmt.Printf("[%s] #%d %s [%s] prio=%d\n",
		ev.Timestamp.Local().Format("15:04:05.000"), msg.Seq, ev.Source, ev.Type, ev.Priority)
	if len(ev.Data) > 0 {
		fmt.Printf("  %s\n", ev.Data)
	}
}

func parseTypes(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
