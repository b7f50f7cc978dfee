package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/anthive/worldsim/internal/eventbus"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "15:04:05.000"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNATSURL, "адрес NATS сервера")
		stream     = flag.String("stream", "WORLDSIM", "имя JetStream-стрима")
		command    = flag.String("cmd", "tail", "команда: tail, publish, types")
		eventTypes = flag.String("types", "", "фильтр типов событий (через запятую)")
		sources    = flag.String("sources", "", "фильтр источников (через запятую)")
		limit      = flag.Int("limit", 0, "максимум событий (0 — без ограничения)")
		evType     = flag.String("type", "", "тип публикуемого события (для publish)")
		evSource   = flag.String("source", "event-cli", "источник публикуемого события")
		evPriority = flag.Int("priority", 5, "приоритет публикуемого события 0..9")
		evPayload  = flag.String("payload", "{}", "JSON полезной нагрузки (для publish)")
	)
	flag.Parse()

	switch *command {
	case "tail":
		if err := tailEvents(*natsURL, *stream, &TailOptions{
			Types:   parseStringList(*eventTypes),
			Sources: parseStringList(*sources),
			Limit:   *limit,
		}); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "publish":
		if err := publishEvent(*natsURL, *stream, *evType, *evSource, *evPriority, *evPayload); err != nil {
			log.Fatalf("❌ Publish failed: %v", err)
		}

	case "types":
		showTypes()

	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: tail, publish, types")
		os.Exit(1)
	}
}

type TailOptions struct {
	Types   []string
	Sources []string
	Limit   int
}

// tailEvents подписывается на шину и печатает события до Ctrl+C
// или до достижения лимита.
func tailEvents(url, stream string, opts *TailOptions) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer bus.Close()

	fmt.Printf("🎬 Tail событий %s (types=%v, limit=%d)\n", url, opts.Types, opts.Limit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		count int64
		once  sync.Once
		done  = make(chan struct{})
	)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: opts.Types, Sources: opts.Sources},
		func(ctx context.Context, ev *eventbus.Envelope) {
			printEvent(ev)
			n := atomic.AddInt64(&count, 1)
			if opts.Limit > 0 && n >= int64(opts.Limit) {
				once.Do(func() { close(done) })
			}
		})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-done:
	}

	fmt.Printf("\n📊 Всего событий: %d\n", atomic.LoadInt64(&count))
	return nil
}

// publishEvent отправляет одно событие с полезной нагрузкой из флага.
func publishEvent(url, stream, evType, source string, priority int, payload string) error {
	if evType == "" {
		return fmt.Errorf("нужен -type (например, entity.moved)")
	}

	var data json.RawMessage
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return fmt.Errorf("некорректный JSON в -payload: %w", err)
	}

	bus, err := eventbus.NewJetStreamBus(url, stream, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer bus.Close()

	ev, err := eventbus.NewEnvelope(evType, source, priority, data)
	if err != nil {
		return err
	}
	if err := bus.Publish(context.Background(), ev); err != nil {
		return err
	}

	fmt.Printf("✅ Опубликовано %s (id=%s)\n", evType, ev.ID)
	return nil
}

// showTypes выводит известные типы событий симуляции.
func showTypes() {
	fmt.Println("📋 Типы событий:")
	types := []struct {
		name, desc string
	}{
		{eventbus.EventWorldTick, "завершён тик симуляции"},
		{eventbus.EventEntitySpawned, "создана сущность"},
		{eventbus.EventEntityDespawned, "уничтожена сущность"},
		{eventbus.EventEntityMoved, "сущность переместилась"},
		{eventbus.EventTileUpdated, "изменено поле тайла"},
		{eventbus.EventTrailPainted, "обновлена интенсивность следа"},
		{eventbus.EventWorldSnapshot, "сохранён снапшот мира"},
	}
	for _, t := range types {
		fmt.Printf("  %-18s %s\n", t.name, t.desc)
	}
}

// printEvent выводит событие в читаемом формате.
func printEvent(ev *eventbus.Envelope) {
	timestamp := ev.Timestamp.Local().Format(timeFormat)
	fmt.Printf("[%s] %s [%s] %s\n", timestamp, ev.Source, ev.EventType, ev.ID)

	// Детали в зависимости от типа события
	switch ev.EventType {
	case eventbus.EventWorldTick:
		var p eventbus.TickPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Tick: %d Entities: %d Duration: %.2fms\n", p.Tick, p.Entities, p.DurationMs)
		}
	case eventbus.EventEntitySpawned, eventbus.EventEntityDespawned, eventbus.EventEntityMoved:
		var p eventbus.EntityPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Entity: %d Type: %d Pos: (%.1f, %.1f) Layer: %s\n", p.ID, p.Type, p.X, p.Y, p.Layer)
		}
	case eventbus.EventTileUpdated, eventbus.EventTrailPainted:
		var p eventbus.TilePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Tile: (%d,%d) Field: %s Value: %d Raw: 0x%08X\n", p.X, p.Y, p.Field, p.Value, p.Raw)
		}
	case eventbus.EventWorldSnapshot:
		var p eventbus.SnapshotPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf("  Snapshot: %s Tick: %d\n", p.SnapshotID, p.Tick)
		}
	default:
		if len(ev.Payload) > 0 && len(ev.Payload) <= 256 {
			fmt.Printf("  Payload: %s\n", ev.Payload)
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
