package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Envelope описывает универсальный контейнер события симуляции.
// Все поля фиксированы для версиирования и трассировки.
type Envelope struct {
	ID            string            `json:"id"`             // Глобально уникальный идентификатор (UUID).
	Timestamp     time.Time         `json:"ts"`             // Время создания события (UTC).
	Source        string            `json:"source"`         // Имя компонента-источника (sim, api…).
	EventType     string            `json:"type"`           // Тип события (world.tick, entity.moved…).
	Version       int               `json:"version"`        // Схема полезной нагрузки.
	CorrelationID string            `json:"corr,omitempty"` // Для связывания цепочек.
	Priority      int               `json:"priority"`       // 0=Low … 9=Critical (для backpressure).
	Payload       json.RawMessage   `json:"payload"`        // Полезная нагрузка события (вложенный JSON).
	Metadata      map[string]string `json:"meta,omitempty"` // Произвольные метаданные.
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто — все типы.
	Sources []string // Если пусто — все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий симуляции.
// Реализации: in-memory (по умолчанию) и NATS JetStream.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int

	buffer   chan *Envelope
	capacity int

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory шину с буфером на capacity событий.
func NewMemoryBus(capacity int) EventBus {
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		capacity:    capacity,
	}
	go mb.dispatchLoop()
	return mb
}

// Publish кладёт событие в буфер. При заполненном буфере события с
// приоритетом ниже 5 молча отбрасываются; более важные ждут свободного
// места или отмены контекста.
func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	select {
	case mb.buffer <- ev:
		mb.published.Add(1)
		return nil
	default:
	}

	if ev.Priority < 5 {
		mb.dropped.Add(1)
		return nil
	}

	select {
	case mb.buffer <- ev:
		mb.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: subCtx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  len(mb.buffer),
	}
}

// dispatchLoop разбирает буфер и раздаёт события. Каждая доставка идёт в
// своей горутине: медленный обработчик не тормозит ни публикацию, ни
// остальных подписчиков. Порядок доставки между подписчиками не
// гарантируется.
func (mb *memoryBus) dispatchLoop() {
	for ev := range mb.buffer {
		mb.mu.RLock()
		matched := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			if sub.filter.matches(ev) {
				matched = append(matched, sub)
			}
		}
		mb.mu.RUnlock()

		for _, sub := range matched {
			go mb.deliver(sub, ev)
		}
	}
}

func (mb *memoryBus) deliver(sub subscriber, ev *Envelope) {
	if sub.ctx.Err() != nil {
		return // подписчик успел отписаться
	}
	sub.handler(sub.ctx, ev)
	mb.consumed.Add(1)
}

// matches сообщает, проходит ли событие фильтр подписки.
// Пустой список означает «любой».
func (f Filter) matches(ev *Envelope) bool {
	return containsOrEmpty(f.Types, ev.EventType) && containsOrEmpty(f.Sources, ev.Source)
}

func containsOrEmpty(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
