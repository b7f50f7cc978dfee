package network

import (
	"sync"
	"time"
)

// FeedMetrics содержит счётчики фида событий.
type FeedMetrics struct {
	// Соединения
	TotalConnections  int64
	ActiveConnections int64
	AuthFailures      int64

	// Трафик
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64

	// События, не доставленные медленным клиентам
	EventsDropped int64

	// Метрики по типам событий
	EventMetrics map[string]*EventTypeMetrics

	// Последнее обновление
	LastUpdate time.Time

	mu sync.RWMutex
}

// EventTypeMetrics — метрики доставки конкретного типа события.
type EventTypeMetrics struct {
	Count     int64
	TotalSize int64
	AvgSize   float64
}

// NewFeedMetrics создаёт систему метрик фида.
func NewFeedMetrics() *FeedMetrics {
	return &FeedMetrics{
		EventMetrics: make(map[string]*EventTypeMetrics),
		LastUpdate:   time.Now(),
	}
}

// ConnectionOpened учитывает новое соединение.
func (fm *FeedMetrics) ConnectionOpened() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.TotalConnections++
	fm.ActiveConnections++
	fm.LastUpdate = time.Now()
}

// ConnectionClosed учитывает закрытие соединения.
func (fm *FeedMetrics) ConnectionClosed() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.ActiveConnections--
	fm.LastUpdate = time.Now()
}

// RecordAuthFailure учитывает отклонённый hello.
func (fm *FeedMetrics) RecordAuthFailure() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.AuthFailures++
	fm.LastUpdate = time.Now()
}

// RecordSent учитывает отправленный кадр. eventType пуст для служебных кадров.
func (fm *FeedMetrics) RecordSent(eventType string, size int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.MessagesSent++
	fm.BytesSent += int64(size)

	if eventType != "" {
		em := fm.getOrCreateEventMetrics(eventType)
		em.Count++
		em.TotalSize += int64(size)
		em.AvgSize = float64(em.TotalSize) / float64(em.Count)
	}

	fm.LastUpdate = time.Now()
}

// RecordReceived учитывает принятый кадр.
func (fm *FeedMetrics) RecordReceived(size int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.MessagesReceived++
	fm.BytesReceived += int64(size)
	fm.LastUpdate = time.Now()
}

// RecordDrop учитывает событие, выброшенное из-за переполнения буфера клиента.
func (fm *FeedMetrics) RecordDrop() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.EventsDropped++
	fm.LastUpdate = time.Now()
}

// Snapshot возвращает копию метрик без мьютекса.
func (fm *FeedMetrics) Snapshot() *FeedMetrics {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	snapshot := &FeedMetrics{
		TotalConnections:  fm.TotalConnections,
		ActiveConnections: fm.ActiveConnections,
		AuthFailures:      fm.AuthFailures,
		MessagesSent:      fm.MessagesSent,
		MessagesReceived:  fm.MessagesReceived,
		BytesSent:         fm.BytesSent,
		BytesReceived:     fm.BytesReceived,
		EventsDropped:     fm.EventsDropped,
		LastUpdate:        fm.LastUpdate,
	}

	snapshot.EventMetrics = make(map[string]*EventTypeMetrics, len(fm.EventMetrics))
	for k, v := range fm.EventMetrics {
		eventCopy := *v
		snapshot.EventMetrics[k] = &eventCopy
	}

	return snapshot
}

func (fm *FeedMetrics) getOrCreateEventMetrics(eventType string) *EventTypeMetrics {
	if metrics, exists := fm.EventMetrics[eventType]; exists {
		return metrics
	}

	metrics := &EventTypeMetrics{}
	fm.EventMetrics[eventType] = metrics
	return metrics
}
