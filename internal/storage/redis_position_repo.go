package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPositionRepo хранит позиции сущностей в Redis для быстрого доступа.
// Запись буферизуется и сбрасывается батчами, чтобы не дёргать Redis
// на каждый тик симуляции. Пространственные запросы репозиторий не делает:
// ими занимается Quadtree мира, Redis — только надёжность между рестартами.
type RedisPositionRepo struct {
	client      *redis.Client
	keyPrefix   string
	ttl         time.Duration
	batchSize   int
	batchMu     sync.Mutex
	batchBuffer map[uint64]EntityPos
	batchTicker *time.Ticker
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr         string        // Адрес Redis сервера
	Password     string        // Пароль (пустой если не требуется)
	DB           int           // Номер базы данных
	KeyPrefix    string        // Префикс для ключей
	TTL          time.Duration // Время жизни записей
	BatchSize    int           // Размер батча для записи
	BatchFlushMs int           // Интервал сброса батча в миллисекундах
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "worldsim:pos:",
		TTL:          30 * time.Minute,
		BatchSize:    100,
		BatchFlushMs: 100,
	}
}

// NewRedisPositionRepo создаёт новый Redis репозиторий для позиций
func NewRedisPositionRepo(config *RedisConfig) (*RedisPositionRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	// Создаём клиент Redis
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	repo := &RedisPositionRepo{
		client:      client,
		keyPrefix:   config.KeyPrefix,
		ttl:         config.TTL,
		batchSize:   config.BatchSize,
		batchBuffer: make(map[uint64]EntityPos),
		batchTicker: time.NewTicker(time.Duration(config.BatchFlushMs) * time.Millisecond),
		shutdown:    make(chan struct{}),
	}

	// Запускаем фоновую горутину для сброса батчей
	repo.wg.Add(1)
	go repo.batchFlusher()

	log.Printf("🔴 Connected to Redis at %s", config.Addr)
	return repo, nil
}

// Save добавляет позицию в батч-буфер; при заполнении буфер сбрасывается немедленно.
func (r *RedisPositionRepo) Save(ctx context.Context, entityID uint64, pos EntityPos) error {
	if entityID == 0 {
		return fmt.Errorf("недействительный entityID: %d", entityID)
	}
	if pos.Layer == "" {
		return fmt.Errorf("пустое имя слоя для сущности %d", entityID)
	}

	r.batchMu.Lock()
	r.batchBuffer[entityID] = pos

	// Если буфер заполнен, сбрасываем немедленно
	if len(r.batchBuffer) >= r.batchSize {
		batch := r.batchBuffer
		r.batchBuffer = make(map[uint64]EntityPos)
		r.batchMu.Unlock()

		return r.flushBatch(ctx, batch)
	}

	r.batchMu.Unlock()
	return nil
}

// Load загружает позицию сущности. Сначала смотрит в несброшенный
// батч-буфер, затем в Redis.
func (r *RedisPositionRepo) Load(ctx context.Context, entityID uint64) (EntityPos, bool, error) {
	if entityID == 0 {
		return EntityPos{}, false, fmt.Errorf("недействительный entityID: %d", entityID)
	}

	r.batchMu.Lock()
	if pos, ok := r.batchBuffer[entityID]; ok {
		r.batchMu.Unlock()
		return pos, true, nil
	}
	r.batchMu.Unlock()

	data, err := r.client.Get(ctx, r.key(entityID)).Result()
	if err == redis.Nil {
		return EntityPos{}, false, nil // Позиция не найдена
	} else if err != nil {
		return EntityPos{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	var pos EntityPos
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return EntityPos{}, false, fmt.Errorf("failed to unmarshal position: %w", err)
	}

	return pos, true, nil
}

// Delete удаляет позицию сущности из буфера и Redis.
func (r *RedisPositionRepo) Delete(ctx context.Context, entityID uint64) error {
	if entityID == 0 {
		return fmt.Errorf("недействительный entityID: %d", entityID)
	}

	// Удаляем из батч-буфера если есть
	r.batchMu.Lock()
	delete(r.batchBuffer, entityID)
	r.batchMu.Unlock()

	// Удаляем из Redis
	if err := r.client.Del(ctx, r.key(entityID)).Err(); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	return nil
}

// BatchSave пишет позиции напрямую пайплайном, минуя буфер.
func (r *RedisPositionRepo) BatchSave(ctx context.Context, positions map[uint64]EntityPos) error {
	if len(positions) == 0 {
		return nil
	}

	for entityID, pos := range positions {
		if entityID == 0 {
			return fmt.Errorf("недействительный entityID в batch: %d", entityID)
		}
		if pos.Layer == "" {
			return fmt.Errorf("пустое имя слоя для сущности %d", entityID)
		}
	}

	return r.flushBatch(ctx, positions)
}

// GetActiveCount возвращает количество позиций в Redis (для мониторинга).
func (r *RedisPositionRepo) GetActiveCount(ctx context.Context) (int64, error) {
	pattern := r.keyPrefix + "*"

	// Используем SCAN для подсчёта ключей
	var count int64
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()

	for iter.Next(ctx) {
		count++
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}

	return count, nil
}

// Close останавливает флашер, сбрасывает остаток буфера и закрывает соединение.
func (r *RedisPositionRepo) Close() error {
	close(r.shutdown)
	r.wg.Wait()
	r.batchTicker.Stop()

	// Сбрасываем оставшиеся данные
	r.batchMu.Lock()
	if len(r.batchBuffer) > 0 {
		if err := r.flushBatch(context.Background(), r.batchBuffer); err != nil {
			log.Printf("❌ Failed to flush batch on close: %v", err)
		}
		r.batchBuffer = make(map[uint64]EntityPos)
	}
	r.batchMu.Unlock()

	return r.client.Close()
}

// Внутренние методы

func (r *RedisPositionRepo) key(entityID uint64) string {
	return r.keyPrefix + strconv.FormatUint(entityID, 10)
}

// batchFlusher периодически сбрасывает батч-буфер
func (r *RedisPositionRepo) batchFlusher() {
	defer r.wg.Done()

	for {
		select {
		case <-r.shutdown:
			return
		case <-r.batchTicker.C:
			r.batchMu.Lock()
			if len(r.batchBuffer) > 0 {
				batch := r.batchBuffer
				r.batchBuffer = make(map[uint64]EntityPos)
				r.batchMu.Unlock()

				if err := r.flushBatch(context.Background(), batch); err != nil {
					log.Printf("❌ Failed to flush batch: %v", err)
				}
			} else {
				r.batchMu.Unlock()
			}
		}
	}
}

// flushBatch записывает батч позиций в Redis пайплайном
func (r *RedisPositionRepo) flushBatch(ctx context.Context, batch map[uint64]EntityPos) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()

	for entityID, pos := range batch {
		data, err := json.Marshal(pos)
		if err != nil {
			log.Printf("⚠️ Failed to marshal position for %d: %v", entityID, err)
			continue
		}

		pipe.Set(ctx, r.key(entityID), data, r.ttl)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}
